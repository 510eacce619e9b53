package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/models"
)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[int][]models.Message
	err   error
}

func (f *stubFetcher) Page(ctx context.Context, groupID, limit, offset int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[groupID], nil
}

// stubStream hands out one buffered channel per group. Cancel closes the
// channel; events still sitting in the buffer are delivered afterwards,
// which is exactly the in-flight window the generation check guards.
type stubStream struct {
	mu       sync.Mutex
	channels map[int]chan models.GroupEvent
	cancels  int
}

func newStubStream() *stubStream {
	return &stubStream{channels: make(map[int]chan models.GroupEvent)}
}

func (s *stubStream) Subscribe(groupID int) (<-chan models.GroupEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan models.GroupEvent, 16)
	s.channels[groupID] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			s.cancels++
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *stubStream) send(groupID int, ev models.GroupEvent) {
	s.mu.Lock()
	ch := s.channels[groupID]
	s.mu.Unlock()
	ch <- ev
}

func (s *stubStream) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

type stubTyping struct {
	mu       sync.Mutex
	channels map[int]chan models.TypingEvent
	err      error
}

func newStubTyping() *stubTyping {
	return &stubTyping{channels: make(map[int]chan models.TypingEvent)}
}

func (s *stubTyping) Subscribe(ctx context.Context, groupID int) (<-chan models.TypingEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, nil, s.err
	}
	ch := make(chan models.TypingEvent, 16)
	s.channels[groupID] = ch
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }, nil
}

func (s *stubTyping) send(groupID int, ev models.TypingEvent) {
	s.mu.Lock()
	ch := s.channels[groupID]
	s.mu.Unlock()
	ch <- ev
}

func msg(id, groupID int, content string) models.Message {
	return models.Message{ID: id, GroupID: groupID, Content: content, Status: models.StatusActive}
}

func waitForView(t *testing.T, c *Controller, check func([]models.Message) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return check(c.Messages())
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSelectLoadsPageAndGoesLive(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{
		5: {msg(1, 5, "first"), msg(2, 5, "second")},
	}}
	c := NewController(fetcher, newStubStream(), nil, zap.NewNop())
	defer c.Close()

	page, err := c.Select(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, StateLive, c.State())
	assert.Equal(t, 5, c.GroupID())
}

func TestSelectLoadFailureStaysIdle(t *testing.T) {
	fetcher := &stubFetcher{err: assert.AnError}
	stream := newStubStream()
	c := NewController(fetcher, stream, nil, zap.NewNop())
	defer c.Close()

	_, err := c.Select(context.Background(), 5)
	require.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, c.GroupID())
	assert.Empty(t, stream.channels)
}

func TestCreatedEventAppendsOnce(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{5: {msg(1, 5, "first")}}}
	stream := newStubStream()
	c := NewController(fetcher, stream, nil, zap.NewNop())
	defer c.Close()

	_, err := c.Select(context.Background(), 5)
	require.NoError(t, err)

	created := msg(2, 5, "second")
	ev := models.GroupEvent{Type: models.EventMessageCreated, GroupID: 5, Message: &created}
	stream.send(5, ev)
	stream.send(5, ev) // the sender's own echo arrives twice

	waitForView(t, c, func(view []models.Message) bool {
		return len(view) == 2 && view[1].ID == 2
	})

	// Give the duplicate a moment to be (wrongly) applied before asserting.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, c.Messages(), 2)
}

func TestCreatedEventsPreserveArrivalOrder(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{5: {msg(1, 5, "first")}}}
	stream := newStubStream()
	c := NewController(fetcher, stream, nil, zap.NewNop())
	defer c.Close()

	_, err := c.Select(context.Background(), 5)
	require.NoError(t, err)

	for id := 2; id <= 5; id++ {
		m := msg(id, 5, "m")
		stream.send(5, models.GroupEvent{Type: models.EventMessageCreated, GroupID: 5, Message: &m})
	}

	waitForView(t, c, func(view []models.Message) bool { return len(view) == 5 })

	ids := make([]int, 0, 5)
	for _, m := range c.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)
}

func TestEditedEventReplacesInPlace(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{
		5: {msg(1, 5, "first"), msg(2, 5, "second"), msg(3, 5, "third")},
	}}
	stream := newStubStream()
	c := NewController(fetcher, stream, nil, zap.NewNop())
	defer c.Close()

	_, err := c.Select(context.Background(), 5)
	require.NoError(t, err)

	edited := msg(2, 5, "rewritten")
	edited.Status = models.StatusEdited
	stream.send(5, models.GroupEvent{Type: models.EventMessageEdited, GroupID: 5, Message: &edited})

	waitForView(t, c, func(view []models.Message) bool {
		return len(view) == 3 && view[1].Content == "rewritten"
	})

	view := c.Messages()
	assert.Equal(t, []int{1, 2, 3}, []int{view[0].ID, view[1].ID, view[2].ID})
	assert.Equal(t, models.StatusEdited, view[1].Status)
}

func TestDeletedEventRemovesFromView(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{
		5: {msg(1, 5, "first"), msg(2, 5, "second")},
	}}
	stream := newStubStream()
	c := NewController(fetcher, stream, nil, zap.NewNop())
	defer c.Close()

	_, err := c.Select(context.Background(), 5)
	require.NoError(t, err)

	stream.send(5, models.GroupEvent{Type: models.EventMessageDeleted, GroupID: 5, MessageID: 1})

	waitForView(t, c, func(view []models.Message) bool {
		return len(view) == 1 && view[0].ID == 2
	})
}

// Events still in flight from a previous selection must never surface in the
// new conversation's view.
func TestReselectDiscardsStaleEvents(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{
		5: {msg(1, 5, "old group")},
		7: {msg(10, 7, "new group")},
	}}
	stream := newStubStream()
	c := NewController(fetcher, stream, nil, zap.NewNop())
	defer c.Close()

	_, err := c.Select(context.Background(), 5)
	require.NoError(t, err)

	// Buffered before the switch; delivered after it.
	stale := msg(2, 5, "late arrival")
	stream.send(5, models.GroupEvent{Type: models.EventMessageCreated, GroupID: 5, Message: &stale})

	_, err = c.Select(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, stream.cancelCount())

	fresh := msg(11, 7, "current")
	stream.send(7, models.GroupEvent{Type: models.EventMessageCreated, GroupID: 7, Message: &fresh})

	waitForView(t, c, func(view []models.Message) bool {
		return len(view) == 2 && view[1].ID == 11
	})
	for _, m := range c.Messages() {
		assert.Equal(t, 7, m.GroupID)
	}
}

func TestDeselectReturnsToIdle(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{5: {msg(1, 5, "first")}}}
	stream := newStubStream()
	c := NewController(fetcher, stream, nil, zap.NewNop())
	defer c.Close()

	_, err := c.Select(context.Background(), 5)
	require.NoError(t, err)

	c.Deselect()
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Messages())
	assert.Equal(t, 1, stream.cancelCount())
}

func TestTypingEventsTrackedAndScoped(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{5: {}, 7: {}}}
	stream := newStubStream()
	typing := newStubTyping()
	c := NewController(fetcher, stream, typing, zap.NewNop())
	defer c.Close()

	_, err := c.Select(context.Background(), 5)
	require.NoError(t, err)

	typing.send(5, models.TypingEvent{GroupID: 5, UserID: 3, IsTyping: true})
	require.Eventually(t, func() bool {
		users := c.TypingUsers()
		return len(users) == 1 && users[0] == 3
	}, 2*time.Second, 5*time.Millisecond)

	// Switching conversations clears the marks.
	_, err = c.Select(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, c.TypingUsers())
}

// A failed typing subscription degrades to a live view without presence.
func TestTypingSubscribeFailureTolerated(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{5: {msg(1, 5, "first")}}}
	typing := newStubTyping()
	typing.err = assert.AnError
	c := NewController(fetcher, newStubStream(), typing, zap.NewNop())
	defer c.Close()

	page, err := c.Select(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, StateLive, c.State())
}

func TestCloseClosesViewStream(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int][]models.Message{5: {}}}
	c := NewController(fetcher, newStubStream(), nil, zap.NewNop())

	_, err := c.Select(context.Background(), 5)
	require.NoError(t, err)

	c.Close()

	for ev := range c.Events() {
		_ = ev
	}
}
