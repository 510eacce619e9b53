// Package session implements the per-conversation coordinator. A controller
// owns the local ordered view of one selected group: it loads the initial
// page, folds subscription events into the view, and tears everything down
// on conversation switch.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/presence"
)

// State is the controller's lifecycle phase.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLive    State = "live"
)

// ErrLoadFailed is surfaced when the initial page fetch fails. The
// controller stays Idle and does not retry silently.
var ErrLoadFailed = errors.New("conversation load failed")

// DefaultPageSize is the initial page fetched on selection.
const DefaultPageSize = 50

// MessageFetcher loads the initial ascending message page.
type MessageFetcher interface {
	Page(ctx context.Context, groupID, limit, offset int) ([]models.Message, error)
}

// EventStream provides per-group change subscriptions. The returned cancel
// function closes the event channel.
type EventStream interface {
	Subscribe(groupID int) (<-chan models.GroupEvent, func())
}

// Controller coordinates one open conversation.
type Controller struct {
	fetcher  MessageFetcher
	stream   EventStream
	typing   presence.TypingSource
	tracker  *presence.Tracker
	pageSize int
	log      *zap.Logger

	// selMu serializes Select/Deselect/Close against each other.
	selMu sync.Mutex

	mu           sync.Mutex
	state        State
	groupID      int
	gen          int
	msgs         []models.Message
	seen         map[int]struct{}
	unsubscribe  func()
	typingCancel func()

	pumps sync.WaitGroup
	out   chan models.GroupEvent
}

// NewController constructs an Idle controller.
func NewController(fetcher MessageFetcher, stream EventStream, typing presence.TypingSource, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		fetcher:  fetcher,
		stream:   stream,
		typing:   typing,
		tracker:  presence.NewTracker(presence.QuietInterval),
		pageSize: DefaultPageSize,
		log:      log,
		state:    StateIdle,
		out:      make(chan models.GroupEvent, 64),
	}
}

// Events is the merged view stream for the transport layer.
func (c *Controller) Events() <-chan models.GroupEvent {
	return c.out
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GroupID returns the currently selected group, 0 when Idle.
func (c *Controller) GroupID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupID
}

// Messages returns a copy of the local ordered view.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := make([]models.Message, len(c.msgs))
	copy(view, c.msgs)
	return view
}

// TypingUsers returns who is currently typing in the selected group.
func (c *Controller) TypingUsers() []int {
	c.mu.Lock()
	groupID := c.groupID
	c.mu.Unlock()
	return c.tracker.TypingUsers(groupID)
}

// Select switches the controller to a group. Any previous subscriptions are
// torn down before loading begins, so events cannot leak across groups. A
// failed initial fetch leaves the controller Idle and returns ErrLoadFailed.
func (c *Controller) Select(ctx context.Context, groupID int) ([]models.Message, error) {
	c.selMu.Lock()
	defer c.selMu.Unlock()

	c.mu.Lock()
	c.teardownLocked()
	c.state = StateLoading
	c.groupID = groupID
	c.mu.Unlock()

	page, err := c.fetcher.Page(ctx, groupID, c.pageSize, 0)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.groupID = 0
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	events, cancelEvents := c.stream.Subscribe(groupID)

	var typingEvents <-chan models.TypingEvent
	cancelTyping := func() {}
	if c.typing != nil {
		typingEvents, cancelTyping, err = c.typing.Subscribe(ctx, groupID)
		if err != nil {
			// Presence is advisory; a live view without typing marks beats
			// no view at all.
			c.log.Warn("typing subscription failed", zap.Int("group_id", groupID), zap.Error(err))
			typingEvents, cancelTyping = nil, func() {}
		}
	}

	c.mu.Lock()
	c.msgs = page
	c.seen = make(map[int]struct{}, len(page))
	for _, msg := range page {
		c.seen[msg.ID] = struct{}{}
	}
	c.unsubscribe = cancelEvents
	c.typingCancel = cancelTyping
	c.state = StateLive
	gen := c.gen
	c.mu.Unlock()

	c.pumps.Add(1)
	go c.pump(gen, events, typingEvents)

	view := make([]models.Message, len(page))
	copy(view, page)
	return view, nil
}

// Deselect tears down both subscriptions and returns to Idle.
func (c *Controller) Deselect() {
	c.selMu.Lock()
	defer c.selMu.Unlock()

	c.mu.Lock()
	c.teardownLocked()
	c.state = StateIdle
	c.groupID = 0
	c.msgs = nil
	c.seen = nil
	c.mu.Unlock()
}

// Close shuts the controller down for good and closes the view stream.
func (c *Controller) Close() {
	c.Deselect()
	c.pumps.Wait()
	c.tracker.Stop()
	close(c.out)
}

// teardownLocked cancels active subscriptions and bumps the selection
// generation so in-flight events from the old group are discarded even if
// the asynchronous unsubscribe has not landed yet.
func (c *Controller) teardownLocked() {
	c.gen++
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.typingCancel != nil {
		c.typingCancel()
		c.typingCancel = nil
	}
	if c.groupID != 0 {
		c.tracker.ClearGroup(c.groupID)
	}
}

func (c *Controller) pump(gen int, events <-chan models.GroupEvent, typingEvents <-chan models.TypingEvent) {
	defer c.pumps.Done()
	for events != nil || typingEvents != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.applyEvent(gen, ev)
		case ev, ok := <-typingEvents:
			if !ok {
				typingEvents = nil
				continue
			}
			c.applyTyping(gen, ev)
		}
	}
}

// applyEvent folds one change event into the local view. Events are checked
// against the currently selected group, not trusted by subscription identity
// alone. New messages are appended (deduped by id, since the sender's own
// echoed event may arrive twice); already-rendered messages are updated in
// place and never reordered.
func (c *Controller) applyEvent(gen int, ev models.GroupEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || ev.GroupID != c.groupID || c.state != StateLive {
		return
	}

	switch ev.Type {
	case models.EventMessageCreated:
		if ev.Message == nil {
			return
		}
		if _, dup := c.seen[ev.Message.ID]; dup {
			return
		}
		c.seen[ev.Message.ID] = struct{}{}
		c.msgs = append(c.msgs, *ev.Message)
	case models.EventMessageEdited:
		if ev.Message == nil {
			return
		}
		c.replaceLocked(*ev.Message)
	case models.EventMessageDeleted:
		c.removeLocked(ev.MessageID)
	case models.EventReactionAdded, models.EventReactionRemoved,
		models.EventMemberAdded, models.EventMemberRemoved:
		// no local view change; forwarded for rendering
	default:
		return
	}

	c.forwardLocked(ev)
}

func (c *Controller) applyTyping(gen int, ev models.TypingEvent) {
	c.mu.Lock()
	if gen != c.gen || ev.GroupID != c.groupID || c.state != StateLive {
		c.mu.Unlock()
		return
	}
	c.forwardLocked(models.GroupEvent{
		Type:     models.EventTyping,
		GroupID:  ev.GroupID,
		UserID:   ev.UserID,
		IsTyping: ev.IsTyping,
	})
	c.mu.Unlock()

	c.tracker.Set(ev.GroupID, ev.UserID, ev.IsTyping)
}

func (c *Controller) replaceLocked(msg models.Message) {
	for i := range c.msgs {
		if c.msgs[i].ID == msg.ID {
			c.msgs[i] = msg
			return
		}
	}
}

func (c *Controller) removeLocked(messageID int) {
	for i := range c.msgs {
		if c.msgs[i].ID == messageID {
			c.msgs = append(c.msgs[:i], c.msgs[i+1:]...)
			return
		}
	}
}

func (c *Controller) forwardLocked(ev models.GroupEvent) {
	select {
	case c.out <- ev:
	default:
		c.log.Warn("view event dropped", zap.Int("group_id", ev.GroupID), zap.String("event", string(ev.Type)))
	}
}
