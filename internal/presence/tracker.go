package presence

import (
	"sort"
	"sync"
	"time"
)

// QuietInterval is how long a typing mark survives without a refresh.
// Senders do not guarantee an explicit stop event on every path, so the
// consumer clears stale marks itself.
const QuietInterval = 3 * time.Second

type trackerKey struct {
	groupID int
	userID  int
}

// Tracker maintains the local currently-typing set. Each (group, user) mark
// auto-clears after the quiet interval unless refreshed.
type Tracker struct {
	mu     sync.Mutex
	quiet  time.Duration
	timers map[trackerKey]*time.Timer
	typing map[int]map[int]bool
}

// NewTracker constructs a Tracker with the given quiet interval.
func NewTracker(quiet time.Duration) *Tracker {
	if quiet <= 0 {
		quiet = QuietInterval
	}
	return &Tracker{
		quiet:  quiet,
		timers: make(map[trackerKey]*time.Timer),
		typing: make(map[int]map[int]bool),
	}
}

// Set records a typing mark (or clears it). A true mark resets the quiet
// timer; false clears immediately.
func (t *Tracker) Set(groupID, userID int, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackerKey{groupID: groupID, userID: userID}
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}

	if !isTyping {
		t.clearLocked(key)
		return
	}

	if t.typing[groupID] == nil {
		t.typing[groupID] = make(map[int]bool)
	}
	t.typing[groupID][userID] = true
	var timer *time.Timer
	timer = time.AfterFunc(t.quiet, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// A fired callback can lose the lock race against a refresh that
		// already stopped and replaced this timer; only the current timer
		// may clear the mark.
		if t.timers[key] != timer {
			return
		}
		delete(t.timers, key)
		t.clearLocked(key)
	})
	t.timers[key] = timer
}

// TypingUsers returns the users currently typing in the group, sorted.
func (t *Tracker) TypingUsers(groupID int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]int, 0, len(t.typing[groupID]))
	for userID := range t.typing[groupID] {
		users = append(users, userID)
	}
	sort.Ints(users)
	return users
}

// ClearGroup drops all marks and timers for a group. Called on conversation
// switch so stale marks never leak across groups.
func (t *Tracker) ClearGroup(groupID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		if key.groupID == groupID {
			timer.Stop()
			delete(t.timers, key)
		}
	}
	delete(t.typing, groupID)
}

// Stop cancels all timers.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
	t.typing = make(map[int]map[int]bool)
}

func (t *Tracker) clearLocked(key trackerKey) {
	if users, ok := t.typing[key.groupID]; ok {
		delete(users, key.userID)
		if len(users) == 0 {
			delete(t.typing, key.groupID)
		}
	}
}
