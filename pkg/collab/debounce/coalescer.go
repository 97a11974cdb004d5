package debounce

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Key identifies one debounce group: rapid-fire updates from the same actor
// in the same session sharing a group id collapse to their final value.
type Key struct {
	SessionId uuid.UUID
	ActorId   uuid.UUID
	GroupId   string
}

// FlushFunc receives the final draft of a group once its window elapses or
// it is flushed explicitly.
type FlushFunc func(key Key, draft interface{})

type pendingEntry struct {
	draft interface{}
	timer *time.Timer
}

// Coalescer holds at most one pending draft per group. Submitting again
// within the window replaces the draft in place and resets the timer, so
// observers see exactly one event per group per quiescent period, always
// carrying the last submitted value.
type Coalescer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[Key]*pendingEntry
	flush   FlushFunc
	stopped bool
}

func NewCoalescer(window time.Duration, flush FlushFunc) *Coalescer {
	return &Coalescer{
		window:  window,
		pending: make(map[Key]*pendingEntry),
		flush:   flush,
	}
}

// Submit stages a draft for the group, replacing any pending one.
func (c *Coalescer) Submit(key Key, draft interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	if entry, ok := c.pending[key]; ok {
		entry.draft = draft
		entry.timer.Reset(c.window)
		return
	}

	entry := &pendingEntry{draft: draft}
	entry.timer = time.AfterFunc(c.window, func() {
		c.fire(key)
	})
	c.pending[key] = entry
}

// FlushActor immediately flushes every pending group belonging to the
// actor. Called when a non-grouped event from the same actor arrives, so
// ordering between the coalesced update and the new event is preserved.
func (c *Coalescer) FlushActor(sessionId, actorId uuid.UUID) {
	c.flushMatching(func(key Key) bool {
		return key.SessionId == sessionId && key.ActorId == actorId
	})
}

// FlushSession drains all pending groups of a session, used on teardown.
func (c *Coalescer) FlushSession(sessionId uuid.UUID) {
	c.flushMatching(func(key Key) bool {
		return key.SessionId == sessionId
	})
}

// DropSession discards pending groups without flushing; used when the
// session has been deleted and the drafts are moot.
func (c *Coalescer) DropSession(sessionId uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.pending {
		if key.SessionId == sessionId {
			entry.timer.Stop()
			delete(c.pending, key)
		}
	}
}

// Stop cancels all timers and flushes nothing further.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for key, entry := range c.pending {
		entry.timer.Stop()
		delete(c.pending, key)
	}
}

func (c *Coalescer) fire(key Key) {
	c.mu.Lock()
	entry, ok := c.pending[key]
	if !ok || c.stopped {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	draft := entry.draft
	c.mu.Unlock()

	c.flush(key, draft)
}

func (c *Coalescer) flushMatching(match func(Key) bool) {
	c.mu.Lock()
	var toFlush []struct {
		key   Key
		draft interface{}
	}
	for key, entry := range c.pending {
		if match(key) {
			entry.timer.Stop()
			toFlush = append(toFlush, struct {
				key   Key
				draft interface{}
			}{key, entry.draft})
			delete(c.pending, key)
		}
	}
	stopped := c.stopped
	c.mu.Unlock()

	if stopped {
		return
	}
	for _, f := range toFlush {
		c.flush(f.key, f.draft)
	}
}
