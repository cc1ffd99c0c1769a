// Package events publishes short lived user notices to registered receivers.
package events

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long a notice stays active.
const DefaultTTL = 3 * time.Second

// Kind identifies the severity of a notice.
type Kind string

// Set of notice kinds.
const (
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is a message for the user. Ids increase monotonically.
type Notice struct {
	ID      uint64    `json:"id"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive notices.
type Events struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	m      map[string]chan Notice
	nextID uint64
	active []Notice
}

// New constructs an events for registering and receiving notices. A ttl of
// zero uses DefaultTTL.
func New(ttl time.Duration) *Events {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Events{
		ttl: ttl,
		now: time.Now,
		m:   make(map[string]chan Notice),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Subscribe.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Subscribe takes a unique id and returns a channel that can be used
// to receive notices.
func (evt *Events) Subscribe(id string) <-chan Notice {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if exists {
		return ch
	}

	// A notice is dropped when the receiver is not ready, this buffer gives
	// a slow websocket writer room to catch up.
	const noticeBuffer = 100

	evt.m[id] = make(chan Notice, noticeBuffer)
	return evt.m[id]
}

// Unsubscribe closes and removes the channel that was provided by
// the call to Subscribe.
func (evt *Events) Unsubscribe(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// =============================================================================

// Success publishes a success notice.
func (evt *Events) Success(format string, args ...any) Notice {
	return evt.publish(KindSuccess, fmt.Sprintf(format, args...))
}

// Warning publishes a warning notice.
func (evt *Events) Warning(format string, args ...any) Notice {
	return evt.publish(KindWarning, fmt.Sprintf(format, args...))
}

// Error publishes an error notice.
func (evt *Events) Error(format string, args ...any) Notice {
	return evt.publish(KindError, fmt.Sprintf(format, args...))
}

// Active returns the notices that have not expired, oldest first.
func (evt *Events) Active() []Notice {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	evt.prune()

	return append([]Notice(nil), evt.active...)
}

// Dismiss removes the notice before it expires.
func (evt *Events) Dismiss(id uint64) bool {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for i, n := range evt.active {
		if n.ID == id {
			evt.active = append(evt.active[:i], evt.active[i+1:]...)
			return true
		}
	}

	return false
}

// publish records the notice and signals it to every registered channel.
// It will not block waiting for a receiver on any given channel.
func (evt *Events) publish(kind Kind, msg string) Notice {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	evt.prune()

	evt.nextID++
	now := evt.now()

	n := Notice{
		ID:      evt.nextID,
		Kind:    kind,
		Message: msg,
		Created: now,
		Expires: now.Add(evt.ttl),
	}
	evt.active = append(evt.active, n)

	for _, ch := range evt.m {
		select {
		case ch <- n:
		default:
		}
	}

	return n
}

// prune must be called with the lock held.
func (evt *Events) prune() {
	now := evt.now()

	keep := evt.active[:0]
	for _, n := range evt.active {
		if now.Before(n.Expires) {
			keep = append(keep, n)
		}
	}
	evt.active = keep
}
