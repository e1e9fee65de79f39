package store

import "sync"

// Tracker records whether a response is outstanding and, while streaming,
// which message is under construction. It is advisory: views read it to
// disable input, it never blocks a request by itself.
type Tracker struct {
	mu        sync.RWMutex
	pending   bool
	messageID string

	observers observers
}

// NewTracker creates an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetPending updates the flag. messageID is dropped when isPending is false.
func (t *Tracker) SetPending(isPending bool, messageID string) {
	t.mu.Lock()
	t.set(isPending, messageID)
	t.mu.Unlock()

	t.observers.notify()
}

// TryBegin marks the tracker pending only if it was idle, and reports whether
// it did. The check and the transition happen under one lock.
func (t *Tracker) TryBegin(messageID string) bool {
	t.mu.Lock()
	if t.pending {
		t.mu.Unlock()
		return false
	}
	t.set(true, messageID)
	t.mu.Unlock()

	t.observers.notify()
	return true
}

func (t *Tracker) set(isPending bool, messageID string) {
	if !isPending {
		messageID = ""
	}
	t.pending = isPending
	t.messageID = messageID
}

// Pending returns the flag and the message id under construction.
func (t *Tracker) Pending() (bool, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pending, t.messageID
}

// IsPending reports whether a response is outstanding.
func (t *Tracker) IsPending() bool {
	pending, _ := t.Pending()
	return pending
}

// Subscribe registers fn to run after every change.
func (t *Tracker) Subscribe(fn func()) func() {
	return t.observers.add(fn)
}
