// Package store holds the client-side conversation state: the ordered
// message log of the active session and the pending-response tracker.
// Both are subjects in an observer pattern; views subscribe and re-render on
// every mutation.
package store

import (
	"errors"
	"sync"

	"github.com/raphaelgruber/finchat/internal/models"
)

var (
	// ErrDuplicateMessage is returned when a message id is already present.
	ErrDuplicateMessage = errors.New("duplicate message id")

	// ErrMessageNotFound is returned by Replace for an unknown id.
	ErrMessageNotFound = errors.New("message not found")
)

// Messages is an insertion-ordered log of messages.
// Order reflects send/receive order, never timestamps.
// All methods are thread-safe.
type Messages struct {
	mu        sync.RWMutex
	messages  []models.Message
	index     map[string]int
	sessionID string

	observers observers
}

// NewMessages creates an empty message store.
func NewMessages() *Messages {
	return &Messages{
		index: make(map[string]int),
	}
}

// Append adds msg at the end of the log. A non-empty msg.SessionID becomes the
// store's current session id.
func (s *Messages) Append(msg models.Message) error {
	s.mu.Lock()
	if _, ok := s.index[msg.ID]; ok {
		s.mu.Unlock()
		return ErrDuplicateMessage
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	if msg.SessionID != "" {
		s.sessionID = msg.SessionID
	}
	s.mu.Unlock()

	s.observers.notify()
	return nil
}

// UpdateContent replaces the content of the message with the given id.
// Unknown ids are ignored so late updates for a cleared message are harmless.
func (s *Messages) UpdateContent(id, content string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if ok {
		s.messages[i].Content = content
	}
	s.mu.Unlock()

	if ok {
		s.observers.notify()
	}
	return ok
}

// Replace swaps the message with the given id for msg, keeping its position.
// msg may carry a new id as long as no other message already uses it.
// A non-empty msg.SessionID becomes the store's current session id.
func (s *Messages) Replace(id string, msg models.Message) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	if j, taken := s.index[msg.ID]; taken && j != i {
		s.mu.Unlock()
		return ErrDuplicateMessage
	}
	delete(s.index, id)
	s.index[msg.ID] = i
	s.messages[i] = msg
	if msg.SessionID != "" {
		s.sessionID = msg.SessionID
	}
	s.mu.Unlock()

	s.observers.notify()
	return nil
}

// Remove deletes the message with the given id and reports whether it was
// present. Later messages keep their relative order.
func (s *Messages) Remove(id string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if ok {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
		delete(s.index, id)
		for j := i; j < len(s.messages); j++ {
			s.index[s.messages[j].ID] = j
		}
	}
	s.mu.Unlock()

	if ok {
		s.observers.notify()
	}
	return ok
}

// Clear empties the log and resets the session id.
func (s *Messages) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.index = make(map[string]int)
	s.sessionID = ""
	s.mu.Unlock()

	s.observers.notify()
}

// Messages returns a copy of the log.
func (s *Messages) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Get returns the message with the given id.
func (s *Messages) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Message{}, false
	}
	return s.messages[i], true
}

// Len returns the number of messages.
func (s *Messages) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// SessionID returns the current session id, or "" when unset.
func (s *Messages) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Subscribe registers fn to run after every mutation and returns a function
// that removes it.
func (s *Messages) Subscribe(fn func()) func() {
	return s.observers.add(fn)
}
