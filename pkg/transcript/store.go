// Package transcript is the append-only conversation log.
package transcript

import (
	"errors"
	"sync"

	"github.com/sipeed/polychat/pkg/attachments"
)

var (
	ErrMissingID = errors.New("message id is required")
	ErrBadRole   = errors.New("unknown message role")
	ErrClosed    = errors.New("transcript is closed")
)

// Store owns every appended Message. Order is insertion order and entries
// are never edited, reordered or removed.
type Store struct {
	mu        sync.RWMutex
	messages  []Message
	listeners map[int]func(Message)
	nextID    int
	previews  *attachments.PreviewStore
	closed    bool
}

// NewStore creates an empty transcript. previews may be nil; when set, Close
// releases every preview handle referenced by the log.
func NewStore(previews *attachments.PreviewStore) *Store {
	return &Store{
		messages:  make([]Message, 0, 64),
		listeners: map[int]func(Message){},
		previews:  previews,
	}
}

// Append stores a copy of m and notifies listeners in registration order.
func (s *Store) Append(m Message) error {
	if m.ID == "" {
		return ErrMissingID
	}
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return ErrBadRole
	}

	stored := m.Clone()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.messages = append(s.messages, stored)
	ls := make([]func(Message), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(stored.Clone())
	}
	return nil
}

// Messages returns a copy of the full ordered log.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recent message.
func (s *Store) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1].Clone(), true
}

// OnAppend registers fn for every future Append.
func (s *Store) OnAppend(fn func(Message)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close ends the session: further appends fail and local previews held by
// the log are released. It returns how many handles were released.
func (s *Store) Close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true
	if s.previews == nil {
		return 0
	}
	released := 0
	for _, m := range s.messages {
		for _, a := range m.Attachments {
			if attachments.IsPreview(a.URL) && s.previews.Release(a.URL) {
				released++
			}
		}
	}
	return released
}
