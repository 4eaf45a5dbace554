// Package memstore provides an in-memory implementation of message.Store.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/confide/internal/message"
)

// Store holds messages and parameters in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	messages map[string]*message.Message // message ID -> message
	params   map[string]message.Param
}

// New initializes a new in-memory Store with the install-time defaults.
func New() *Store {
	return &Store{
		messages: make(map[string]*message.Message),
		params:   map[string]message.Param{message.ParamHREmail: {}},
	}
}

func clone(m *message.Message) *message.Message {
	cp := *m
	if m.AcknowledgedBy != nil {
		ref := *m.AcknowledgedBy
		cp.AcknowledgedBy = &ref
	}
	if m.ResolvedBy != nil {
		ref := *m.ResolvedBy
		cp.ResolvedBy = &ref
	}
	return &cp
}

// Create stores a copy of a new message.
func (s *Store) Create(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = clone(m)
	return nil
}

// Get retrieves a message by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*message.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, false, nil
	}
	return clone(m), true, nil
}

// List returns copies of matching messages, newest first.
func (s *Store) List(_ context.Context, f message.Filter) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*message.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		if !f.Since.IsZero() && m.SubmittedAt.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !m.SubmittedAt.Before(f.Until) {
			continue
		}
		out = append(out, clone(m))
	}

	slices.SortFunc(out, func(a, b *message.Message) int {
		if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Update applies fn to a copy under the write lock and stores it only if fn
// succeeds.
func (s *Store) Update(_ context.Context, id string, fn message.MutateFunc) (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.messages[id]
	if !ok {
		return nil, message.ErrNotFound
	}
	next := clone(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	s.messages[id] = next
	return clone(next), nil
}

// SetMailSent records the outcome of the notification hand-off.
func (s *Store) SetMailSent(_ context.Context, id string, sent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return message.ErrNotFound
	}
	m.MailSent = sent
	return nil
}

// GetParam returns a configuration parameter.
func (s *Store) GetParam(_ context.Context, key string) (message.Param, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[key]
	return p, ok, nil
}

// SetParam sets a configuration parameter.
func (s *Store) SetParam(_ context.Context, key, value, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[key] = message.Param{
		Value:     value,
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: updatedBy,
	}
	return nil
}
