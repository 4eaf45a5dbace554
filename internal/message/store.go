package message

import (
	"context"
	"time"
)

// ParamHREmail is the configuration key holding the notification address.
const ParamHREmail = "hr_anonymous_message.hr_email"

// Param is a stored configuration value with its audit fields.
type Param struct {
	Value     string
	UpdatedAt time.Time
	UpdatedBy string
}

// MutateFunc changes a message inside Store.Update. Returning an error
// aborts the update and nothing is written.
type MutateFunc func(m *Message) error

// Store is the persistence interface for messages and configuration
// parameters.
type Store interface {
	Create(ctx context.Context, m *Message) error
	Get(ctx context.Context, id string) (*Message, bool, error)
	List(ctx context.Context, f Filter) ([]*Message, error)
	// Update loads the message, applies fn and persists the result
	// atomically. It returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, id string, fn MutateFunc) (*Message, error)
	SetMailSent(ctx context.Context, id string, sent bool) error
	GetParam(ctx context.Context, key string) (p Param, ok bool, err error)
	SetParam(ctx context.Context, key, value, updatedBy string) error
}
