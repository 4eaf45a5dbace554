package message

import (
	"context"
	"time"
)

// Notification is what the service hands to the mail layer after a
// successful submission. It never includes the submitter.
type Notification struct {
	MessageID   string
	To          string
	Subject     string
	Body        string
	Category    Category
	Priority    Priority
	SubmittedAt time.Time
}

// Notifier delivers a Notification. Delivery details (SMTP, retries) are the
// implementation's concern.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}
