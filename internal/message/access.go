package message

import (
	"context"
	"slices"
	"time"
)

// Role is the access group an actor belongs to.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleHR || r == RoleAdmin
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Role Role   `yaml:"role"`
}

// IsManager reports whether the actor may run HR workflow operations.
func (a Actor) IsManager() bool {
	return a.Role == RoleHR || a.Role == RoleAdmin
}

func (a Actor) ref() *ActorRef {
	return &ActorRef{ID: a.ID, Name: a.Name}
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying the actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// Field names a restricted message attribute.
type Field string

const (
	FieldHRNote         Field = "hr_note"
	FieldAcknowledgedBy Field = "acknowledged_by"
	FieldResolvedBy     Field = "resolved_by"
	FieldNotifiedTo     Field = "notified_to"
	FieldMailSent       Field = "mail_sent"
)

type fieldRule struct {
	read  []Role
	write []Role
}

// fieldAccess maps restricted fields to the roles that may see or change
// them. Fields not listed here are readable by any authenticated actor and
// are never writable after submission.
var fieldAccess = map[Field]fieldRule{
	FieldHRNote:         {read: []Role{RoleHR, RoleAdmin}, write: []Role{RoleHR, RoleAdmin}},
	FieldAcknowledgedBy: {read: []Role{RoleHR, RoleAdmin}},
	FieldResolvedBy:     {read: []Role{RoleHR, RoleAdmin}},
	FieldNotifiedTo:     {read: []Role{RoleHR, RoleAdmin}},
	FieldMailSent:       {read: []Role{RoleHR, RoleAdmin}},
}

// CanRead reports whether role may read field f.
func CanRead(role Role, f Field) bool {
	rule, ok := fieldAccess[f]
	if !ok {
		return true
	}
	return slices.Contains(rule.read, role)
}

// CanWrite reports whether role may write field f.
func CanWrite(role Role, f Field) bool {
	rule, ok := fieldAccess[f]
	if !ok {
		return false
	}
	return slices.Contains(rule.write, role)
}

// View is the projection of a Message a given actor is allowed to see.
// Restricted fields are nil when hidden.
type View struct {
	ID             string     `json:"id"`
	Subject        string     `json:"subject,omitempty"`
	Body           string     `json:"message"`
	Category       Category   `json:"category"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	HRNote         *string    `json:"hr_note,omitempty"`
	AcknowledgedBy *ActorRef  `json:"acknowledged_by,omitempty"`
	ResolvedBy     *ActorRef  `json:"resolved_by,omitempty"`
	NotifiedTo     *string    `json:"notified_to,omitempty"`
	MailSent       *bool      `json:"mail_sent,omitempty"`
}

// Project returns the view of m visible to actor.
func Project(m *Message, actor Actor) View {
	v := View{
		ID:          m.ID,
		Subject:     m.Subject,
		Body:        m.Body,
		Category:    m.Category,
		Priority:    m.Priority,
		Status:      m.Status,
		SubmittedAt: m.SubmittedAt,
	}
	if !m.AcknowledgedAt.IsZero() {
		t := m.AcknowledgedAt
		v.AcknowledgedAt = &t
	}
	if !m.ResolvedAt.IsZero() {
		t := m.ResolvedAt
		v.ResolvedAt = &t
	}

	role := actor.Role
	if CanRead(role, FieldHRNote) {
		note := m.HRNote
		v.HRNote = &note
	}
	if CanRead(role, FieldAcknowledgedBy) && m.AcknowledgedBy != nil {
		ref := *m.AcknowledgedBy
		v.AcknowledgedBy = &ref
	}
	if CanRead(role, FieldResolvedBy) && m.ResolvedBy != nil {
		ref := *m.ResolvedBy
		v.ResolvedBy = &ref
	}
	if CanRead(role, FieldNotifiedTo) {
		to := m.NotifiedTo
		v.NotifiedTo = &to
	}
	if CanRead(role, FieldMailSent) {
		sent := m.MailSent
		v.MailSent = &sent
	}
	return v
}
