package message

import (
	"time"
)

// Status tracks where a message is in the HR workflow. Transitions only move
// forward: submitted, acknowledged, resolved.
type Status string

const (
	// StatusSubmitted means created by an employee, not yet seen by HR
	StatusSubmitted Status = "submitted"

	// StatusAcknowledged means HR has confirmed receipt
	StatusAcknowledged Status = "acknowledged"

	// StatusResolved means HR has closed the matter, terminal
	StatusResolved Status = "resolved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

// Label is the human readable status name used in reports and mail.
func (s Status) Label() string {
	switch s {
	case StatusSubmitted:
		return "Submitted"
	case StatusAcknowledged:
		return "Acknowledged"
	case StatusResolved:
		return "Resolved"
	}
	return string(s)
}

// Category classifies what a message is about.
type Category string

const (
	CategoryComplaint      Category = "complaint"
	CategorySuggestion     Category = "suggestion"
	CategoryConcern        Category = "concern"
	CategoryHarassment     Category = "harassment"
	CategoryDiscrimination Category = "discrimination"
	CategorySafety         Category = "safety"
	CategoryEthics         Category = "ethics"
	CategoryGeneral        Category = "general"
)

// CategoryOption is a selectable category with its display label.
type CategoryOption struct {
	Value Category `json:"value"`
	Label string   `json:"label"`
}

// Categories lists every category in display order.
var Categories = []CategoryOption{
	{CategoryComplaint, "Complaint"},
	{CategorySuggestion, "Suggestion"},
	{CategoryConcern, "Concern"},
	{CategoryHarassment, "Harassment Report"},
	{CategoryDiscrimination, "Discrimination Report"},
	{CategorySafety, "Safety Issue"},
	{CategoryEthics, "Ethics Violation"},
	{CategoryGeneral, "General Message"},
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, o := range Categories {
		if o.Value == c {
			return true
		}
	}
	return false
}

// Label returns the display label, or the raw value when unknown.
func (c Category) Label() string {
	for _, o := range Categories {
		if o.Value == c {
			return o.Label
		}
	}
	return string(c)
}

// Priority orders messages for HR. Zero is low.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
	PriorityUrgent Priority = 3
)

// Valid reports whether p is within the known range.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

// Label returns the display label for p.
func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	}
	return "Normal"
}

// ActorRef identifies the HR or Admin user who performed a transition.
type ActorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is an anonymous message as persisted. It never carries the
// submitter's identity.
type Message struct {
	ID             string
	Subject        string
	Body           string
	Category       Category
	Priority       Priority
	Status         Status
	HRNote         string
	SubmittedAt    time.Time
	AcknowledgedAt time.Time
	AcknowledgedBy *ActorRef
	ResolvedAt     time.Time
	ResolvedBy     *ActorRef
	NotifiedTo     string
	MailSent       bool
}

// SubmitRequest carries the employee supplied fields of a new message.
type SubmitRequest struct {
	Subject  string    `json:"subject"`
	Body     string    `json:"message"`
	Category Category  `json:"category"`
	Priority *Priority `json:"priority,omitempty"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status   Status
	Category Category
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Settings is the singleton notification configuration.
type Settings struct {
	HREmail   string    `json:"hr_email"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// SystemStatus reports whether messaging is usable.
type SystemStatus struct {
	Available         bool   `json:"available"`
	HREmailConfigured bool   `json:"hr_email_configured"`
	Message           string `json:"message"`
}
