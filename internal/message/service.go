package message

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

const (
	maxSubjectLen = 200
	maxBodyLen    = 20000
	notifyTimeout = 30 * time.Second
)

// Policy holds workflow switches that are a deployment decision.
type Policy struct {
	// RequireAcknowledge forbids resolving a message that was never acknowledged.
	RequireAcknowledge bool
}

// SubmitResult is the outcome of a submission.
type SubmitResult struct {
	ID       string
	Status   Status
	MailSent bool
}

// Service is the business boundary for anonymous message operations.
type Service struct {
	store    Store
	notifier Notifier
	watchers []Notifier
	logger   log.Logger
	metrics  *Metrics
	policy   Policy
	now      func() time.Time
}

// NewService creates a new message service. metrics may be nil.
func NewService(store Store, notifier Notifier, logger log.Logger, metrics *Metrics, policy Policy) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
		policy:   policy,
		now:      time.Now,
	}
}

// AddWatcher registers a secondary channel told about every new message.
func (s *Service) AddWatcher(w Notifier) {
	s.watchers = append(s.watchers, w)
}

// Submit validates and stores a new anonymous message, then hands exactly one
// notification to the mail layer. The actor is only used to require an
// authenticated caller and is never stored or logged.
func (s *Service) Submit(ctx context.Context, _ Actor, req SubmitRequest) (*SubmitResult, error) {
	m, err := s.newMessage(req)
	if err != nil {
		// caller input never becomes a label value
		label := req.Category
		if !label.Valid() {
			label = "unknown"
		}
		s.metrics.submit("invalid", label)
		return nil, err
	}

	// the address is read once here and recorded on the message, later
	// settings changes do not affect who was notified
	to, err := s.hrEmail(ctx)
	if err != nil {
		s.metrics.submit("error", m.Category)
		return nil, err
	}
	if to == "" {
		s.metrics.submit("not_configured", m.Category)
		return nil, ErrNotConfigured
	}
	m.NotifiedTo = to

	if err := s.store.Create(ctx, m); err != nil {
		s.metrics.submit("error", m.Category)
		return nil, fmt.Errorf("create message: %w", err)
	}
	s.metrics.submit("accepted", m.Category)

	// nothing naming the message may share the request's trace or request ID
	bg := context.Background()
	L := s.logger.With("message_id", m.ID, "category", m.Category)
	L.Info(bg, "anonymous message submitted", "priority", m.Priority)

	n := &Notification{
		MessageID:   m.ID,
		To:          m.NotifiedTo,
		Subject:     m.Subject,
		Body:        m.Body,
		Category:    m.Category,
		Priority:    m.Priority,
		SubmittedAt: m.SubmittedAt,
	}

	sent := s.handOff(bg, L, "email", s.notifier, n)
	if sent {
		if err := s.store.SetMailSent(bg, m.ID, true); err != nil {
			L.Error(bg, err, "failed to record mail hand-off")
		}
	}
	for _, w := range s.watchers {
		s.handOff(bg, L, "watcher", w, n)
	}

	return &SubmitResult{ID: m.ID, Status: m.Status, MailSent: sent}, nil
}

func (s *Service) newMessage(req SubmitRequest) (*Message, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body is required", ErrValidation)
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return nil, fmt.Errorf("%w: message body exceeds %d characters", ErrValidation, maxBodyLen)
	}
	subject := strings.TrimSpace(req.Subject)
	if utf8.RuneCountInString(subject) > maxSubjectLen {
		return nil, fmt.Errorf("%w: subject exceeds %d characters", ErrValidation, maxSubjectLen)
	}

	category := req.Category
	if category == "" {
		category = CategoryGeneral
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}

	priority := PriorityNormal
	if req.Priority != nil {
		priority = *req.Priority
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority must be %d..%d", ErrValidation, PriorityLow, PriorityUrgent)
	}

	return &Message{
		ID:          ulid.Make().String(),
		Subject:     subject,
		Body:        body,
		Category:    category,
		Priority:    priority,
		Status:      StatusSubmitted,
		SubmittedAt: s.now().UTC(),
	}, nil
}

// handOff passes n to one channel. Failures are logged and counted only.
func (s *Service) handOff(ctx context.Context, L log.Logger, channel string, n Notifier, msg *Notification) bool {
	if n == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	start := time.Now()
	err := n.Notify(ctx, msg)
	s.metrics.notify(channel, err, time.Since(start).Seconds())
	if err != nil {
		L.Error(ctx, err, "notification hand-off failed", "channel", channel)
		return false
	}
	return true
}

// Acknowledge moves a submitted message to acknowledged.
func (s *Service) Acknowledge(ctx context.Context, id string, actor Actor) (View, error) {
	return s.transition(ctx, id, actor, StatusAcknowledged, func(m *Message) error {
		if m.Status != StatusSubmitted {
			return fmt.Errorf("%w: cannot acknowledge a %s message", ErrInvalidState, m.Status)
		}
		m.Status = StatusAcknowledged
		m.AcknowledgedAt = s.now().UTC()
		m.AcknowledgedBy = actor.ref()
		return nil
	})
}

// Resolve moves a message to resolved, optionally recording an HR note.
// Resolving straight from submitted is allowed unless the policy requires
// acknowledgement first.
func (s *Service) Resolve(ctx context.Context, id string, actor Actor, note *string) (View, error) {
	return s.transition(ctx, id, actor, StatusResolved, func(m *Message) error {
		switch m.Status {
		case StatusAcknowledged:
		case StatusSubmitted:
			if s.policy.RequireAcknowledge {
				return fmt.Errorf("%w: message must be acknowledged before it is resolved", ErrInvalidState)
			}
		default:
			return fmt.Errorf("%w: cannot resolve a %s message", ErrInvalidState, m.Status)
		}
		if note != nil {
			m.HRNote = strings.TrimSpace(*note)
		}
		m.Status = StatusResolved
		m.ResolvedAt = s.now().UTC()
		m.ResolvedBy = actor.ref()
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id string, actor Actor, to Status, fn MutateFunc) (View, error) {
	if !actor.IsManager() {
		s.metrics.transition(to, "forbidden")
		return View{}, fmt.Errorf("%w: role %q cannot change message status", ErrPermission, actor.Role)
	}

	m, err := s.store.Update(ctx, id, fn)
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, ErrInvalidState):
			result = "invalid_state"
		case errors.Is(err, ErrNotFound):
			result = "not_found"
		}
		s.metrics.transition(to, result)
		return View{}, err
	}
	s.metrics.transition(to, "ok")

	s.logger.Info(ctx, "message status changed",
		"message_id", id,
		"status", m.Status,
		"actor_id", actor.ID,
	)
	return Project(m, actor), nil
}

// UpdateNote replaces the HR internal note.
func (s *Service) UpdateNote(ctx context.Context, id string, actor Actor, note string) (View, error) {
	if !CanWrite(actor.Role, FieldHRNote) {
		return View{}, fmt.Errorf("%w: role %q cannot write %s", ErrPermission, actor.Role, FieldHRNote)
	}
	m, err := s.store.Update(ctx, id, func(m *Message) error {
		m.HRNote = strings.TrimSpace(note)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return Project(m, actor), nil
}

// Get returns the actor's view of one message. Only HR and Admin may read
// messages; no message records who sent it, so employees have nothing of
// their own to look up.
func (s *Service) Get(ctx context.Context, id string, actor Actor) (View, error) {
	if !actor.IsManager() {
		return View{}, fmt.Errorf("%w: role %q cannot read messages", ErrPermission, actor.Role)
	}
	m, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	if !ok {
		return View{}, ErrNotFound
	}
	return Project(m, actor), nil
}

// List returns messages matching f, newest first. Only HR and Admin may list.
func (s *Service) List(ctx context.Context, actor Actor, f Filter) ([]View, error) {
	if !actor.IsManager() {
		return nil, fmt.Errorf("%w: role %q cannot list messages", ErrPermission, actor.Role)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, f.Category)
	}
	msgs, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Project(m, actor))
	}
	return out, nil
}

// Messages returns raw messages for internal consumers such as reporting.
func (s *Service) Messages(ctx context.Context, f Filter) ([]*Message, error) {
	return s.store.List(ctx, f)
}

// Settings returns the notification settings. HR and Admin may read them.
func (s *Service) Settings(ctx context.Context, actor Actor) (Settings, error) {
	if !actor.IsManager() {
		return Settings{}, fmt.Errorf("%w: role %q cannot read settings", ErrPermission, actor.Role)
	}
	return s.settings(ctx)
}

// UpdateSettings stores a new notification address. Admin only.
func (s *Service) UpdateSettings(ctx context.Context, actor Actor, email string) (Settings, error) {
	if actor.Role != RoleAdmin {
		return Settings{}, fmt.Errorf("%w: only admin may change settings", ErrPermission)
	}
	addr, err := ValidateEmail(email)
	if err != nil {
		return Settings{}, err
	}
	if err := s.store.SetParam(ctx, ParamHREmail, addr, actor.ID); err != nil {
		return Settings{}, fmt.Errorf("store settings: %w", err)
	}
	s.metrics.settingsUpdated()
	s.logger.Info(ctx, "notification settings updated", "actor_id", actor.ID)
	return s.settings(ctx)
}

func (s *Service) settings(ctx context.Context) (Settings, error) {
	p, _, err := s.store.GetParam(ctx, ParamHREmail)
	if err != nil {
		return Settings{}, fmt.Errorf("read %s: %w", ParamHREmail, err)
	}
	return Settings{
		HREmail:   strings.TrimSpace(p.Value),
		UpdatedAt: p.UpdatedAt,
		UpdatedBy: p.UpdatedBy,
	}, nil
}

// HREmail returns the configured notification address, empty if unset.
func (s *Service) HREmail(ctx context.Context) (string, error) {
	return s.hrEmail(ctx)
}

func (s *Service) hrEmail(ctx context.Context) (string, error) {
	p, _, err := s.store.GetParam(ctx, ParamHREmail)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", ParamHREmail, err)
	}
	return strings.TrimSpace(p.Value), nil
}

// SystemStatus reports whether submissions can currently be delivered.
func (s *Service) SystemStatus(ctx context.Context) (SystemStatus, error) {
	to, err := s.hrEmail(ctx)
	if err != nil {
		return SystemStatus{}, err
	}
	st := SystemStatus{
		Available:         to != "",
		HREmailConfigured: to != "",
		Message:           "Anonymous messaging system is operational",
	}
	if to == "" {
		st.Message = "HR email is not configured"
	}
	return st, nil
}

// SeedHREmail sets the notification address when none is configured yet.
// It reports whether the address was applied.
func (s *Service) SeedHREmail(ctx context.Context, email string) (bool, error) {
	addr, err := ValidateEmail(email)
	if err != nil {
		return false, err
	}
	cur, err := s.hrEmail(ctx)
	if err != nil {
		return false, err
	}
	if cur != "" {
		return false, nil
	}
	if err := s.store.SetParam(ctx, ParamHREmail, addr, "startup"); err != nil {
		return false, fmt.Errorf("store settings: %w", err)
	}
	s.logger.Info(ctx, "notification address seeded from startup configuration")
	return true, nil
}

// ValidateEmail returns the bare address in s or an ErrValidation.
func ValidateEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: email address is required", ErrValidation)
	}
	a, err := mail.ParseAddress(s)
	if err != nil || a.Name != "" || a.Address != s {
		return "", fmt.Errorf("%w: malformed email address %q", ErrValidation, s)
	}
	return a.Address, nil
}
