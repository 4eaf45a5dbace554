// Package pgstore provides a PostgreSQL implementation of message.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/confide/internal/message"
)

var tracer = otel.Tracer("github.com/linnemanlabs/confide/internal/message/pgstore")

//go:embed schema.sql
var schema string

// Store persists messages and configuration parameters in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const messageColumns = `id, subject, body, category, priority, status, hr_note, submitted_at,
	acknowledged_at, acknowledged_by_id, acknowledged_by, resolved_at, resolved_by_id, resolved_by,
	notified_to, mail_sent`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Create inserts a new message.
func (s *Store) Create(ctx context.Context, m *message.Message) error {
	ctx, span := startSpan(ctx, "pgstore.Create", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO anonymous_messages (id, subject, body, category, priority, status, hr_note, submitted_at, notified_to, mail_sent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.Subject, m.Body, string(m.Category), int16(m.Priority), string(m.Status), m.HRNote,
		m.SubmittedAt, m.NotifiedTo, m.MailSent,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert message: %w", err))
	}
	return nil
}

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id string) (*message.Message, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	m, err := scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM anonymous_messages WHERE id = $1`, id))
	if err != nil {
		return nil, false, fail(span, err)
	}
	if m == nil {
		return nil, false, nil
	}
	return m, true, nil
}

// List returns messages matching f, newest first.
func (s *Store) List(ctx context.Context, f message.Filter) ([]*message.Message, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT")
	defer span.End()

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if !f.Since.IsZero() {
		add("submitted_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("submitted_at < $%d", f.Until)
	}

	query := `SELECT ` + messageColumns + ` FROM anonymous_messages`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query messages: %w", err))
	}
	defer rows.Close()

	var out []*message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate messages: %w", err))
	}
	span.SetAttributes(attribute.Int("db.response.returned_rows", len(out)))
	return out, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
// When fn fails the transaction is rolled back.
func (s *Store) Update(ctx context.Context, id string, fn message.MutateFunc) (*message.Message, error) {
	ctx, span := startSpan(ctx, "pgstore.Update", "UPDATE")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	m, err := scanMessage(tx.QueryRow(ctx, `SELECT `+messageColumns+` FROM anonymous_messages WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fail(span, err)
	}
	if m == nil {
		return nil, message.ErrNotFound
	}

	if err := fn(m); err != nil {
		return nil, err
	}

	if err := writeMessage(ctx, tx, m); err != nil {
		return nil, fail(span, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fail(span, fmt.Errorf("commit: %w", err))
	}
	return m, nil
}

// SetMailSent records the outcome of the notification hand-off.
func (s *Store) SetMailSent(ctx context.Context, id string, sent bool) error {
	ctx, span := startSpan(ctx, "pgstore.SetMailSent", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `UPDATE anonymous_messages SET mail_sent = $2 WHERE id = $1`, id, sent)
	if err != nil {
		return fail(span, fmt.Errorf("update mail_sent: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return message.ErrNotFound
	}
	return nil
}

// GetParam returns a configuration parameter.
func (s *Store) GetParam(ctx context.Context, key string) (message.Param, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetParam", "SELECT")
	defer span.End()

	var p message.Param
	err := s.pool.QueryRow(ctx,
		`SELECT value, updated_at, updated_by FROM config_parameters WHERE key = $1`, key,
	).Scan(&p.Value, &p.UpdatedAt, &p.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Param{}, false, nil
		}
		return message.Param{}, false, fail(span, fmt.Errorf("select param %s: %w", key, err))
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, true, nil
}

// SetParam upserts a configuration parameter.
func (s *Store) SetParam(ctx context.Context, key, value, updatedBy string) error {
	ctx, span := startSpan(ctx, "pgstore.SetParam", "UPSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO config_parameters (key, value, updated_at, updated_by) VALUES ($1, $2, now(), $3)
		 ON CONFLICT (key) DO UPDATE SET
			value      = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`,
		key, value, updatedBy,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert param %s: %w", key, err))
	}
	return nil
}

func writeMessage(ctx context.Context, tx pgx.Tx, m *message.Message) error {
	var (
		ackAt, resAt   *time.Time
		ackID, ackName *string
		resID, resName *string
	)
	if !m.AcknowledgedAt.IsZero() {
		ackAt = &m.AcknowledgedAt
	}
	if !m.ResolvedAt.IsZero() {
		resAt = &m.ResolvedAt
	}
	if m.AcknowledgedBy != nil {
		ackID, ackName = &m.AcknowledgedBy.ID, &m.AcknowledgedBy.Name
	}
	if m.ResolvedBy != nil {
		resID, resName = &m.ResolvedBy.ID, &m.ResolvedBy.Name
	}

	_, err := tx.Exec(ctx,
		`UPDATE anonymous_messages SET
			status             = $2,
			hr_note            = $3,
			acknowledged_at    = $4,
			acknowledged_by_id = $5,
			acknowledged_by    = $6,
			resolved_at        = $7,
			resolved_by_id     = $8,
			resolved_by        = $9,
			mail_sent          = $10
		 WHERE id = $1`,
		m.ID, string(m.Status), m.HRNote, ackAt, ackID, ackName, resAt, resID, resName, m.MailSent,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// scanMessage scans a single row into a message.Message.
// Returns (nil, nil) when no row is found.
func scanMessage(row pgx.Row) (*message.Message, error) {
	var (
		m                message.Message
		category, status string
		priority         int16
		ackAt, resAt     *time.Time
		ackID, ackName   *string
		resID, resName   *string
	)

	err := row.Scan(
		&m.ID, &m.Subject, &m.Body, &category, &priority, &status, &m.HRNote, &m.SubmittedAt,
		&ackAt, &ackID, &ackName, &resAt, &resID, &resName,
		&m.NotifiedTo, &m.MailSent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	m.Category = message.Category(category)
	m.Priority = message.Priority(priority)
	m.Status = message.Status(status)
	if ackAt != nil {
		m.AcknowledgedAt = *ackAt
	}
	if resAt != nil {
		m.ResolvedAt = *resAt
	}
	if ackID != nil {
		m.AcknowledgedBy = &message.ActorRef{ID: *ackID, Name: deref(ackName)}
	}
	if resID != nil {
		m.ResolvedBy = &message.ActorRef{ID: *resID, Name: deref(resName)}
	}
	return &m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
