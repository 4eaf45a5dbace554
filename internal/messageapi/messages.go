package messageapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/confide/internal/message"
)

const maxListLimit = 500

type submitResponse struct {
	ID      string         `json:"id"`
	Status  message.Status `json:"status"`
	Message string         `json:"message"`
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	var req message.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}

	res, err := a.svc.Submit(r.Context(), act, req)
	if err != nil {
		a.writeError(w, r, err, "failed to submit message")
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		ID:      res.ID,
		Status:  res.Status,
		Message: "Your anonymous message has been sent to HR.",
	})
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("confide.message.id", id))

	v, err := a.svc.Get(r.Context(), id, act)
	if err != nil {
		a.writeError(w, r, err, "failed to get message")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// parseFilter reads status, category, since, until and limit from the query.
// Dates accept RFC 3339 or YYYY-MM-DD.
func parseFilter(r *http.Request) (message.Filter, string) {
	q := r.URL.Query()
	f := message.Filter{
		Status:   message.Status(q.Get("status")),
		Category: message.Category(q.Get("category")),
	}

	parseTime := func(s string) (time.Time, bool) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	if s := q.Get("since"); s != "" {
		t, ok := parseTime(s)
		if !ok {
			return f, "invalid since"
		}
		f.Since = t
	}
	if s := q.Get("until"); s != "" {
		t, ok := parseTime(s)
		if !ok {
			return f, "invalid until"
		}
		f.Until = t
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			return f, "limit must be 1.." + strconv.Itoa(maxListLimit)
		}
		f.Limit = n
	}
	return f, ""
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	f, problem := parseFilter(r)
	if problem != "" {
		badRequest(w, problem)
		return
	}

	views, err := a.svc.List(r.Context(), act, f)
	if err != nil {
		a.writeError(w, r, err, "failed to list messages")
		return
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("confide.messages.count", len(views)))
	writeJSON(w, http.StatusOK, map[string]any{"messages": views})
}

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("confide.message.id", id))

	v, err := a.svc.Acknowledge(r.Context(), id, act)
	if err != nil {
		a.writeError(w, r, err, "failed to acknowledge message")
		return
	}
	span.SetAttributes(attribute.String("confide.message.status", string(v.Status)))
	writeJSON(w, http.StatusOK, v)
}

type noteRequest struct {
	Note *string `json:"note"`
}

func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("confide.message.id", id))

	// the body is optional
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid payload")
		return
	}

	v, err := a.svc.Resolve(r.Context(), id, act, req.Note)
	if err != nil {
		a.writeError(w, r, err, "failed to resolve message")
		return
	}
	span.SetAttributes(attribute.String("confide.message.status", string(v.Status)))
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("confide.message.id", id))

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Note == nil {
		badRequest(w, "note is required")
		return
	}

	v, err := a.svc.UpdateNote(r.Context(), id, act, *req.Note)
	if err != nil {
		a.writeError(w, r, err, "failed to update note")
		return
	}
	writeJSON(w, http.StatusOK, v)
}
