// Package messageapi exposes anonymous message operations over JSON/HTTP.
package messageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/confide/internal/message"
	"github.com/linnemanlabs/confide/internal/report"
)

const submitPath = "/api/v1/messages"

// MaxRequestBytes bounds request bodies. It fits a message body at the
// longest accepted length with every character JSON-escaped as a
// surrogate pair.
const MaxRequestBytes = 256 << 10

// Traced reports whether the server should record a span for r. Submissions
// are never traced: the server span carries the client address and user
// agent of an anonymous submitter.
func Traced(r *http.Request) bool {
	return r.Method != http.MethodPost || r.URL.Path != submitPath
}

// MessageService defines the business operations messageapi needs.
type MessageService interface {
	Submit(ctx context.Context, actor message.Actor, req message.SubmitRequest) (*message.SubmitResult, error)
	Get(ctx context.Context, id string, actor message.Actor) (message.View, error)
	List(ctx context.Context, actor message.Actor, f message.Filter) ([]message.View, error)
	Acknowledge(ctx context.Context, id string, actor message.Actor) (message.View, error)
	Resolve(ctx context.Context, id string, actor message.Actor, note *string) (message.View, error)
	UpdateNote(ctx context.Context, id string, actor message.Actor, note string) (message.View, error)
	Settings(ctx context.Context, actor message.Actor) (message.Settings, error)
	UpdateSettings(ctx context.Context, actor message.Actor, email string) (message.Settings, error)
	SystemStatus(ctx context.Context) (message.SystemStatus, error)
}

// ReportGenerator builds monthly workbooks for download.
type ReportGenerator interface {
	Generate(ctx context.Context, month time.Time) (*report.Monthly, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	svc     MessageService
	reports ReportGenerator
}

// New creates a new API handler. reports may be nil, in which case the
// report download route is not registered.
func New(logger log.Logger, svc MessageService, reports ReportGenerator) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("message service is required"))
	}
	return &API{
		logger:  logger,
		svc:     svc,
		reports: reports,
	}
}

// RegisterRoutes attaches API endpoints to the router. Every route expects
// an actor in the request context.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/messages", a.handleSubmit)
		r.Get("/messages", a.handleList)
		r.Get("/messages/{id}", a.handleGet)
		r.Post("/messages/{id}/acknowledge", a.handleAcknowledge)
		r.Post("/messages/{id}/resolve", a.handleResolve)
		r.Put("/messages/{id}/note", a.handleUpdateNote)

		r.Get("/categories", a.handleCategories)
		r.Get("/status", a.handleStatus)
		r.Get("/settings", a.handleGetSettings)
		r.Put("/settings", a.handleUpdateSettings)

		if a.reports != nil {
			r.Get("/reports/monthly", a.handleMonthlyReport)
		}
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing useful to do with encode errors once the header is out
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, message.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, message.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, message.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, message.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, message.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error(r.Context(), err, msg)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// actor returns the caller or writes a 401 when authentication middleware
// did not run.
func actor(w http.ResponseWriter, r *http.Request) (message.Actor, bool) {
	act, ok := message.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	}
	return act, ok
}
