package messageapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/linnemanlabs/confide/internal/message"
	"github.com/linnemanlabs/confide/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": message.Categories})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	st, err := a.svc.SystemStatus(r.Context())
	if err != nil {
		a.writeError(w, r, err, "failed to read system status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	s, err := a.svc.Settings(r.Context(), act)
	if err != nil {
		a.writeError(w, r, err, "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type settingsRequest struct {
	HREmail string `json:"hr_email"`
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	s, err := a.svc.UpdateSettings(r.Context(), act, req.HREmail)
	if err != nil {
		a.writeError(w, r, err, "failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	if act.Role != message.RoleAdmin {
		a.writeError(w, r, fmt.Errorf("%w: only admin may download reports", message.ErrPermission), "")
		return
	}
	month, err := report.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	rep, err := a.reports.Generate(r.Context(), month)
	if err != nil {
		a.writeError(w, r, err, "failed to generate report")
		return
	}

	a.logger.Info(r.Context(), "monthly report downloaded",
		"month", month.Format("2006-01"),
		"messages", rep.Total,
		"actor_id", act.ID,
	)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Workbook)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rep.Workbook)
}
