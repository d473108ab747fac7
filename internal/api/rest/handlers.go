package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oshokin/gentle-alert/internal/calendar"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
	"github.com/oshokin/gentle-alert/internal/service/scheduler"
	"github.com/oshokin/gentle-alert/internal/store"
	"github.com/oshokin/gentle-alert/internal/version"
)

// SessionView is a session with its rendering parameters at the response time.
type SessionView struct {
	alert.Session

	// Progress is the expansion progress in [0, 1].
	Progress float64 `json:"progress"`
	// Size is the overlay edge in pixels, present when the full size was requested.
	Size int `json:"size,omitempty"`
}

// CommandResponse reports whether a command changed a session.
type CommandResponse struct {
	// Applied is false when the rule had no matching session.
	Applied bool `json:"applied"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Short(),
	})
}

func (h *handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.ListRules(r.Context()))
}

func (h *handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.GetRule(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		respondServiceError(w, r, err)

		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// handleListSessions returns live sessions. The optional "full" query
// parameter is the renderer's full overlay edge and adds the current size.
func (h *handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	full := 0

	if raw := r.URL.Query().Get("full"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "full must be a non-negative integer", err)

			return
		}

		full = parsed
	}

	var (
		now      = h.clock.Now()
		sessions = h.service.Sessions(r.Context())
		views    = make([]SessionView, 0, len(sessions))
	)

	for _, session := range sessions {
		view := SessionView{Session: session, Progress: session.Progress(now)}
		if full > 0 {
			view.Size = session.Size(now, full)
		}

		views = append(views, view)
	}

	respondJSON(w, http.StatusOK, views)
}

func (h *handler) handleStop(w http.ResponseWriter, r *http.Request) {
	applied, err := h.service.Stop(r.Context(), chi.URLParam(r, "ruleID"))
	if err != nil {
		respondServiceError(w, r, err)

		return
	}

	respondJSON(w, http.StatusOK, CommandResponse{Applied: applied})
}

// handleDelay hides a visible overlay for the duration given in the "for"
// query parameter, e.g. "?for=10m".
func (h *handler) handleDelay(w http.ResponseWriter, r *http.Request) {
	d, err := time.ParseDuration(r.URL.Query().Get("for"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "for must be a duration such as 10m", err)

		return
	}

	applied, err := h.service.Delay(r.Context(), chi.URLParam(r, "ruleID"), d)
	if err != nil {
		respondServiceError(w, r, err)

		return
	}

	respondJSON(w, http.StatusOK, CommandResponse{Applied: applied})
}

func (h *handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var (
		views = h.service.ListRules(r.Context())
		rules = make([]*alert.Rule, 0, len(views))
	)

	for _, view := range views {
		rules = append(rules, view.Rule)
	}

	opts := calendar.Options{
		Now:             h.clock.Now(),
		Location:        h.location,
		IncludeDisabled: r.URL.Query().Get("disabled") == "true",
	}

	w.Header().Set("Content-Type", calendar.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="gentle-alert.ics"`)

	if err := calendar.Export(r.Context(), w, rules, opts); err != nil {
		logger.ErrorKV(r.Context(), "Unable to write calendar", "error", err)
	}
}

// handleEvents streams session transitions as server-sent events named after
// the entered state.
func (h *handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var (
		ctx        = r.Context()
		controller = http.NewResponseController(w)
	)

	events, cancel := h.service.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeComment(w, controller, "connected"); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := writeComment(w, controller, "ping"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}

			if err := writeEvent(w, controller, ev); err != nil {
				logger.DebugKV(ctx, "Event stream closed", "error", err)

				return
			}
		}
	}
}

func writeComment(w http.ResponseWriter, controller *http.ResponseController, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}

	return controller.Flush()
}

func writeEvent(w http.ResponseWriter, controller *http.ResponseController, ev alert.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Session.State, data); err != nil {
		return err
	}

	return controller.Flush()
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data) //nolint:errchkjson // The status line is already out.
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	respondJSON(w, status, response)
}

// respondServiceError maps domain errors to HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "rule not found", err)
	case errors.Is(err, alert.ErrInvalidDelay), errors.Is(err, alert.ErrInvalid):
		respondError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, scheduler.ErrStopped):
		respondError(w, http.StatusServiceUnavailable, "scheduler is stopped", nil)
	default:
		logger.ErrorKV(r.Context(), "Request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
