package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/genmode/internal/application"
	"github.com/example/genmode/internal/stats"
)

type statsService interface {
	Stats(ctx context.Context, params application.StatsParams) (stats.Usage, error)
}

type dashboardService interface {
	Dashboard(ctx context.Context, params application.DashboardParams) (application.Dashboard, error)
}

// StatsHandler serves /stats and /dashboard.
type StatsHandler struct {
	stats     statsService
	dashboard dashboardService
	responder responder
	logger    *slog.Logger
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(stats statsService, dashboard dashboardService, logger *slog.Logger) *StatsHandler {
	base := defaultLogger(logger)
	return &StatsHandler{stats: stats, dashboard: dashboard, responder: newResponder(base), logger: base}
}

// Stats handles GET /stats?tz=. Store failures still answer 200 with zeroed counters.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "StatsHandler", "Stats", "principal_id", principal.UserID)

	loc, err := locationFromQuery(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimezone)
		return
	}

	usage, err := h.stats.Stats(r.Context(), application.StatsParams{Principal: principal, Location: loc})
	resp := statsResponse{Usage: usage}
	if err != nil {
		logger.WarnContext(r.Context(), "statistics unavailable", "error", err, "error_kind", application.ErrorKind(err))
		resp.Warning = failureMessage(err)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Dashboard handles GET /dashboard?tz=. Like Stats, a failed half answers 200 with the
// other half intact and a warning.
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "StatsHandler", "Dashboard", "principal_id", principal.UserID)

	loc, err := locationFromQuery(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTimezone)
		return
	}

	dashboard, err := h.dashboard.Dashboard(r.Context(), application.DashboardParams{Principal: principal, Location: loc})
	resp := dashboardResponse{
		Usage:             dashboard.Usage,
		Recent:            make([]translationDTO, 0, len(dashboard.Recent)),
		PersonasAvailable: dashboard.PersonasAvailable,
	}
	if err != nil {
		logger.WarnContext(r.Context(), "dashboard degraded", "error", err, "error_kind", application.ErrorKind(err))
		resp.Warning = failureMessage(err)
	}
	for _, t := range dashboard.Recent {
		resp.Recent = append(resp.Recent, toTranslationDTO(t))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type statsResponse struct {
	stats.Usage
	Warning string `json:"warning,omitempty"`
}

type dashboardResponse struct {
	Usage             stats.Usage      `json:"usage"`
	Recent            []translationDTO `json:"recent"`
	PersonasAvailable int              `json:"personas_available"`
	Warning           string           `json:"warning,omitempty"`
}

// locationFromQuery returns nil when tz is absent so the service default applies.
func locationFromQuery(r *http.Request) (*time.Location, error) {
	name := strings.TrimSpace(r.URL.Query().Get("tz"))
	if name == "" {
		return nil, nil
	}
	return time.LoadLocation(name)
}

func failureMessage(err error) string {
	var failure *application.Failure
	if errors.As(err, &failure) && failure.Message != "" {
		return failure.Message
	}
	return "History is temporarily unavailable."
}
