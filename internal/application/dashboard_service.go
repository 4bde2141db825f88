package application

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/example/genmode/internal/persona"
	"github.com/example/genmode/internal/stats"
)

// RecentLimit is the number of history entries shown on a dashboard.
const RecentLimit = 5

// DashboardService assembles the dashboard view of a user.
type DashboardService struct {
	history *HistoryService
	stats   *StatsService
	logger  *slog.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(history *HistoryService, stats *StatsService) *DashboardService {
	return NewDashboardServiceWithLogger(history, stats, nil)
}

// NewDashboardServiceWithLogger constructs a DashboardService with a specified logger.
func NewDashboardServiceWithLogger(history *HistoryService, stats *StatsService, logger *slog.Logger) *DashboardService {
	return &DashboardService{history: history, stats: stats, logger: defaultLogger(logger)}
}

// Dashboard fetches the history and the statistics concurrently. Each half degrades on
// its own: a failed history lookup leaves Recent empty and a failed statistics lookup
// leaves Usage zeroed. The returned error joins whatever failed, next to the partial
// dashboard.
func (s *DashboardService) Dashboard(ctx context.Context, params DashboardParams) (Dashboard, error) {
	logger := serviceLogger(ctx, s.logger, "DashboardService", "Dashboard", "principal_id", params.Principal.UserID)

	var (
		recent               = []Translation{}
		usage                stats.Usage
		historyErr, statsErr error
	)
	// No shared context: one half failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		list, err := s.history.ListByOwner(ctx, ListTranslationsParams{Principal: params.Principal})
		if err != nil {
			logger.WarnContext(ctx, "recent history unavailable", "error", err, "error_kind", ErrorKind(err))
			historyErr = err
			return nil
		}
		if len(list) > RecentLimit {
			list = list[:RecentLimit]
		}
		recent = list
		return nil
	})
	g.Go(func() error {
		u, err := s.stats.Stats(ctx, StatsParams{Principal: params.Principal, Location: params.Location})
		if err != nil {
			logger.WarnContext(ctx, "usage statistics unavailable", "error", err, "error_kind", ErrorKind(err))
			statsErr = err
			return nil
		}
		usage = u
		return nil
	})
	_ = g.Wait()

	return Dashboard{
		Usage:             usage,
		Recent:            recent,
		PersonasAvailable: len(persona.All()) - 1,
	}, errors.Join(historyErr, statsErr)
}
