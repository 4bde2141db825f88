package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/genmode/internal/stats"
)

// StatsService computes usage statistics from a user's history.
type StatsService struct {
	history  *HistoryService
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewStatsService constructs a StatsService. Calendar days default to location.
func NewStatsService(history *HistoryService, location *time.Location, now func() time.Time) *StatsService {
	return NewStatsServiceWithLogger(history, location, now, nil)
}

// NewStatsServiceWithLogger constructs a StatsService with a specified logger.
func NewStatsServiceWithLogger(history *HistoryService, location *time.Location, now func() time.Time, logger *slog.Logger) *StatsService {
	if location == nil {
		location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &StatsService{history: history, location: location, now: now, logger: defaultLogger(logger)}
}

// Stats returns the user's usage statistics. When the history cannot be read the result is
// all zero and err describes the failure.
func (s *StatsService) Stats(ctx context.Context, params StatsParams) (stats.Usage, error) {
	list, err := s.history.ListByOwner(ctx, ListTranslationsParams{Principal: params.Principal, UserID: params.UserID})
	if err != nil {
		serviceLogger(ctx, s.logger, "StatsService", "Stats", "user_id", params.UserID).
			WarnContext(ctx, "returning zero statistics", "error", err, "error_kind", ErrorKind(err))
		return stats.Usage{}, err
	}
	return s.compute(list, params.Location), nil
}

func (s *StatsService) compute(list []Translation, location *time.Location) stats.Usage {
	if location == nil {
		location = s.location
	}
	records := make([]stats.Record, len(list))
	for i, t := range list {
		records[i] = stats.Record{Persona: string(t.Persona), CreatedAt: t.CreatedAt}
	}
	return stats.Compute(records, s.now().In(location))
}
