package reporter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"guest-presence-backend/config"
	"guest-presence-backend/internal/metrics"
	"guest-presence-backend/internal/presence"
)

// StatsSource computes the current day's presence figures.
type StatsSource interface {
	ComputeTodayStats(ctx context.Context) (*presence.TodayStats, error)
}

// Service periodically publishes presence stats as gauges.
type Service struct {
	cfg    *config.ReporterConfig
	source StatsSource
	log    *zap.Logger
}

func NewService(cfg *config.ReporterConfig, source StatsSource, log *zap.Logger) *Service {
	return &Service{cfg: cfg, source: source, log: log}
}

// Run refreshes the gauges immediately and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("stats reporter is disabled, not starting")
		return
	}
	s.log.Info("starting stats reporter", zap.Duration("interval", s.cfg.Interval))

	s.RefreshOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stats reporter shutting down")
			return
		case <-timer.C:
			s.RefreshOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// RefreshOnce computes today's stats and publishes them. Failures are logged
// and leave the previous values in place.
func (s *Service) RefreshOnce(ctx context.Context) *presence.TodayStats {
	stats, err := s.source.ComputeTodayStats(ctx)
	if err != nil {
		s.log.Warn("stats refresh failed", zap.Error(err))
		return nil
	}
	metrics.RecordStats(stats.CurrentGuests, stats.TotalCheckins, stats.AverageStayMinutes, time.Now())
	s.log.Debug("stats refreshed",
		zap.Int64("current_guests", stats.CurrentGuests),
		zap.Int64("today_checkins", stats.TotalCheckins),
	)
	return stats
}
