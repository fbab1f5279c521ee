package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/assafrot/api-keys-app/src/logging"
	"github.com/assafrot/api-keys-app/src/repositories"
)

const periodLayout = "2006-01"

// UsageResetService zeroes every key's usage when a new calendar month
// (UTC) begins
type UsageResetService struct {
	store    repositories.UsageResetter
	enabled  bool
	interval time.Duration
	now      func() time.Time
	period   string
	done     chan struct{}
	logger   zerolog.Logger
}

// NewUsageResetService creates a new usage reset service
func NewUsageResetService(store repositories.UsageResetter, enabled bool) *UsageResetService {
	return &UsageResetService{
		store:    store,
		enabled:  enabled,
		interval: time.Hour,
		now:      func() time.Time { return time.Now().UTC() },
		done:     make(chan struct{}),
		logger:   logging.NewLogger("usage-reset"),
	}
}

// Start records the current period and checks for rollover every interval
func (s *UsageResetService) Start(ctx context.Context) {
	if !s.enabled {
		s.logger.Info().Msg("usage reset service is disabled")
		return
	}
	s.period = s.now().Format(periodLayout)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("usage reset service stopped")
				return
			case <-s.done:
				s.logger.Info().Msg("usage reset service stopped")
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	s.logger.Info().Str("period", s.period).Msg("usage reset service started")
}

// Stop stops the background loop
func (s *UsageResetService) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// RunOnce resets usage if the month has changed since the last run and
// reports whether it did. The first call only records the period.
func (s *UsageResetService) RunOnce(ctx context.Context) bool {
	current := s.now().Format(periodLayout)
	if s.period == "" {
		s.period = current
		return false
	}
	if current == s.period {
		return false
	}

	n, err := s.store.ResetAllUsage(ctx)
	if err != nil {
		// Keep the old period so the next tick retries
		s.logger.Error().Err(err).Msg("monthly usage reset failed")
		return false
	}
	s.period = current
	s.logger.Info().Int64("keys", n).Str("period", current).Msg("monthly usage reset completed")
	return true
}
