package grants

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically expires stale grants. Liveness checks never depend on
// it (IsLiveAt rechecks the clock), so the sweep only keeps stored statuses
// and listings tidy.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval. An initial
// sweep runs immediately so restarts do not leave stale rows lying around.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.svc.SweepExpired(ctx); err != nil {
		s.logger.Error().Err(err).Msg("grant sweep failed")
	}
}
