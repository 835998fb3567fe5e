package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lborres/tanod/core"
)

// Sweeper periodically removes dead session rows.
type Sweeper struct {
	sessions *SessionManager
	interval time.Duration
	now      core.Clock
	log      zerolog.Logger
}

func NewSweeper(sessions *SessionManager, interval time.Duration, opts Options) *Sweeper {
	if interval <= 0 {
		interval = core.DefaultSweepInterval
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		now:      opts.clock(),
		log:      opts.logger(),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and logs the outcome.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.sessions.Sweep(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return 0
	}
	if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("sessions swept")
	}
	return removed
}
