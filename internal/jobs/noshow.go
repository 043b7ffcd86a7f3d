// Package jobs runs the platform's background schedules.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/domain/appointment"
)

// DefaultNoShowGrace is how long past its start time an unconfirmed slot may
// sit before the sweeper flips it to no-show.
const DefaultNoShowGrace = 30 * time.Minute

// NoShowSweeper periodically marks overdue scheduled and confirmed
// appointments as no-show, which frees their slots for rebooking.
type NoShowSweeper struct {
	svc    *appointment.Service
	grace  time.Duration
	logger zerolog.Logger
	cron   *cron.Cron
}

func NewNoShowSweeper(svc *appointment.Service, grace time.Duration, logger zerolog.Logger) *NoShowSweeper {
	if grace <= 0 {
		grace = DefaultNoShowGrace
	}
	return &NoShowSweeper{
		svc:    svc,
		grace:  grace,
		logger: logger.With().Str("job", "noshow-sweeper").Logger(),
		cron:   cron.New(),
	}
}

// Start registers the sweep on the given cron spec and begins running it.
func (s *NoShowSweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Run(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("spec", spec).Dur("grace", s.grace).Msg("no-show sweeper started")
	return nil
}

// Run executes one sweep. Exposed so the server can also trigger it manually.
func (s *NoShowSweeper) Run(ctx context.Context) {
	n, err := s.svc.SweepNoShows(ctx, s.grace)
	if err != nil {
		s.logger.Error().Err(err).Msg("no-show sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("marked", n).Msg("no-show sweep complete")
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *NoShowSweeper) Stop() {
	<-s.cron.Stop().Done()
}
