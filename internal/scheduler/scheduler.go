package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-imagery/internal/logging"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 15 * time.Minute

// Refresher runs one full refresh cycle.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Scheduler periodically runs the refresh cycle. Cycles never overlap: a run
// that is still going when the next tick fires makes that tick a no-op.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler.
func New(interval time.Duration, refresher Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		log:       logging.Component("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first cycle runs immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = int(DefaultInterval.Minutes())
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.run); err != nil {
		return err
	}

	s.log.Info().Int("interval_minutes", minutes).Msg("scheduler started")
	s.scheduler.StartAsync()
	return nil
}

// Stop cancels the running cycle and any future ones.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("refresh cycle panicked")
		}
	}()

	s.log.Info().Msg("running refresh cycle")
	if err := s.refresher.RefreshAll(s.ctx); err != nil {
		s.log.Warn().Err(err).Msg("refresh cycle completed with failures")
		return
	}
	s.log.Info().Msg("refresh cycle completed")
}
