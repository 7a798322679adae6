package imagery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-imagery/internal/logging"
	"github.com/i474232898/weather-imagery/internal/metrics"
)

// Deps are the external handles every component is built from.
type Deps struct {
	Source  Source
	Store   ObjectStore
	Catalog Catalog
	// Clock defaults to the wall clock.
	Clock clockwork.Clock
	// ImageHost is the public URL prefix artifacts are served under.
	ImageHost string
	// Retention defaults to DefaultRetention.
	Retention time.Duration
}

// Refresh phases, used in logs and metrics.
const (
	PhaseCatalog    = "catalog"
	PhaseFrames     = "frames"
	PhaseBackground = "background"
	PhaseTimelapse  = "timelapse"
	PhaseCleanup    = "cleanup"
)

// UnitError is the failure of one isolated unit of a refresh cycle.
type UnitError struct {
	Kind      Kind
	SubjectID string
	Phase     string
	Err       error
}

func (e *UnitError) Error() string {
	if e.SubjectID == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Kind, e.SubjectID, e.Phase, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// Service wires the gateway, composer, assemblers and janitor together and
// exposes the operations the scheduler and the command layer call.
type Service struct {
	catalog   Catalog
	source    Source
	gateway   *Gateway
	composer  *Composer
	radar     *Assembler
	satellite *Assembler
	janitor   *Janitor
	log       zerolog.Logger
}

// NewService creates a Service from deps.
func NewService(deps Deps) *Service {
	gateway := NewGateway(deps.Store)
	composer := NewComposer(deps.Source, gateway, deps.Store)

	return &Service{
		catalog:   deps.Catalog,
		source:    deps.Source,
		gateway:   gateway,
		composer:  composer,
		radar:     NewAssembler(RadarTimelapse, deps, gateway, composer),
		satellite: NewAssembler(SatelliteTimelapse, deps, gateway, nil),
		janitor:   NewJanitor(deps.Store, deps.Clock, deps.Retention),
		log:       logging.Component("service"),
	}
}

// RefreshAll runs one full cycle: radar frames, backgrounds and timelapses,
// then satellite frames and timelapses, then the janitor. Every (subject,
// phase) unit is isolated: its failure is logged and the cycle moves on. The
// returned error joins the UnitErrors of the cycle.
func (s *Service) RefreshAll(ctx context.Context) error {
	start := time.Now()
	log := s.log.With().Str("cycle", uuid.New().String()[:8]).Logger()
	log.Info().Msg("refresh cycle started")

	var failures []error
	run := func(kind Kind, subjectID, phase string, fn func() error) {
		if err := isolate(fn); err != nil {
			metrics.RefreshFailures.WithLabelValues(phase).Inc()
			log.Error().Err(err).
				Str("kind", string(kind)).
				Str("subject", subjectID).
				Str("phase", phase).
				Msg("refresh unit failed")
			failures = append(failures, &UnitError{Kind: kind, SubjectID: subjectID, Phase: phase, Err: err})
		}
	}

	var radars, satellites []Subject
	run(KindRadar, "", PhaseCatalog, func() (err error) {
		radars, err = s.catalog.RadarSubjects(ctx)
		return err
	})
	for _, sub := range radars {
		log.Info().Str("subject", sub.ID).Str("name", sub.Name).Msg("background fetch")
		run(KindRadar, sub.ID, PhaseFrames, func() error {
			_, err := s.RefreshFrames(ctx, RadarTimelapse, sub.ID)
			return err
		})
		run(KindRadar, sub.ID, PhaseBackground, func() error {
			_, err := s.composer.Compose(ctx, sub.ID)
			return err
		})
		run(KindRadar, sub.ID, PhaseTimelapse, func() error {
			_, err := s.radar.Generate(ctx, sub.ID)
			return err
		})
	}

	run(KindSatellite, "", PhaseCatalog, func() (err error) {
		satellites, err = s.catalog.SatelliteSubjects(ctx)
		return err
	})
	for _, sub := range satellites {
		log.Info().Str("subject", sub.ID).Str("name", sub.Name).Msg("background fetch")
		run(KindSatellite, sub.ID, PhaseFrames, func() error {
			_, err := s.RefreshFrames(ctx, SatelliteTimelapse, sub.ID)
			return err
		})
		run(KindSatellite, sub.ID, PhaseTimelapse, func() error {
			_, err := s.satellite.Generate(ctx, sub.ID)
			return err
		})
	}

	run("", "", PhaseCleanup, func() error {
		_, err := s.Cleanup(ctx)
		return err
	})

	elapsed := time.Since(start)
	metrics.RefreshDuration.Observe(elapsed.Seconds())
	log.Info().Dur("elapsed", elapsed).Int("failures", len(failures)).Msg("refresh cycle finished")

	return errors.Join(failures...)
}

// RefreshFrames makes sure every conforming remote frame of the subject is
// cached. It returns the number of frames that were downloaded.
func (s *Service) RefreshFrames(ctx context.Context, profile Profile, subjectID string) (int, error) {
	sess, err := s.source.OpenSession(ctx)
	if err != nil {
		return 0, err
	}
	defer closeSession(s.log, sess)

	paths, err := sess.ListFrames(ctx, profile.Dir, subjectID, profile.Ext)
	if err != nil {
		return 0, err
	}
	frames, _ := SelectRecent(profile.Kind, subjectID, paths, len(paths))

	fetched := 0
	for _, p := range frames {
		hit, err := s.gateway.Ensure(ctx, sess, profile.Cache, p)
		if err != nil {
			return fetched, err
		}
		if !hit {
			fetched++
		}
	}
	return fetched, nil
}

// ComposeBackgrounds regenerates the base composite of every radar. It is run
// once at process start; failures are isolated per radar.
func (s *Service) ComposeBackgrounds(ctx context.Context) error {
	radars, err := s.catalog.RadarSubjects(ctx)
	if err != nil {
		return err
	}

	s.log.Info().Int("radars", len(radars)).Msg("pre-generating radar backgrounds")
	var failures []error
	for _, sub := range radars {
		err := isolate(func() error {
			_, err := s.composer.Compose(ctx, sub.ID)
			return err
		})
		if err != nil {
			metrics.RefreshFailures.WithLabelValues(PhaseBackground).Inc()
			s.log.Error().Err(err).Str("subject", sub.ID).Msg("background generation failed")
			failures = append(failures, &UnitError{Kind: KindRadar, SubjectID: sub.ID, Phase: PhaseBackground, Err: err})
		}
	}
	return errors.Join(failures...)
}

// GenerateRadarTimelapse returns the radar timelapse for the current minute.
func (s *Service) GenerateRadarTimelapse(ctx context.Context, subjectID string) (Artifact, error) {
	return s.radar.Generate(ctx, subjectID)
}

// GenerateSatelliteTimelapse returns the satellite timelapse for the current
// minute.
func (s *Service) GenerateSatelliteTimelapse(ctx context.Context, subjectID string) (Artifact, error) {
	return s.satellite.Generate(ctx, subjectID)
}

// Cleanup runs the janitor once.
func (s *Service) Cleanup(ctx context.Context) (SweepReport, error) {
	return s.janitor.Sweep(ctx)
}

// Subjects lists the catalog entries of kind.
func (s *Service) Subjects(ctx context.Context, kind Kind) ([]Subject, error) {
	if kind == KindSatellite {
		return s.catalog.SatelliteSubjects(ctx)
	}
	return s.catalog.RadarSubjects(ctx)
}

// Lookup delegates to the catalog.
func (s *Service) Lookup(ctx context.Context, kind Kind, id string) (Subject, error) {
	return s.catalog.Lookup(ctx, kind, id)
}

// isolate runs fn, turning a panic into an error so one unit can never take
// the process down.
func isolate(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
