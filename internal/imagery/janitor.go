package imagery

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-imagery/internal/logging"
	"github.com/i474232898/weather-imagery/internal/metrics"
)

// DefaultRetention is how long cached frames are kept.
const DefaultRetention = 24 * time.Hour

// SweepTarget is a cache prefix together with the frame naming pattern its
// objects must follow to be eligible for deletion.
type SweepTarget struct {
	Prefix string
	Kind   Kind
}

// ManagedPrefixes are the frame caches the janitor sweeps.
var ManagedPrefixes = []SweepTarget{
	{Prefix: RadarCachePrefix, Kind: KindRadar},
	{Prefix: SatelliteCachePrefix, Kind: KindSatellite},
}

// SweepReport summarises one janitor run.
type SweepReport struct {
	Scanned int `json:"scanned"`
	Matched int `json:"matched"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Janitor deletes cached frames whose embedded timestamp is older than the
// retention window. It keeps no state between runs, so overlapping runs are
// harmless.
type Janitor struct {
	store     ObjectStore
	clock     clockwork.Clock
	retention time.Duration
	targets   []SweepTarget
	log       zerolog.Logger
}

// NewJanitor creates a Janitor over the managed prefixes. A zero retention
// means DefaultRetention.
func NewJanitor(store ObjectStore, clock clockwork.Clock, retention time.Duration) *Janitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Janitor{
		store:     store,
		clock:     clock,
		retention: retention,
		targets:   ManagedPrefixes,
		log:       logging.Component("janitor"),
	}
}

// Sweep scans every managed prefix once. Individual delete failures are
// logged and counted; only listing failures are returned.
func (j *Janitor) Sweep(ctx context.Context) (SweepReport, error) {
	var (
		report SweepReport
		errs   []error
	)
	now := j.clock.Now().UTC()

	for _, target := range j.targets {
		if err := j.sweepPrefix(ctx, target, now, &report); err != nil {
			j.log.Error().Err(err).Str("prefix", target.Prefix).Msg("sweep failed")
			errs = append(errs, err)
		}
	}

	j.log.Info().
		Int("scanned", report.Scanned).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Msg("cache sweep finished")

	return report, errors.Join(errs...)
}

func (j *Janitor) sweepPrefix(ctx context.Context, target SweepTarget, now time.Time, report *SweepReport) error {
	objects, err := j.store.List(ctx, target.Prefix+"/", "/")
	if err != nil {
		return storageErr("list", target.Prefix, err)
	}

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++

		matched, expired := Expired(target.Kind, path.Base(obj.Key), now, j.retention)
		if !matched {
			continue
		}
		report.Matched++
		if !expired {
			continue
		}

		err := j.store.Delete(ctx, obj.Key)
		switch {
		case err == nil:
			report.Deleted++
			metrics.JanitorDeleted.WithLabelValues(target.Prefix).Inc()
			j.log.Debug().Str("key", obj.Key).Msg("deleted expired frame")
		case errors.Is(err, ErrObjectNotFound):
			// Removed by a concurrent sweep.
		default:
			report.Failed++
			metrics.JanitorFailures.WithLabelValues(target.Prefix).Inc()
			j.log.Warn().Err(err).Str("key", obj.Key).Msg("failed to delete expired frame")
		}
	}
	return nil
}

// Expired reports whether basename is a frame name of kind and, if so,
// whether its embedded UTC timestamp is more than retention before now.
func Expired(kind Kind, basename string, now time.Time, retention time.Duration) (matched, expired bool) {
	if path.Base(basename) != basename {
		return false, false
	}
	name, ok := ParseFrameName(kind, basename)
	if !ok {
		return false, false
	}
	return true, now.Sub(name.Time) > retention
}

// String implements fmt.Stringer for log output.
func (r SweepReport) String() string {
	return fmt.Sprintf("scanned=%d matched=%d deleted=%d failed=%d", r.Scanned, r.Matched, r.Deleted, r.Failed)
}
