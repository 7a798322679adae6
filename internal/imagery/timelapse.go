package imagery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"slices"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-imagery/internal/logging"
	"github.com/i474232898/weather-imagery/internal/metrics"
)

// Profile describes one timelapse variant.
type Profile struct {
	Kind       Kind
	Dir        string
	Ext        string
	Cache      CacheSpec
	Window     int
	FrameDelay time.Duration
	Speed      EncodeSpeed
	// UseBase draws every frame over the subject's base composite.
	UseBase bool
}

var (
	// RadarTimelapse runs on demand, so it favours output quality.
	RadarTimelapse = Profile{
		Kind:       KindRadar,
		Dir:        RadarDataDir,
		Ext:        ".png",
		Cache:      RadarFrames,
		Window:     7,
		FrameDelay: 350 * time.Millisecond,
		Speed:      EncodeQuality,
		UseBase:    true,
	}

	// SatelliteTimelapse also runs unattended on the refresh schedule, so it
	// favours encode speed. Frames are self contained.
	SatelliteTimelapse = Profile{
		Kind:       KindSatellite,
		Dir:        SatelliteDataDir,
		Ext:        ".jpg",
		Cache:      SatelliteFrames,
		Window:     30,
		FrameDelay: 215 * time.Millisecond,
		Speed:      EncodeFast,
	}
)

// Assembler builds timelapse GIFs from the most recent remote frames of a
// subject. Artifacts are idempotent per subject and generation minute.
type Assembler struct {
	profile   Profile
	source    Source
	gateway   *Gateway
	store     ObjectStore
	composer  *Composer
	clock     clockwork.Clock
	imageHost string
	log       zerolog.Logger
}

// NewAssembler creates an Assembler for profile. composer is only used by
// profiles with UseBase, to build a missing base composite on demand.
func NewAssembler(profile Profile, deps Deps, gateway *Gateway, composer *Composer) *Assembler {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Assembler{
		profile:   profile,
		source:    deps.Source,
		gateway:   gateway,
		store:     deps.Store,
		composer:  composer,
		clock:     clock,
		imageHost: strings.TrimRight(deps.ImageHost, "/"),
		log:       logging.Component("timelapse").With().Str("kind", string(profile.Kind)).Logger(),
	}
}

// Generate returns the timelapse for subjectID at the current generation
// minute, encoding and uploading it only if it does not exist yet.
func (a *Assembler) Generate(ctx context.Context, subjectID string) (Artifact, error) {
	now := a.clock.Now().UTC()
	genKey := GenerationKey(now)
	key := ArtifactKey(subjectID, genKey, a.profile.Kind)

	art := Artifact{
		SubjectID:     subjectID,
		Kind:          a.profile.Kind,
		Key:           key,
		URL:           a.URL(key),
		GenerationKey: genKey,
		GeneratedAt:   now.Truncate(time.Minute),
	}

	data, found, err := a.existing(ctx, key)
	if err != nil {
		return Artifact{}, err
	}
	if found {
		metrics.TimelapsesReused.WithLabelValues(string(a.profile.Kind)).Inc()
		a.log.Debug().Str("subject", subjectID).Str("key", key).Msg("timelapse already generated")
		frames, err := countFrames(data)
		if err != nil {
			return Artifact{}, fmt.Errorf("%s: %w", key, err)
		}
		art.Data = data
		art.Frames = frames
		art.Reused = true
		return art, nil
	}

	sess, err := a.source.OpenSession(ctx)
	if err != nil {
		return Artifact{}, err
	}
	defer closeSession(a.log, sess)

	paths, err := sess.ListFrames(ctx, a.profile.Dir, subjectID, a.profile.Ext)
	if err != nil {
		return Artifact{}, err
	}

	frames, skipped := SelectRecent(a.profile.Kind, subjectID, paths, a.profile.Window)
	if skipped > 0 {
		a.log.Debug().Str("subject", subjectID).Int("skipped", skipped).Msg("ignored non-conforming frame names")
	}
	if len(frames) == 0 {
		return Artifact{}, fmt.Errorf("%w: %s %s", ErrNoFrames, a.profile.Kind, subjectID)
	}

	var base image.Image
	if a.profile.UseBase {
		if base, err = a.base(ctx, sess, subjectID); err != nil {
			return Artifact{}, err
		}
	}

	images := make([]image.Image, 0, len(frames))
	for _, p := range frames {
		img, err := a.gateway.Load(ctx, sess, a.profile.Cache, p)
		if err != nil {
			return Artifact{}, err
		}
		if base != nil {
			img = Overlay(base, img)
		}
		images = append(images, img)
	}

	a.log.Info().Str("subject", subjectID).Int("frames", len(images)).Str("speed", a.profile.Speed.String()).Msg("encoding timelapse")
	gifData, err := EncodeGIF(images, a.profile.FrameDelay, a.profile.Speed)
	if err != nil {
		return Artifact{}, err
	}

	if err := a.store.Put(ctx, key, gifData, "image/gif"); err != nil {
		return Artifact{}, storageErr("put", key, err)
	}

	metrics.TimelapsesGenerated.WithLabelValues(string(a.profile.Kind)).Inc()
	metrics.TimelapseBytes.WithLabelValues(string(a.profile.Kind)).Observe(float64(len(gifData)))
	a.log.Info().Str("subject", subjectID).Str("key", key).Int("bytes", len(gifData)).Msg("timelapse uploaded")

	art.Data = gifData
	art.Frames = len(images)
	return art, nil
}

// URL returns the public URL of an object key.
func (a *Assembler) URL(key string) string {
	return a.imageHost + "/" + key
}

func (a *Assembler) existing(ctx context.Context, key string) ([]byte, bool, error) {
	if _, err := a.store.Head(ctx, key); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, false, nil
		}
		return nil, false, storageErr("head", key, err)
	}
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, false, storageErr("get", key, err)
	}
	return data, true, nil
}

// countFrames returns the number of frames in a stored GIF.
func countFrames(data []byte) (int, error) {
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	return len(anim.Image), nil
}

// base reads the subject's base composite, composing it first when it has
// never been generated. The returned image is never drawn on.
func (a *Assembler) base(ctx context.Context, sess Session, subjectID string) (image.Image, error) {
	key := BaseCompositeKey(subjectID)
	data, err := a.store.Get(ctx, key)
	if err == nil {
		return DecodeImage(data)
	}
	if !errors.Is(err, ErrObjectNotFound) || a.composer == nil {
		return nil, storageErr("get", key, err)
	}

	a.log.Info().Str("subject", subjectID).Msg("base composite missing; composing")
	return a.composer.build(ctx, sess, subjectID)
}

// SelectRecent keeps the paths whose basename is a well-formed frame name of
// kind for subjectID, sorts them and returns the last n. Sorting the paths
// is chronological because frame names embed a fixed-width timestamp; names
// that do not conform are dropped and counted instead of being sorted.
func SelectRecent(kind Kind, subjectID string, paths []string, n int) ([]string, int) {
	valid := make([]string, 0, len(paths))
	for _, p := range paths {
		name, ok := ParseFrameName(kind, p)
		if !ok || name.SubjectID != subjectID {
			continue
		}
		valid = append(valid, p)
	}
	skipped := len(paths) - len(valid)

	slices.Sort(valid)
	valid = slices.Compact(valid)
	if len(valid) > n {
		valid = valid[len(valid)-n:]
	}
	return valid, skipped
}
