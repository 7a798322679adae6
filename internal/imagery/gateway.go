package imagery

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-imagery/internal/logging"
	"github.com/i474232898/weather-imagery/internal/metrics"
)

// CacheMode selects what the gateway stores on a miss.
type CacheMode int

const (
	// Passthrough stores the remote bytes verbatim.
	Passthrough CacheMode = iota
	// TransformOnWrite stores a resized JPEG instead of the remote bytes.
	TransformOnWrite
)

// CacheSpec says where and how a remote file is cached.
type CacheSpec struct {
	Prefix      string
	ContentType string
	Mode        CacheMode
}

var (
	// RadarFrames caches radar frames and background layers as PNG.
	RadarFrames = CacheSpec{Prefix: RadarCachePrefix, ContentType: "image/png", Mode: Passthrough}
	// SatelliteFrames caches satellite frames resized and re-encoded.
	SatelliteFrames = CacheSpec{Prefix: SatelliteCachePrefix, ContentType: "image/jpeg", Mode: TransformOnWrite}
)

// Gateway is a cache-aside layer between the remote source and object
// storage. Keys are the remote basename under the CacheSpec prefix.
//
// The existence check is advisory. Two concurrent misses for the same key
// both download and upload; that is safe only because a published remote
// filename never changes bytes.
type Gateway struct {
	store ObjectStore
	log   zerolog.Logger
}

// NewGateway creates a Gateway over store.
func NewGateway(store ObjectStore) *Gateway {
	return &Gateway{
		store: store,
		log:   logging.Component("gateway"),
	}
}

// Load returns the decoded image for remotePath, fetching and caching it on
// a miss. In TransformOnWrite mode the returned image is the transformed one.
func (g *Gateway) Load(ctx context.Context, sess Session, spec CacheSpec, remotePath string) (image.Image, error) {
	key := CacheKey(spec.Prefix, remotePath)

	cached, err := g.exists(ctx, key)
	if err != nil {
		return nil, err
	}

	if cached {
		metrics.CacheHits.WithLabelValues(spec.Prefix).Inc()
		g.log.Debug().Str("key", key).Msg("cache hit")

		data, err := g.store.Get(ctx, key)
		if err != nil {
			return nil, storageErr("get", key, err)
		}
		return DecodeImage(data)
	}

	stored, err := g.fill(ctx, sess, spec, key, remotePath)
	if err != nil {
		return nil, err
	}
	return DecodeImage(stored)
}

// Ensure makes sure remotePath is cached. A hit does not read the stored
// object. It reports whether the object was already present.
func (g *Gateway) Ensure(ctx context.Context, sess Session, spec CacheSpec, remotePath string) (bool, error) {
	key := CacheKey(spec.Prefix, remotePath)

	cached, err := g.exists(ctx, key)
	if err != nil {
		return false, err
	}
	if cached {
		metrics.CacheHits.WithLabelValues(spec.Prefix).Inc()
		return true, nil
	}

	_, err = g.fill(ctx, sess, spec, key, remotePath)
	return false, err
}

// fill downloads remotePath, applies the mode's transform and stores the
// result under key. It returns the stored bytes.
func (g *Gateway) fill(ctx context.Context, sess Session, spec CacheSpec, key, remotePath string) ([]byte, error) {
	metrics.CacheMisses.WithLabelValues(spec.Prefix).Inc()
	g.log.Info().Str("path", remotePath).Str("key", key).Msg("downloading")

	raw, err := sess.FetchBytes(ctx, remotePath)
	if err != nil {
		return nil, err
	}

	stored := raw
	if spec.Mode == TransformOnWrite {
		img, err := DecodeImage(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", remotePath, err)
		}
		if stored, err = ResizeJPEG(img); err != nil {
			return nil, fmt.Errorf("%s: %w", remotePath, err)
		}
	}

	if err := g.store.Put(ctx, key, stored, spec.ContentType); err != nil {
		return nil, storageErr("put", key, err)
	}
	return stored, nil
}

func (g *Gateway) exists(ctx context.Context, key string) (bool, error) {
	_, err := g.store.Head(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	return false, storageErr("head", key, err)
}

// storageErr tags err with ErrStorage unless it already carries it.
func storageErr(op, key string, err error) error {
	if errors.Is(err, ErrStorage) {
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, key, err)
}
