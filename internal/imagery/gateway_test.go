package imagery_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-imagery/internal/imagery"
	"github.com/i474232898/weather-imagery/internal/store"
)

const radarFrame = imagery.RadarDataDir + "/IDR703.T.202504140000.png"

func openSession(t *testing.T, src *fakeSource) imagery.Session {
	t.Helper()
	sess, err := src.OpenSession(context.Background())
	require.NoError(t, err)
	return sess
}

func TestGateway_PassthroughMissThenHit(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	raw := pngBytes(t, solid(8, 8, red))
	src.add(radarFrame, raw)

	objects := store.NewMemoryStore()
	gw := imagery.NewGateway(objects)
	sess := openSession(t, src)

	img, err := gw.Load(ctx, sess, imagery.RadarFrames, radarFrame)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())

	stored, err := objects.Get(ctx, "radar_cache/IDR703.T.202504140000.png")
	require.NoError(t, err)
	assert.Equal(t, raw, stored, "passthrough stores the remote bytes verbatim")

	info, err := objects.Head(ctx, "radar_cache/IDR703.T.202504140000.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)

	_, err = gw.Load(ctx, sess, imagery.RadarFrames, radarFrame)
	require.NoError(t, err)

	_, _, fetches := src.counts()
	assert.Equal(t, 1, fetches, "a cached key must not be fetched again")
}

func TestGateway_EnsureHitDoesNotFetch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.add(radarFrame, pngBytes(t, solid(4, 4, blue)))

	gw := imagery.NewGateway(store.NewMemoryStore())
	sess := openSession(t, src)

	hit, err := gw.Ensure(ctx, sess, imagery.RadarFrames, radarFrame)
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = gw.Ensure(ctx, sess, imagery.RadarFrames, radarFrame)
	require.NoError(t, err)
	assert.True(t, hit)

	_, _, fetches := src.counts()
	assert.Equal(t, 1, fetches)
}

func TestGateway_TransformOnWrite(t *testing.T) {
	ctx := context.Background()
	const remote = imagery.SatelliteDataDir + "/IDE00416.202504140000.jpg"
	src := newFakeSource()
	raw := jpegBytes(t, solid(640, 480, green))
	src.add(remote, raw)

	objects := store.NewMemoryStore()
	gw := imagery.NewGateway(objects)

	img, err := gw.Load(ctx, openSession(t, src), imagery.SatelliteFrames, remote)
	require.NoError(t, err)
	assert.Equal(t, imagery.FrameWidth, img.Bounds().Dx())
	assert.Equal(t, imagery.FrameHeight, img.Bounds().Dy())

	stored, err := objects.Get(ctx, "satellite_cache/IDE00416.202504140000.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, raw, stored, "the original bytes are never stored")

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 300, cfg.Height)

	info, err := objects.Head(ctx, "satellite_cache/IDE00416.202504140000.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", info.ContentType)
}

func TestGateway_TransformDecodeFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	const remote = imagery.SatelliteDataDir + "/IDE00416.202504140000.jpg"
	src := newFakeSource()
	src.add(remote, []byte("not an image"))

	objects := store.NewMemoryStore()
	gw := imagery.NewGateway(objects)

	_, err := gw.Load(ctx, openSession(t, src), imagery.SatelliteFrames, remote)
	require.Error(t, err)
	assert.ErrorIs(t, err, imagery.ErrImageDecode)
	assert.Equal(t, 0, objects.Len())
}

func TestGateway_MissingRemoteFile(t *testing.T) {
	objects := store.NewMemoryStore()
	gw := imagery.NewGateway(objects)

	_, err := gw.Load(context.Background(), openSession(t, newFakeSource()), imagery.RadarFrames, radarFrame)
	assert.ErrorIs(t, err, imagery.ErrTransfer)
	assert.Equal(t, 0, objects.Len())
}

func TestGateway_StorageErrors(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.add(radarFrame, pngBytes(t, solid(4, 4, red)))

	objects := newFaultyStore()
	objects.headErr = errors.New("connection reset")
	gw := imagery.NewGateway(objects)

	_, err := gw.Load(ctx, openSession(t, src), imagery.RadarFrames, radarFrame)
	assert.ErrorIs(t, err, imagery.ErrStorage)
	_, _, fetches := src.counts()
	assert.Equal(t, 0, fetches, "a failed existence check is not treated as a miss")

	objects.headErr = nil
	objects.putErr = errors.New("bucket is read only")
	_, err = gw.Load(ctx, openSession(t, src), imagery.RadarFrames, radarFrame)
	assert.ErrorIs(t, err, imagery.ErrStorage)
}
