package imagery_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/i474232898/weather-imagery/internal/imagery"
	"github.com/i474232898/weather-imagery/internal/logging"
	"github.com/i474232898/weather-imagery/internal/store"
)

func TestMain(m *testing.M) {
	logging.UseTestMode()
	os.Exit(m.Run())
}

// fakeSource serves files from memory and counts remote calls.
type fakeSource struct {
	mu      sync.Mutex
	files   map[string][]byte
	opens   int
	lists   int
	fetches int
	closed  int
	openErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{files: make(map[string][]byte)}
}

func (s *fakeSource) add(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = data
}

func (s *fakeSource) counts() (opens, lists, fetches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.lists, s.fetches
}

func (s *fakeSource) OpenSession(ctx context.Context) (imagery.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens++
	return &fakeSession{src: s}, nil
}

type fakeSession struct {
	src *fakeSource
}

func (f *fakeSession) ListFrames(ctx context.Context, dir, idPrefix, ext string) ([]string, error) {
	f.src.mu.Lock()
	defer f.src.mu.Unlock()
	f.src.lists++

	var out []string
	for p := range f.src.files {
		base := path.Base(p)
		if path.Dir(p) == dir && strings.HasPrefix(base, idPrefix) && strings.HasSuffix(base, ext) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSession) FetchBytes(ctx context.Context, p string) ([]byte, error) {
	f.src.mu.Lock()
	defer f.src.mu.Unlock()
	f.src.fetches++

	data, ok := f.src.files[p]
	if !ok {
		return nil, fmt.Errorf("%w: retrieve %s: 550 not found", imagery.ErrTransfer, p)
	}
	return data, nil
}

func (f *fakeSession) Close() error {
	f.src.mu.Lock()
	defer f.src.mu.Unlock()
	f.src.closed++
	return nil
}

// faultyStore injects errors into a MemoryStore.
type faultyStore struct {
	*store.MemoryStore
	headErr   error
	putErr    error
	deleteErr map[string]error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: store.NewMemoryStore(), deleteErr: map[string]error{}}
}

func (s *faultyStore) Head(ctx context.Context, key string) (imagery.ObjectInfo, error) {
	if s.headErr != nil {
		return imagery.ObjectInfo{}, s.headErr
	}
	return s.MemoryStore.Head(ctx, key)
}

func (s *faultyStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, data, contentType)
}

func (s *faultyStore) Delete(ctx context.Context, key string) error {
	if err, ok := s.deleteErr[key]; ok {
		return err
	}
	return s.MemoryStore.Delete(ctx, key)
}

// fakeCatalog is a fixed subject list.
type fakeCatalog struct {
	radars     []imagery.Subject
	satellites []imagery.Subject
	panicRadar bool
}

func (c *fakeCatalog) RadarSubjects(ctx context.Context) ([]imagery.Subject, error) {
	if c.panicRadar {
		panic("catalog exploded")
	}
	return c.radars, nil
}

func (c *fakeCatalog) SatelliteSubjects(ctx context.Context) ([]imagery.Subject, error) {
	return c.satellites, nil
}

func (c *fakeCatalog) Lookup(ctx context.Context, kind imagery.Kind, id string) (imagery.Subject, error) {
	all := c.radars
	if kind == imagery.KindSatellite {
		all = c.satellites
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return imagery.Subject{}, fmt.Errorf("%w: %s", imagery.ErrUnknownSubject, id)
}

// solid returns a w x h image filled with c.
func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// dot returns a transparent w x h image with one opaque pixel at (x, y).
func dot(w, h, x, y int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(x, y, c)
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

// addRadarLayers publishes the legend and the four background layers of
// subjectID as size x size images.
func addRadarLayers(t *testing.T, src *fakeSource, subjectID string, size int) {
	t.Helper()
	src.add(imagery.LegendPath, pngBytes(t, solid(size, size, white)))
	src.add(imagery.LayerPath(subjectID, "background"), pngBytes(t, dot(size, size, 0, 0, red)))
	src.add(imagery.LayerPath(subjectID, "topography"), pngBytes(t, dot(size, size, 1, 0, green)))
	src.add(imagery.LayerPath(subjectID, "locations"), pngBytes(t, dot(size, size, 2, 0, black)))
	src.add(imagery.LayerPath(subjectID, "range"), pngBytes(t, dot(size, size, 0, 0, blue)))
}
