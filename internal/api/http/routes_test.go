package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-imagery/internal/forecast"
	"github.com/i474232898/weather-imagery/internal/imagery"
	"github.com/i474232898/weather-imagery/internal/logging"
	"github.com/i474232898/weather-imagery/internal/store"
)

func TestMain(m *testing.M) {
	logging.UseTestMode()
	m.Run()
}

type fakeImagery struct {
	subjects  map[imagery.Kind][]imagery.Subject
	artifact  imagery.Artifact
	genErr     error
	cleanupErr error
	refreshed  chan struct{}
}

func (f *fakeImagery) GenerateRadarTimelapse(ctx context.Context, id string) (imagery.Artifact, error) {
	a := f.artifact
	a.SubjectID, a.Kind = id, imagery.KindRadar
	return a, f.genErr
}

func (f *fakeImagery) GenerateSatelliteTimelapse(ctx context.Context, id string) (imagery.Artifact, error) {
	a := f.artifact
	a.SubjectID, a.Kind = id, imagery.KindSatellite
	return a, f.genErr
}

func (f *fakeImagery) Subjects(ctx context.Context, kind imagery.Kind) ([]imagery.Subject, error) {
	return f.subjects[kind], nil
}

func (f *fakeImagery) Lookup(ctx context.Context, kind imagery.Kind, id string) (imagery.Subject, error) {
	for _, s := range f.subjects[kind] {
		if s.ID == id {
			return s, nil
		}
	}
	return imagery.Subject{}, fmt.Errorf("%w: %s %s", imagery.ErrUnknownSubject, kind, id)
}

func (f *fakeImagery) RefreshAll(ctx context.Context) error {
	if f.refreshed != nil {
		close(f.refreshed)
	}
	return nil
}

func (f *fakeImagery) Cleanup(ctx context.Context) (imagery.SweepReport, error) {
	return imagery.SweepReport{Scanned: 3, Matched: 2, Deleted: 1}, f.cleanupErr
}

type fakeForecaster struct {
	configured bool
	gotDays    int
}

func (f *fakeForecaster) Configured() bool { return f.configured }

func (f *fakeForecaster) Forecast(ctx context.Context, id string, days int) (forecast.Forecast, error) {
	f.gotDays = days
	return forecast.Forecast{
		Location: forecast.Location{Name: "Perth"},
		Forecasts: forecast.Forecasts{Weather: forecast.Weather{Days: []forecast.WeatherDay{
			{DateTime: "2025-04-14 00:00:00", Entries: []forecast.WeatherEntry{{PrecisCode: "fine", Max: 27}}},
		}}},
	}, nil
}

func newTestApp(t *testing.T) (*fiber.App, *fakeImagery, *store.MemoryStore, *fakeForecaster) {
	t.Helper()

	img := &fakeImagery{
		subjects: map[imagery.Kind][]imagery.Subject{
			imagery.KindRadar:     {{ID: "IDR703", Name: "Perth (Serpentine)", Kind: imagery.KindRadar}},
			imagery.KindSatellite: {{ID: "IDE00416", Name: "Australia", Kind: imagery.KindSatellite}},
		},
		artifact: imagery.Artifact{
			Key:           "external/IDR703.202504140600.radar.gif",
			GenerationKey: "202504140600",
			Frames:        7,
			Data:          []byte("GIF89a"),
		},
	}
	objects := store.NewMemoryStore()
	fc := &fakeForecaster{configured: true}

	app := fiber.New()
	RegisterRoutes(app, Handlers{Imagery: img, Objects: objects, Forecast: fc})
	return app, img, objects, fc
}

func do(t *testing.T, app *fiber.App, method, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	require.NoError(t, err)
	return resp
}

// TestForecastDaysValidation verifies that the forecast endpoint enforces the
// expected 1-7 range for the `days` query parameter.
func TestForecastDaysValidation(t *testing.T) {
	app, _, _, fc := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/forecast?location=14576")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/v1/forecast?location=14576&days=8")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/v1/forecast?location=14576&days=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/v1/forecast?location=14576&days=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, fc.gotDays)

	var summary forecast.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "Perth", summary.Location)
	require.Len(t, summary.Days, 1)
	assert.Equal(t, "☀️", summary.Days[0].Emoji)
}

func TestForecastWithoutKey(t *testing.T) {
	app, _, _, fc := newTestApp(t)
	fc.configured = false

	resp := do(t, app, http.MethodGet, "/api/v1/forecast?days=2")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTimelapseMetadata(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/radar/idr703/timelapse")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Subject  imagery.Subject  `json:"subject"`
		Artifact imagery.Artifact `json:"artifact"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "IDR703", body.Subject.ID)
	assert.Equal(t, 7, body.Artifact.Frames)
	assert.Equal(t, imagery.KindRadar, body.Artifact.Kind)
}

func TestTimelapseRaw(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/satellite/IDE00416/timelapse?raw=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get(fiber.HeaderContentType))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(data))
}

func TestTimelapseErrors(t *testing.T) {
	app, img, _, _ := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/radar/IDR999/timelapse")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	img.genErr = fmt.Errorf("list: %w", imagery.ErrSourceUnavailable)
	resp = do(t, app, http.MethodGet, "/api/v1/radar/IDR703/timelapse")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	img.genErr = imagery.ErrNoFrames
	resp = do(t, app, http.MethodGet, "/api/v1/radar/IDR703/timelapse")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubjects(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/subjects/satellite")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Subjects []imagery.Subject `json:"subjects"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Subjects, 1)
	assert.Equal(t, "IDE00416", body.Subjects[0].ID)

	resp = do(t, app, http.MethodGet, "/api/v1/subjects/planets")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeImage(t *testing.T) {
	app, _, objects, _ := newTestApp(t)
	require.NoError(t, objects.Put(context.Background(), "external/IDR703.202504140600.radar.gif", []byte("GIF89a"), "image/gif"))

	resp := do(t, app, http.MethodGet, "/images/external/IDR703.202504140600.radar.gif")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get(fiber.HeaderContentType))

	resp = do(t, app, http.MethodGet, "/images/external/missing.gif")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRefreshIsAsynchronous(t *testing.T) {
	app, img, _, _ := newTestApp(t)
	img.refreshed = make(chan struct{})

	resp := do(t, app, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-img.refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh was not started")
	}
}

func TestCleanupReturnsReport(t *testing.T) {
	app, _, _, _ := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/v1/cleanup")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report imagery.SweepReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 1, report.Deleted)
}

func TestCleanupReportsStorageFailure(t *testing.T) {
	app, img, _, _ := newTestApp(t)
	img.cleanupErr = fmt.Errorf("%w: list satellite_cache: connection refused", imagery.ErrStorage)

	resp := do(t, app, http.MethodPost, "/api/v1/cleanup")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
