package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-imagery/internal/forecast"
	"github.com/i474232898/weather-imagery/internal/imagery"
	"github.com/i474232898/weather-imagery/internal/logging"
)

var validate = validator.New()

// Imagery is the part of imagery.Service the HTTP layer uses.
type Imagery interface {
	GenerateRadarTimelapse(ctx context.Context, subjectID string) (imagery.Artifact, error)
	GenerateSatelliteTimelapse(ctx context.Context, subjectID string) (imagery.Artifact, error)
	Subjects(ctx context.Context, kind imagery.Kind) ([]imagery.Subject, error)
	Lookup(ctx context.Context, kind imagery.Kind, id string) (imagery.Subject, error)
	RefreshAll(ctx context.Context) error
	Cleanup(ctx context.Context) (imagery.SweepReport, error)
}

// Forecaster fetches WillyWeather forecasts.
type Forecaster interface {
	Configured() bool
	Forecast(ctx context.Context, locationID string, days int) (forecast.Forecast, error)
}

// Handlers bundles what the routes need.
type Handlers struct {
	Imagery  Imagery
	Objects  imagery.ObjectStore
	Forecast Forecaster
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h Handlers) {
	log := logging.Component("http")

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/images/*", h.serveImage)

	v1 := app.Group("/api/v1")

	v1.Get("/radar/:id/timelapse", h.timelapse(imagery.KindRadar))
	v1.Get("/satellite/:id/timelapse", h.timelapse(imagery.KindSatellite))

	v1.Get("/subjects/:kind", func(c *fiber.Ctx) error {
		kind := imagery.Kind(c.Params("kind"))
		if kind != imagery.KindRadar && kind != imagery.KindSatellite {
			return fiber.NewError(fiber.StatusNotFound, "unknown subject kind")
		}
		subjects, err := h.Imagery.Subjects(c.UserContext(), kind)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"kind":     kind,
			"subjects": subjects,
		})
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		go func() {
			if err := h.Imagery.RefreshAll(context.Background()); err != nil {
				log.Warn().Err(err).Msg("manual refresh finished with failures")
			}
		}()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "refresh started"})
	})

	v1.Post("/cleanup", func(c *fiber.Ctx) error {
		report, err := h.Imagery.Cleanup(c.UserContext())
		if err != nil {
			log.Warn().Err(err).Str("report", report.String()).Msg("manual cleanup finished with failures")
			return toFiberError(err)
		}
		return c.JSON(report)
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		var q forecastQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if h.Forecast == nil || !h.Forecast.Configured() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "forecast api key is not configured")
		}

		f, err := h.Forecast.Forecast(c.UserContext(), q.Location, q.Days)
		if err != nil {
			log.Error().Err(err).Str("location", q.Location).Msg("forecast request failed")
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch forecast")
		}

		summary := forecast.Summarize(f)
		if summary.Location == "" {
			summary.Location = forecast.KnownLocations[q.Location]
		}
		return c.JSON(summary)
	})
}

// timelapse returns the handler for one timelapse kind. With ?raw=true the
// GIF itself is returned instead of its metadata.
func (h Handlers) timelapse(kind imagery.Kind) fiber.Handler {
	generate := h.Imagery.GenerateRadarTimelapse
	if kind == imagery.KindSatellite {
		generate = h.Imagery.GenerateSatelliteTimelapse
	}

	return func(c *fiber.Ctx) error {
		id := strings.ToUpper(c.Params("id"))
		subject, err := h.Imagery.Lookup(c.UserContext(), kind, id)
		if err != nil {
			return toFiberError(err)
		}

		artifact, err := generate(c.UserContext(), subject.ID)
		if err != nil {
			return toFiberError(err)
		}

		if c.QueryBool("raw") {
			c.Set(fiber.HeaderContentType, "image/gif")
			return c.Send(artifact.Data)
		}
		return c.JSON(fiber.Map{
			"subject":  subject,
			"artifact": artifact,
		})
	}
}

func (h Handlers) serveImage(c *fiber.Ctx) error {
	key := c.Params("*")
	if key == "" || strings.Contains(key, "..") {
		return fiber.NewError(fiber.StatusNotFound, "image not found")
	}

	info, err := h.Objects.Head(c.UserContext(), key)
	if err != nil {
		return toFiberError(err)
	}
	data, err := h.Objects.Get(c.UserContext(), key)
	if err != nil {
		return toFiberError(err)
	}

	if info.ContentType != "" {
		c.Set(fiber.HeaderContentType, info.ContentType)
	}
	return c.Send(data)
}

// toFiberError maps imagery error kinds to HTTP statuses.
func toFiberError(err error) error {
	switch {
	case errors.Is(err, imagery.ErrUnknownSubject):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, imagery.ErrObjectNotFound):
		return fiber.NewError(fiber.StatusNotFound, "image not found")
	case errors.Is(err, imagery.ErrNoFrames):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, imagery.ErrSourceUnavailable), errors.Is(err, imagery.ErrTransfer):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, imagery.ErrStorage):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	Location string `validate:"required,numeric"`
	Days     int    `validate:"required,gte=1,lte=7"`
}

func (q *forecastQuery) bind(c *fiber.Ctx) error {
	q.Location = c.Query("location", forecast.PerthID)

	daysStr := c.Query("days")
	if daysStr == "" {
		return errors.New("days query parameter is required")
	}
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		return errors.New("days must be an integer")
	}
	q.Days = days
	return nil
}
