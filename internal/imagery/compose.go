package imagery

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-imagery/internal/logging"
)

// BackgroundLayers are drawn over the legend in this order.
var BackgroundLayers = [4]string{"background", "topography", "locations", "range"}

// LegendPath is the shared rain legend every composite starts from.
const LegendPath = RadarBackgroundDir + "/IDR.legend.0.png"

// LayerPath returns the remote path of one background layer of a radar.
func LayerPath(subjectID, layer string) string {
	return fmt.Sprintf("%s/%s.%s.png", RadarBackgroundDir, subjectID, layer)
}

// Composer builds the per-radar background composite that timelapse frames
// are drawn on.
type Composer struct {
	source  Source
	gateway *Gateway
	store   ObjectStore
	log     zerolog.Logger
}

// NewComposer creates a Composer.
func NewComposer(source Source, gateway *Gateway, store ObjectStore) *Composer {
	return &Composer{
		source:  source,
		gateway: gateway,
		store:   store,
		log:     logging.Component("composer"),
	}
}

// Compose regenerates and stores the base composite of one radar. The stored
// object is overwritten unconditionally. It returns the composite.
func (c *Composer) Compose(ctx context.Context, subjectID string) (image.Image, error) {
	sess, err := c.source.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	defer closeSession(c.log, sess)

	return c.build(ctx, sess, subjectID)
}

// build composes with an already open session.
func (c *Composer) build(ctx context.Context, sess Session, subjectID string) (image.Image, error) {
	c.log.Info().Str("subject", subjectID).Msg("generating background")

	layers := make([]image.Image, 0, len(BackgroundLayers))
	for _, layer := range BackgroundLayers {
		img, err := c.gateway.Load(ctx, sess, RadarFrames, LayerPath(subjectID, layer))
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer, err)
		}
		layers = append(layers, img)
	}

	legend, err := c.gateway.Load(ctx, sess, RadarFrames, LegendPath)
	if err != nil {
		return nil, fmt.Errorf("legend: %w", err)
	}

	composite := legend
	for _, layer := range layers {
		composite = Overlay(composite, layer)
	}

	data, err := EncodePNG(composite)
	if err != nil {
		return nil, err
	}

	key := BaseCompositeKey(subjectID)
	if err := c.store.Put(ctx, key, data, "image/png"); err != nil {
		return nil, storageErr("put", key, err)
	}

	return composite, nil
}

func closeSession(log zerolog.Logger, sess Session) {
	if err := sess.Close(); err != nil {
		log.Debug().Err(err).Msg("closing remote session")
	}
}
