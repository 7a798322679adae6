package imagery

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"time"

	"github.com/disintegration/imaging"
	"github.com/soniakeys/quant/median"
)

// Transform-on-write settings for satellite frames.
const (
	FrameWidth  = 300
	FrameHeight = 300
	JPEGQuality = 75
)

// EncodeSpeed selects the GIF encoder trade-off.
type EncodeSpeed int

const (
	// EncodeQuality keeps exact colours when a frame has at most 256 of
	// them and otherwise builds a per-frame median cut palette. Used on the
	// on-demand radar path.
	EncodeQuality EncodeSpeed = iota
	// EncodeFast maps straight to a fixed palette without dithering.
	EncodeFast
)

func (s EncodeSpeed) String() string {
	if s == EncodeFast {
		return "fast"
	}
	return "quality"
}

// DecodeImage decodes PNG, JPEG or GIF bytes.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	return img, nil
}

// EncodePNG losslessly encodes img. Output is stable for identical pixels.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: png: %w", ErrImageEncode, err)
	}
	return buf.Bytes(), nil
}

// ResizeJPEG resizes img to exactly FrameWidth x FrameHeight (aspect ratio is
// not preserved) and encodes it as JPEG.
func ResizeJPEG(img image.Image) ([]byte, error) {
	resized := imaging.Resize(img, FrameWidth, FrameHeight, imaging.Gaussian)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("%w: jpeg: %w", ErrImageEncode, err)
	}
	return buf.Bytes(), nil
}

// Overlay draws layer over a copy of base at the origin using source-over
// alpha blending. base is not modified.
func Overlay(base, layer image.Image) *image.NRGBA {
	return imaging.Overlay(base, layer, base.Bounds().Min, 1.0)
}

// EncodeGIF encodes frames as an infinitely looping animation with a fixed
// per-frame delay.
func EncodeGIF(frames []image.Image, delay time.Duration, speed EncodeSpeed) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: gif needs at least one frame", ErrImageEncode)
	}

	cs := delayCentiseconds(delay)
	anim := &gif.GIF{LoopCount: 0}
	for _, f := range frames {
		anim.Image = append(anim.Image, palettize(f, speed))
		anim.Delay = append(anim.Delay, cs)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("%w: gif: %w", ErrImageEncode, err)
	}
	return buf.Bytes(), nil
}

// delayCentiseconds rounds d to the GIF delay unit.
func delayCentiseconds(d time.Duration) int {
	return int((d + 5*time.Millisecond) / (10 * time.Millisecond))
}

func palettize(img image.Image, speed EncodeSpeed) *image.Paletted {
	b := img.Bounds()
	r := image.Rect(0, 0, b.Dx(), b.Dy())

	if speed == EncodeQuality {
		p, ok := exactPalette(img, 256)
		if !ok {
			p = median.Quantizer(256).Quantize(make(color.Palette, 0, 256), img)
		}
		dst := image.NewPaletted(r, p)
		draw.Draw(dst, r, img, b.Min, draw.Src)
		return dst
	}

	dst := image.NewPaletted(r, palette.Plan9)
	draw.Draw(dst, r, img, b.Min, draw.Src)
	return dst
}

// exactPalette collects the distinct colours of img in scan order. It gives
// up once more than limit colours are seen.
func exactPalette(img image.Image, limit int) (color.Palette, bool) {
	b := img.Bounds()
	seen := make(map[color.RGBA64]struct{}, limit)
	p := make(color.Palette, 0, limit)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			c := color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(bl), A: uint16(a)}
			if _, ok := seen[c]; ok {
				continue
			}
			if len(p) == limit {
				return nil, false
			}
			seen[c] = struct{}{}
			p = append(p, c)
		}
	}
	return p, true
}
