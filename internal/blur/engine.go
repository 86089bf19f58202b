// Package blur converts a tracked box into a locally blurred image
// region. Both variants are resampling blurs: the region of interest is
// shrunk with a smooth filter and blown back up with nearest-neighbour,
// so no readable detail survives the round trip.
package blur

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/your-org/vb/internal/geom"
)

// Variant selects the resampling profile.
type Variant string

const (
	// Gaussian approximates a gaussian blur whose footprint grows with
	// the configured strength.
	Gaussian Variant = "gaussian"
	// Pixelate produces visible 10x blocking.
	Pixelate Variant = "pixelate"
)

const defaultPadding = 0.20

// Engine blurs rectangular frame regions in place on the frame it is
// given. It holds no per-frame state and is safe to reuse across frames.
type Engine struct {
	strength int
	variant  Variant
	padding  float64
}

// NewEngine builds an engine. An even strength is bumped to the next odd
// value; non-positive strength falls back to the default 51. Unknown
// variants blur as Gaussian.
func NewEngine(strength int, variant Variant) *Engine {
	if strength <= 0 {
		strength = 51
	}
	if strength%2 == 0 {
		strength++
	}
	if variant != Pixelate {
		variant = Gaussian
	}
	return &Engine{strength: strength, variant: variant, padding: defaultPadding}
}

// WithPadding overrides the region padding ratio. Non-positive values
// keep the default.
func (e *Engine) WithPadding(ratio float64) *Engine {
	if ratio > 0 {
		e.padding = ratio
	}
	return e
}

// Strength returns the effective (odd) blur strength.
func (e *Engine) Strength() int { return e.strength }

// BlurRegion pads box by the padding ratio, clamps it to the frame and
// overwrites that region of frame with its blurred copy. Degenerate
// geometry of any kind is a silent no-op; the frame outside the region
// is never touched.
func (e *Engine) BlurRegion(frame *image.RGBA, box geom.Box) {
	fb := frame.Bounds()
	padded := box.Inflate(e.padding).Clamp(float64(fb.Dx()), float64(fb.Dy()))
	if !padded.Valid() {
		return
	}
	roi := padded.Rect().Add(fb.Min)
	if roi.Empty() || !roi.In(fb) {
		return
	}

	blurred := e.resample(frame.SubImage(roi), roi.Dx(), roi.Dy())
	draw.Draw(frame, roi, blurred, blurred.Bounds().Min, draw.Src)
}

// resample performs the two-step blur: smooth downscale, nearest upscale.
// The returned image has exactly w x h pixels and shares no storage with
// src.
func (e *Engine) resample(src image.Image, w, h int) *image.RGBA {
	var smallW, smallH int
	switch e.variant {
	case Pixelate:
		smallW, smallH = w/10, h/10
	default:
		scale := 1.0 / (float64(e.strength)/3.0 + 1.0)
		smallW = int(math.Round(float64(w) * scale))
		smallH = int(math.Round(float64(h) * scale))
	}
	smallW = max(smallW, 1)
	smallH = max(smallH, 1)

	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(out, out.Bounds(), small, small.Bounds(), xdraw.Src, nil)
	return out
}
