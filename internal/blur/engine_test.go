package blur

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/vb/internal/geom"
)

// gradientFrame builds a deterministic RGBA test frame.
func gradientFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 7 % 256),
				G: uint8(y * 13 % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func clone(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

func TestNewEngineStrength(t *testing.T) {
	require.Equal(t, 51, NewEngine(0, Gaussian).Strength())
	require.Equal(t, 51, NewEngine(51, Gaussian).Strength())
	require.Equal(t, 51, NewEngine(50, Gaussian).Strength(), "even strength is bumped to odd")
}

func TestBlurRegionDimsAndLocality(t *testing.T) {
	frame := gradientFrame(200, 160)
	orig := clone(frame)

	box := geom.Box{X1: 50, Y1: 40, X2: 100, Y2: 90}
	NewEngine(51, Gaussian).BlurRegion(frame, box)

	require.Equal(t, orig.Bounds(), frame.Bounds())

	// The padded, clamped ROI: 20% of a 50x50 box is 10px on every side.
	roi := image.Rect(40, 30, 110, 100)

	changed := false
	for y := 0; y < 160; y++ {
		for x := 0; x < 200; x++ {
			inside := image.Pt(x, y).In(roi)
			if !inside {
				require.Equal(t, orig.RGBAAt(x, y), frame.RGBAAt(x, y),
					"pixel outside ROI changed at (%d,%d)", x, y)
			} else if orig.RGBAAt(x, y) != frame.RGBAAt(x, y) {
				changed = true
			}
		}
	}
	require.True(t, changed, "ROI must actually be blurred")
}

func TestBlurRegionDegenerateNoOp(t *testing.T) {
	frame := gradientFrame(100, 100)
	orig := clone(frame)
	eng := NewEngine(51, Gaussian)

	for _, box := range []geom.Box{
		{},                                     // zero box
		{X1: 50, Y1: 50, X2: 50, Y2: 80},       // zero width
		{X1: 200, Y1: 200, X2: 300, Y2: 300},   // fully outside
		{X1: -50, Y1: -50, X2: -10, Y2: -10},   // fully negative
	} {
		eng.BlurRegion(frame, box)
		require.Equal(t, orig.Pix, frame.Pix, "box %+v must be a no-op", box)
	}
}

func TestPixelateBlocksAreConstant(t *testing.T) {
	frame := gradientFrame(100, 100)
	// Box inflated by 20% and clamped covers the whole frame, so the ROI
	// is exactly 100x100 and pixelate shrinks it to 10x10.
	NewEngine(51, Pixelate).BlurRegion(frame, geom.Box{X1: 0, Y1: 0, X2: 100, Y2: 100})

	for by := 0; by < 10; by++ {
		for bx := 0; bx < 10; bx++ {
			want := frame.RGBAAt(bx*10, by*10)
			for y := by * 10; y < by*10+10; y++ {
				for x := bx * 10; x < bx*10+10; x++ {
					require.Equal(t, want, frame.RGBAAt(x, y),
						"block (%d,%d) not constant at (%d,%d)", bx, by, x, y)
				}
			}
		}
	}
}

func TestPixelateNeverIncreasesBlockVariance(t *testing.T) {
	frame := gradientFrame(100, 100)
	orig := clone(frame)
	NewEngine(51, Pixelate).BlurRegion(frame, geom.Box{X1: 0, Y1: 0, X2: 100, Y2: 100})

	variance := func(img *image.RGBA, r image.Rectangle) float64 {
		var sum, sumSq float64
		n := 0
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				v := float64(img.RGBAAt(x, y).R)
				sum += v
				sumSq += v * v
				n++
			}
		}
		mean := sum / float64(n)
		return sumSq/float64(n) - mean*mean
	}

	for by := 0; by < 10; by++ {
		for bx := 0; bx < 10; bx++ {
			r := image.Rect(bx*10, by*10, bx*10+10, by*10+10)
			require.LessOrEqual(t, variance(frame, r), variance(orig, r)+1e-9,
				"block (%d,%d)", bx, by)
		}
	}
}

func TestGaussianOutputDimsMatchOddROI(t *testing.T) {
	// Awkward ROI sizes must still round-trip to the exact dimensions.
	frame := gradientFrame(97, 61)
	orig := clone(frame)
	NewEngine(7, Gaussian).BlurRegion(frame, geom.Box{X1: 3, Y1: 5, X2: 90, Y2: 52})

	require.Equal(t, orig.Bounds(), frame.Bounds())
	require.Len(t, frame.Pix, len(orig.Pix))
}

func TestTinyROIMinimumOnePixel(t *testing.T) {
	frame := gradientFrame(50, 50)
	// 2x2 ROI downsampled at 1/18 would vanish without the 1px floor.
	NewEngine(51, Gaussian).BlurRegion(frame, geom.Box{X1: 10, Y1: 10, X2: 12, Y2: 12})
	require.Equal(t, image.Rect(0, 0, 50, 50), frame.Bounds())
}
