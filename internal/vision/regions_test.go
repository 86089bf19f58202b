package vision

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/vb/internal/geom"
)

func TestHeadRegion(t *testing.T) {
	body := geom.Box{X1: 100, Y1: 50, X2: 200, Y2: 250}

	head := headRegion(body)

	require.Equal(t, geom.Box{X1: 90, Y1: 50, X2: 210, Y2: 150}, head)
}

func TestRotateImageDimensions(t *testing.T) {
	img := testFrame(40, 30)

	for _, tc := range []struct {
		degrees int
		w, h    int
	}{
		{0, 40, 30},
		{90, 30, 40},
		{180, 40, 30},
		{270, 30, 40},
	} {
		rotated := rotateImage(img, tc.degrees)
		require.Equal(t, tc.w, rotated.Bounds().Dx(), "deg=%d", tc.degrees)
		require.Equal(t, tc.h, rotated.Bounds().Dy(), "deg=%d", tc.degrees)
	}
}

func TestUnrotateBoxRoundTrip(t *testing.T) {
	// Rotate a known pixel, detect "it", map back.
	img := testFrame(40, 30)

	for _, degrees := range []int{90, 180, 270} {
		rotated := rotateImage(img, degrees)
		rb := rotated.Bounds()

		// A probe pixel at source (10, 5) — find it in the rotated image
		// by comparing colours, then check the box maps back around it.
		want := img.At(10, 5)
		var fx, fy int
		found := false
		for y := rb.Min.Y; y < rb.Max.Y && !found; y++ {
			for x := rb.Min.X; x < rb.Max.X; x++ {
				if rotated.At(x, y) == want {
					fx, fy = x, y
					found = true
					break
				}
			}
		}
		require.True(t, found, "deg=%d", degrees)

		box := geom.Box{X1: float64(fx), Y1: float64(fy), X2: float64(fx + 1), Y2: float64(fy + 1)}
		back := unrotateBox(box, degrees, rb.Dx(), rb.Dy())

		require.InDelta(t, 10, back.X1, 1, "deg=%d", degrees)
		require.InDelta(t, 5, back.Y1, 1, "deg=%d", degrees)
	}
}

func TestNMSKeepsHighestConfidence(t *testing.T) {
	dets := []Detection{
		{Box: geom.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}, Confidence: 0.6},
		{Box: geom.Box{X1: 5, Y1: 5, X2: 105, Y2: 105}, Confidence: 0.9},
		{Box: geom.Box{X1: 300, Y1: 300, X2: 350, Y2: 350}, Confidence: 0.5},
	}

	kept := nms(dets, 0.5)

	require.Len(t, kept, 2)
	require.InDelta(t, 0.9, kept[0].Confidence, 1e-6)
	require.InDelta(t, 0.5, kept[1].Confidence, 1e-6)
}
