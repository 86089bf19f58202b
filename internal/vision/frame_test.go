package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/vb/internal/blur"
	"github.com/your-org/vb/internal/geom"
	"github.com/your-org/vb/internal/track"
)

func testFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 7 % 256),
				G: uint8(y * 13 % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func newTestPipeline(t *testing.T) *FramePipeline {
	t.Helper()
	return NewFramePipeline(track.Config{}, blur.NewEngine(51, blur.Gaussian), 0.35)
}

func TestProcessNoDetectionsIdenticalCopy(t *testing.T) {
	p := newTestPipeline(t)
	src := testFrame(64, 48)

	out, blurred := p.Process(src, nil)

	require.Empty(t, blurred)
	require.Equal(t, src.Bounds(), out.Bounds())
	require.Equal(t, src.Pix, out.Pix)
}

func TestProcessDoesNotModifySource(t *testing.T) {
	p := newTestPipeline(t)
	src := testFrame(100, 100)
	orig := make([]uint8, len(src.Pix))
	copy(orig, src.Pix)

	out, blurred := p.Process(src, []geom.Box{{X1: 20, Y1: 20, X2: 30, Y2: 30}})

	require.NotEmpty(t, blurred)
	require.Equal(t, orig, src.Pix)
	require.NotEqual(t, src.Pix, out.Pix)
}

func TestProcessFiltersOversizedDetections(t *testing.T) {
	p := newTestPipeline(t)
	src := testFrame(100, 100)

	// 35 of 100 px wide hits the >= 35% cutoff exactly.
	out, blurred := p.Process(src, []geom.Box{
		{X1: 0, Y1: 0, X2: 35, Y2: 10},
		{X1: 0, Y1: 0, X2: 10, Y2: 35},
	})

	require.Empty(t, blurred)
	require.Equal(t, src.Pix, out.Pix)
	require.EqualValues(t, 2, p.DroppedDetections())
	require.Zero(t, p.ActiveTracks())
}

func TestProcessFiltersDegenerateDetections(t *testing.T) {
	p := newTestPipeline(t)
	src := testFrame(100, 100)

	_, blurred := p.Process(src, []geom.Box{
		{X1: 10, Y1: 10, X2: 10, Y2: 30},
		{X1: 40, Y1: 40, X2: 20, Y2: 60},
	})

	require.Empty(t, blurred)
	require.EqualValues(t, 2, p.DroppedDetections())
}

func TestProcessCoastsLostTracks(t *testing.T) {
	p := newTestPipeline(t)
	src := testFrame(200, 200)

	_, first := p.Process(src, []geom.Box{{X1: 50, Y1: 50, X2: 80, Y2: 80}})
	require.Len(t, first, 1)

	// Detection gone — the track coasts and its region is still blurred.
	_, second := p.Process(src, nil)
	require.Len(t, second, 1)
	require.Equal(t, 1, p.ActiveTracks())
}

func TestProcessClampsEmittedRegions(t *testing.T) {
	p := newTestPipeline(t)
	src := testFrame(100, 100)

	// Near the edge: the 10% inflation pushes past the frame and must
	// be clamped back inside before blurring.
	_, blurred := p.Process(src, []geom.Box{{X1: 90, Y1: 90, X2: 99, Y2: 99}})
	require.Len(t, blurred, 1)
	require.LessOrEqual(t, blurred[0].X2, 100.0)
	require.LessOrEqual(t, blurred[0].Y2, 100.0)
	require.GreaterOrEqual(t, blurred[0].X1, 0.0)
	require.GreaterOrEqual(t, blurred[0].Y1, 0.0)
}

func TestTrackIDs(t *testing.T) {
	p := newTestPipeline(t)
	src := testFrame(200, 200)

	p.Process(src, []geom.Box{
		{X1: 10, Y1: 10, X2: 40, Y2: 40},
		{X1: 100, Y1: 100, X2: 140, Y2: 140},
	})

	require.ElementsMatch(t, []uint64{0, 1}, p.TrackIDs())
}
