package track

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/vb/internal/geom"
)

func TestGreedyMatcher(t *testing.T) {
	tracks := []geom.Box{
		{X1: 0, Y1: 0, X2: 100, Y2: 100},
		{X1: 10, Y1: 0, X2: 110, Y2: 100},
	}
	// One detection both tracks want, one only the second can take.
	detections := []geom.Box{
		{X1: 5, Y1: 0, X2: 105, Y2: 100},
		{X1: 60, Y1: 0, X2: 160, Y2: 100},
	}

	got := GreedyMatcher{}.Match(tracks, detections, 0.3)
	require.Equal(t, []int{0, 1}, got, "first track claims the shared detection, second falls back")
}

func TestGreedyMatcherUnmatched(t *testing.T) {
	tracks := []geom.Box{{X1: 0, Y1: 0, X2: 10, Y2: 10}}
	detections := []geom.Box{{X1: 500, Y1: 500, X2: 510, Y2: 510}}

	got := GreedyMatcher{}.Match(tracks, detections, 0.3)
	require.Equal(t, []int{-1}, got)

	require.Equal(t, []int{-1}, GreedyMatcher{}.Match(tracks, nil, 0.3))
	require.Empty(t, GreedyMatcher{}.Match(nil, detections, 0.3))
}

func TestHungarianMatcher(t *testing.T) {
	tracks := []geom.Box{
		{X1: 0, Y1: 0, X2: 100, Y2: 100},
		{X1: 200, Y1: 0, X2: 300, Y2: 100},
	}
	detections := []geom.Box{
		{X1: 205, Y1: 0, X2: 305, Y2: 100}, // best for track 1
		{X1: 5, Y1: 0, X2: 105, Y2: 100},   // best for track 0
	}

	got := HungarianMatcher{}.Match(tracks, detections, 0.3)
	require.Equal(t, []int{1, 0}, got)
}

func TestHungarianMatcherRectangular(t *testing.T) {
	// More tracks than detections: the padded assignment must leave the
	// distant track unmatched rather than forcing a zero-IoU pair.
	tracks := []geom.Box{
		{X1: 0, Y1: 0, X2: 100, Y2: 100},
		{X1: 400, Y1: 400, X2: 500, Y2: 500},
	}
	detections := []geom.Box{{X1: 10, Y1: 0, X2: 110, Y2: 100}}

	got := HungarianMatcher{}.Match(tracks, detections, 0.3)
	require.Equal(t, 0, got[0])
	require.Equal(t, -1, got[1])
}
