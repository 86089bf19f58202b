package track

import (
	hungarian "github.com/arthurkushman/go-hungarian"

	"github.com/your-org/vb/internal/geom"
)

// Matcher assigns detections to tracks. Match returns one detection index
// per track (aligned with the tracks slice), or -1 for unmatched tracks.
// A detection index appears at most once in the result.
type Matcher interface {
	Match(tracks, detections []geom.Box, minIoU float64) []int
}

// GreedyMatcher assigns each track its best not-yet-claimed detection,
// processing tracks in slice order. This is intentionally not a globally
// optimal assignment: when two tracks prefer the same detection, the
// earlier track wins and the later one falls back to its next best.
// Swap in HungarianMatcher if stricter assignment is required; the
// surrounding tracker contract does not change.
type GreedyMatcher struct{}

func (GreedyMatcher) Match(tracks, detections []geom.Box, minIoU float64) []int {
	assigned := make([]int, len(tracks))
	claimed := make([]bool, len(detections))

	for ti, tb := range tracks {
		best := -1
		bestIoU := minIoU
		for di, db := range detections {
			if claimed[di] {
				continue
			}
			if v := geom.IoU(tb, db); v > bestIoU {
				bestIoU = v
				best = di
			}
		}
		assigned[ti] = best
		if best >= 0 {
			claimed[best] = true
		}
	}
	return assigned
}

// HungarianMatcher solves the track-to-detection assignment as a weighted
// bipartite matching over the IoU matrix, padded square with zeros.
type HungarianMatcher struct{}

func (HungarianMatcher) Match(tracks, detections []geom.Box, minIoU float64) []int {
	assigned := make([]int, len(tracks))
	for i := range assigned {
		assigned[i] = -1
	}
	if len(tracks) == 0 || len(detections) == 0 {
		return assigned
	}

	size := max(len(tracks), len(detections))
	matrix := make([][]float64, size)
	for i := range matrix {
		matrix[i] = make([]float64, size)
	}
	for ti, tb := range tracks {
		for di, db := range detections {
			matrix[ti][di] = geom.IoU(tb, db)
		}
	}

	for ti, row := range hungarian.SolveMax(matrix) {
		if ti >= len(tracks) {
			continue
		}
		for di, score := range row {
			if di < len(detections) && score > minIoU {
				assigned[ti] = di
			}
		}
	}
	return assigned
}
