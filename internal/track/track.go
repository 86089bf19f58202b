// Package track stabilizes raw per-frame detection boxes into persistent
// regions. Each region keeps a velocity estimate so that short detector
// dropouts do not make the blurred area jump or disappear.
package track

import "github.com/your-org/vb/internal/geom"

// Track is one persistent region followed across frames.
type Track struct {
	// ID is assigned monotonically by the owning Tracker and never reused.
	ID uint64
	// Box is the current smoothed position.
	Box geom.Box
	// VX, VY are the per-frame velocity estimates in pixels.
	VX, VY float64
	// LostFrames counts consecutive frames without a matching detection.
	LostFrames int
}

// predict advances the box by the current velocity estimate and ages the
// track by one frame. Called once per frame before matching, so matching
// always runs against the motion-extrapolated position.
func (t *Track) predict() {
	t.Box = t.Box.Translate(t.VX, t.VY)
	t.LostFrames++
}

// correct blends the predicted state with a matched detection using
// exponential smoothing: old estimate weighted alpha, observation 1-alpha.
// The velocity innovation is measured against the last corrected position
// (the predicted center minus the velocity step), which keeps the estimate
// unbiased under constant motion. Box edges are smoothed independently
// between the predicted box and the detection.
func (t *Track) correct(det geom.Box, alpha float64) {
	dx := det.CenterX() - (t.Box.CenterX() - t.VX)
	dy := det.CenterY() - (t.Box.CenterY() - t.VY)
	t.VX = t.VX*alpha + dx*(1-alpha)
	t.VY = t.VY*alpha + dy*(1-alpha)

	t.Box = geom.Box{
		X1: t.Box.X1*alpha + det.X1*(1-alpha),
		Y1: t.Box.Y1*alpha + det.Y1*(1-alpha),
		X2: t.Box.X2*alpha + det.X2*(1-alpha),
		Y2: t.Box.Y2*alpha + det.Y2*(1-alpha),
	}
	t.LostFrames = 0
}
