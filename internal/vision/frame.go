package vision

import (
	"image"
	"image/draw"
	"sync"

	"github.com/your-org/vb/internal/blur"
	"github.com/your-org/vb/internal/geom"
	"github.com/your-org/vb/internal/track"
)

// FramePipeline applies detection filtering, tracking and blurring to
// the frames of a single video source. It holds the tracker state for
// that source, so frames must be fed in playback order.
type FramePipeline struct {
	mu      sync.Mutex
	tracker *track.Tracker
	engine  *blur.Engine

	// Detections wider or taller than this fraction of the frame are
	// treated as detector noise and dropped before tracking.
	maxRatio float64

	dropped int64
}

func NewFramePipeline(trackCfg track.Config, engine *blur.Engine, maxDetectionRatio float64) *FramePipeline {
	if maxDetectionRatio <= 0 {
		maxDetectionRatio = 0.35
	}
	return &FramePipeline{
		tracker:  track.New(trackCfg),
		engine:   engine,
		maxRatio: maxDetectionRatio,
	}
}

// Process runs one frame through filter, track and blur. It returns the
// blurred frame and the regions that were actually blurred. The source
// image is never modified; the result is a fresh RGBA of the same
// dimensions. With no surviving detections the tracker still advances,
// so recently lost tracks keep coasting and stay blurred.
func (p *FramePipeline) Process(src image.Image, detections []geom.Box) (*image.RGBA, []geom.Box) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := cloneRGBA(src)
	fw := float64(frame.Bounds().Dx())
	fh := float64(frame.Bounds().Dy())

	kept := detections[:0:0]
	for _, d := range detections {
		if !d.Valid() {
			p.dropped++
			continue
		}
		if d.Width() >= p.maxRatio*fw || d.Height() >= p.maxRatio*fh {
			p.dropped++
			continue
		}
		kept = append(kept, d)
	}

	var blurred []geom.Box
	for _, r := range p.tracker.Update(kept) {
		clamped := r.Clamp(fw, fh)
		if !clamped.Valid() {
			continue
		}
		p.engine.BlurRegion(frame, clamped)
		blurred = append(blurred, clamped)
	}

	return frame, blurred
}

// TrackIDs returns the ids of all live tracks, matched and coasting.
func (p *FramePipeline) TrackIDs() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	tracks := p.tracker.Tracks()
	ids := make([]uint64, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// ActiveTracks reports how many regions are currently tracked.
func (p *FramePipeline) ActiveTracks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.ActiveCount()
}

// DroppedDetections reports how many raw detections were filtered out
// since the pipeline was created.
func (p *FramePipeline) DroppedDetections() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// cloneRGBA copies any image into a zero-origin RGBA.
func cloneRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
