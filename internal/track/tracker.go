package track

import "github.com/your-org/vb/internal/geom"

// Config holds the geometric constants of the tracker. Zero values are
// replaced with defaults by New.
type Config struct {
	// IoUThreshold is the minimum overlap for a detection to match a track.
	IoUThreshold float64 `yaml:"iou_threshold"`
	// SmoothingAlpha weights the previous estimate in exponential smoothing.
	SmoothingAlpha float64 `yaml:"smoothing_alpha"`
	// MaxLostFrames is how many consecutive missed frames a track survives.
	MaxLostFrames int `yaml:"max_lost_frames"`
	// InflationRatio inflates emitted boxes on each axis.
	InflationRatio float64 `yaml:"inflation_ratio"`
	// Matcher selects the assignment policy: "greedy" (default) or "hungarian".
	Matcher string `yaml:"matcher"`
}

const (
	defaultIoUThreshold   = 0.3
	defaultSmoothingAlpha = 0.6
	defaultMaxLostFrames  = 15
	defaultInflationRatio = 0.10
)

func (c Config) withDefaults() Config {
	if c.IoUThreshold == 0 {
		c.IoUThreshold = defaultIoUThreshold
	}
	if c.SmoothingAlpha == 0 {
		c.SmoothingAlpha = defaultSmoothingAlpha
	}
	if c.MaxLostFrames == 0 {
		c.MaxLostFrames = defaultMaxLostFrames
	}
	if c.InflationRatio == 0 {
		c.InflationRatio = defaultInflationRatio
	}
	return c
}

// Tracker owns the set of active tracks for one blurring session.
// Single-writer: exactly one pipeline calls Update, one frame at a time.
// Update never fails; every degenerate geometric input degrades to a
// no-op or an empty result.
type Tracker struct {
	cfg     Config
	matcher Matcher
	tracks  []*Track // insertion order, which the greedy matcher relies on
	nextID  uint64
}

func New(cfg Config) *Tracker {
	cfg = cfg.withDefaults()
	var m Matcher = GreedyMatcher{}
	if cfg.Matcher == "hungarian" {
		m = HungarianMatcher{}
	}
	return &Tracker{cfg: cfg, matcher: m}
}

// Update runs one frame of the tracker: predict, match, correct, spawn,
// prune, emit. Detections must already be size-filtered by the caller.
// The returned boxes are inflated by the configured ratio; degenerate
// results are dropped silently.
func (t *Tracker) Update(detections []geom.Box) []geom.Box {
	// Predict: every track advances by its velocity and ages by one frame.
	predicted := make([]geom.Box, len(t.tracks))
	for i, tr := range t.tracks {
		tr.predict()
		predicted[i] = tr.Box
	}

	assigned := t.matcher.Match(predicted, detections, t.cfg.IoUThreshold)

	claimed := make([]bool, len(detections))
	for ti, di := range assigned {
		if di < 0 {
			continue
		}
		t.tracks[ti].correct(detections[di], t.cfg.SmoothingAlpha)
		claimed[di] = true
	}

	// Spawn a fresh track for every unclaimed detection.
	for di, det := range detections {
		if claimed[di] {
			continue
		}
		t.tracks = append(t.tracks, &Track{ID: t.nextID, Box: det})
		t.nextID++
	}

	// Prune tracks lost for longer than the threshold. A track survives
	// exactly MaxLostFrames consecutive misses before removal.
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.LostFrames <= t.cfg.MaxLostFrames {
			kept = append(kept, tr)
		}
	}
	for i := len(kept); i < len(t.tracks); i++ {
		t.tracks[i] = nil
	}
	t.tracks = kept

	out := make([]geom.Box, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if b := tr.Box.Inflate(t.cfg.InflationRatio); b.Valid() {
			out = append(out, b)
		}
	}
	return out
}

// Tracks returns a snapshot of the active tracks, in insertion order.
func (t *Tracker) Tracks() []Track {
	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	return out
}

// ActiveCount returns the number of active tracks.
func (t *Tracker) ActiveCount() int {
	return len(t.tracks)
}
