package track

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/your-org/vb/internal/geom"
)

func TestUpdateEmptyInputs(t *testing.T) {
	tr := New(Config{})
	require.Empty(t, tr.Update(nil))
	require.Empty(t, tr.Update([]geom.Box{}))
	require.Equal(t, 0, tr.ActiveCount())
}

func TestSpawnAndScenario(t *testing.T) {
	// 800x600 frame. Frame 1: one detection spawns track 0 with zero
	// velocity; the emitted box is the detection inflated by 10%.
	tr := New(Config{})

	out := tr.Update([]geom.Box{{X1: 100, Y1: 100, X2: 200, Y2: 200}})
	require.Len(t, out, 1)
	require.Equal(t, geom.Box{X1: 90, Y1: 90, X2: 210, Y2: 210}, out[0])

	tracks := tr.Tracks()
	require.Len(t, tracks, 1)
	require.Equal(t, uint64(0), tracks[0].ID)
	require.Equal(t, 0.0, tracks[0].VX)
	require.Equal(t, 0.0, tracks[0].VY)

	// Frame 2: detection moved by (10, 5). The predicted box (no velocity
	// yet) still overlaps well above 0.3, so it matches instead of
	// spawning; velocity becomes the center delta weighted 1-alpha = 0.4.
	out = tr.Update([]geom.Box{{X1: 110, Y1: 105, X2: 210, Y2: 205}})
	require.Len(t, out, 1)

	tracks = tr.Tracks()
	require.Len(t, tracks, 1, "no second track may be created")
	require.Equal(t, uint64(0), tracks[0].ID)
	require.InDelta(t, 10*0.4, tracks[0].VX, 1e-9)
	require.InDelta(t, 5*0.4, tracks[0].VY, 1e-9)
	require.Equal(t, 0, tracks[0].LostFrames)
}

func TestIDsMonotonicNeverReused(t *testing.T) {
	tr := New(Config{MaxLostFrames: 1})

	far := func(i int) geom.Box {
		x := float64(i * 100)
		return geom.Box{X1: x, Y1: 0, X2: x + 50, Y2: 50}
	}

	tr.Update([]geom.Box{far(0), far(1)})
	ids := []uint64{tr.Tracks()[0].ID, tr.Tracks()[1].ID}
	require.Equal(t, []uint64{0, 1}, ids)

	// Let both die, then spawn a new one: the id counter must not rewind.
	tr.Update(nil)
	tr.Update(nil)
	require.Equal(t, 0, tr.ActiveCount())

	tr.Update([]geom.Box{far(0)})
	require.Equal(t, uint64(2), tr.Tracks()[0].ID)
}

func TestPruneAfterMaxLostFrames(t *testing.T) {
	tr := New(Config{})
	tr.Update([]geom.Box{{X1: 100, Y1: 100, X2: 200, Y2: 200}})

	// 15 consecutive missed frames: the track survives each one.
	for i := 1; i <= 15; i++ {
		out := tr.Update(nil)
		require.Len(t, out, 1, "frame %d", i)
	}
	// Frame 16 without a match removes it.
	require.Empty(t, tr.Update(nil))
	require.Equal(t, 0, tr.ActiveCount())
}

func TestVelocityConvergence(t *testing.T) {
	tr := New(Config{})
	const vx, vy = 4.0, -2.0

	box := geom.Box{X1: 300, Y1: 300, X2: 380, Y2: 380}
	for i := 0; i < 60; i++ {
		out := tr.Update([]geom.Box{box})
		require.Len(t, out, 1)
		require.Equal(t, 1, tr.ActiveCount(), "constant motion must not fork tracks")
		box = box.Translate(vx, vy)
	}

	got := tr.Tracks()[0]
	require.InDelta(t, vx, got.VX, 0.05)
	require.InDelta(t, vy, got.VY, 0.05)
}

func TestGreedyOrderPreference(t *testing.T) {
	// Two tracks both overlap the single detection; the one inserted
	// first claims it and the second goes unmatched.
	tr := New(Config{})
	a := geom.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}
	b := geom.Box{X1: 20, Y1: 0, X2: 120, Y2: 100}
	tr.Update([]geom.Box{a, b})

	det := geom.Box{X1: 10, Y1: 0, X2: 110, Y2: 100}
	tr.Update([]geom.Box{det})

	tracks := tr.Tracks()
	require.Len(t, tracks, 2)
	require.Equal(t, 0, tracks[0].LostFrames, "first track claims the detection")
	require.Equal(t, 1, tracks[1].LostFrames, "second track stays unmatched")
}

func TestLowIoUSpawnsInsteadOfMatching(t *testing.T) {
	tr := New(Config{})
	tr.Update([]geom.Box{{X1: 0, Y1: 0, X2: 50, Y2: 50}})

	// Barely-overlapping detection below the 0.3 threshold becomes a new
	// track rather than dragging the old one across the frame.
	tr.Update([]geom.Box{{X1: 45, Y1: 45, X2: 95, Y2: 95}})
	require.Equal(t, 2, tr.ActiveCount())
}

func TestDegenerateEmitDropped(t *testing.T) {
	tr := New(Config{})
	// A zero-area detection spawns a track whose inflated box is still
	// degenerate; emit must drop it without error.
	out := tr.Update([]geom.Box{{X1: 10, Y1: 10, X2: 10, Y2: 10}})
	require.Empty(t, out)
}
