package geom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", Box{100, 100, 200, 200}, Box{100, 100, 200, 200}, 1.0},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 30, 30}, 0.0},
		{"touching edges", Box{0, 0, 10, 10}, Box{10, 0, 20, 10}, 0.0},
		{"half overlap", Box{0, 0, 10, 10}, Box{0, 5, 10, 15}, 50.0 / 150.0},
		{"degenerate a", Box{5, 5, 5, 5}, Box{0, 0, 10, 10}, 0.0},
		{"both degenerate", Box{}, Box{}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-9)
			require.InDelta(t, tt.want, IoU(tt.b, tt.a), 1e-9, "IoU must be symmetric")
		})
	}
}

func TestInflate(t *testing.T) {
	b := Box{100, 100, 200, 200}.Inflate(0.10)
	require.Equal(t, Box{90, 90, 210, 210}, b)

	// Zero ratio is the identity.
	require.Equal(t, Box{100, 100, 200, 200}, Box{100, 100, 200, 200}.Inflate(0))
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name  string
		in    Box
		want  Box
		valid bool
	}{
		{"inside", Box{10, 10, 20, 20}, Box{10, 10, 20, 20}, true},
		{"spills all sides", Box{-5, -5, 700, 700}, Box{0, 0, 640, 480}, true},
		{"fully outside", Box{700, 500, 800, 600}, Box{700, 500, 640, 480}, false},
		{"negative coords", Box{-20, -20, -5, -5}, Box{0, 0, -5, -5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clamp(640, 480)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.valid, got.Valid())
		})
	}
}

func TestCenterAndArea(t *testing.T) {
	b := Box{100, 100, 200, 300}
	require.Equal(t, 150.0, b.CenterX())
	require.Equal(t, 200.0, b.CenterY())
	require.Equal(t, 100.0*200.0, b.Area())
	require.Equal(t, 0.0, Box{10, 10, 10, 30}.Area())
}
