package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"25/1", 25},
		{"30000/1001", 30},
		{"24000/1001", 24},
		{"30", 30},
		{"0/0", 0},
		{"garbage", 0},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, parseFrameRate(tc.in), "rate %q", tc.in)
	}
}

func TestReadJPEGFramesSplitsStream(t *testing.T) {
	frame1 := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}
	frame2 := []byte{0xFF, 0xD8, 0x0A, 0x0B, 0xFF, 0xD9}
	stream := append(append([]byte{}, frame1...), frame2...)

	var got [][]byte
	var indexes []int
	err := readJPEGFrames(context.Background(), bytes.NewReader(stream), func(index int, data []byte) error {
		indexes = append(indexes, index)
		got = append(got, append([]byte{}, data...))
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, [][]byte{frame1, frame2}, got)
	require.Equal(t, []int{0, 1}, indexes)
}

func TestReadJPEGFramesSkipsLeadingGarbage(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x42, 0xFF, 0xD9}
	stream := append([]byte{0x00, 0x11, 0xFF, 0x00}, frame...)

	var got [][]byte
	err := readJPEGFrames(context.Background(), bytes.NewReader(stream), func(_ int, data []byte) error {
		got = append(got, append([]byte{}, data...))
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, [][]byte{frame}, got)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"action":"start","job_id":"abc"}`))
	require.NoError(t, err)
	require.Equal(t, "start", cmd.Action)
	require.Equal(t, "abc", cmd.JobID)

	_, err = ParseCommand([]byte(`{not json`))
	require.Error(t, err)
}
