package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
blur:
  strength: 31
  type: pixelate
tracking:
  max_lost_frames: 10
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	// Explicit values survive.
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 31, cfg.Blur.Strength)
	require.Equal(t, "pixelate", cfg.Blur.Type)
	require.Equal(t, 10, cfg.Tracking.MaxLostFrames)

	// Everything else is defaulted.
	require.Equal(t, 0.3, cfg.Tracking.IoUThreshold)
	require.Equal(t, 0.6, cfg.Tracking.SmoothingAlpha)
	require.Equal(t, 0.10, cfg.Tracking.InflationRatio)
	require.Equal(t, "greedy", cfg.Tracking.Matcher)
	require.Equal(t, 0.35, cfg.Pipeline.MaxDetectionRatio)
	require.Equal(t, 0.15, cfg.Detect.Confidence)
	require.Equal(t, 16, cfg.Encode.CRF)
	require.Equal(t, "ffmpeg", cfg.Encode.FFmpegPath)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestDetectTogglesDefaultOn(t *testing.T) {
	// No detect section at all: both models must still be enabled.
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.True(t, cfg.Detect.FacesEnabled())
	require.True(t, cfg.Detect.PlatesEnabled())

	// An explicit false is honored and does not drag the other model down.
	cfg, err = Load(writeConfig(t, sampleYAML+"\ndetect:\n  detect_faces: false\n"))
	require.NoError(t, err)
	require.False(t, cfg.Detect.FacesEnabled())
	require.True(t, cfg.Detect.PlatesEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VB_SERVER_PORT", "7070")
	t.Setenv("VB_NATS_URL", "nats://elsewhere:4222")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "nats://elsewhere:4222", cfg.NATS.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
