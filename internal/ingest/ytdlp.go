package ingest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ResolveYouTubeURL uses yt-dlp to get the direct stream URL from a
// YouTube link. maxWidth caps the selected format; there is no point
// pulling more pixels than the pipeline will downscale to. Zero means
// 1920.
func ResolveYouTubeURL(ctx context.Context, youtubeURL string, maxWidth int) (string, error) {
	if maxWidth <= 0 {
		maxWidth = 1920
	}

	cmd := exec.CommandContext(ctx, "yt-dlp",
		"--get-url",
		"--format", fmt.Sprintf("best[width<=%d]", maxWidth),
		"--no-playlist",
		youtubeURL,
	)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	// yt-dlp may return multiple lines (video + audio URLs); use only the first
	raw := strings.TrimSpace(string(output))
	url := strings.SplitN(raw, "\n", 2)[0]
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("yt-dlp returned empty URL")
	}

	return url, nil
}
