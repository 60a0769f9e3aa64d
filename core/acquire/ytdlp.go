package acquire

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// YtDlpDownloader shells out to yt-dlp. It is the last resort of the
// chain and never says no at the find stage: a search query is wrapped
// as ytsearch1 and whatever the first hit is gets downloaded.
type YtDlpDownloader struct {
	path string
}

// NewYtDlpDownloader wraps the yt-dlp binary at path.
func NewYtDlpDownloader(path string) *YtDlpDownloader {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlpDownloader{path: path}
}

func (d *YtDlpDownloader) Name() string { return SourceYouTube }

// FindByName wraps the query for single-result search.
func (d *YtDlpDownloader) FindByName(ctx context.Context, query string) (*FindResult, error) {
	return &FindResult{
		Title:  query,
		URL:    "ytsearch1:" + query,
		Source: SourceYouTube,
	}, nil
}

// DirectURL builds a result for a submitted video URL, bypassing
// search entirely.
func (d *YtDlpDownloader) DirectURL(url string) *FindResult {
	return &FindResult{
		Title:  url,
		URL:    url,
		Source: SourceYouTube,
	}
}

// Download extracts the best audio stream as 192k MP3.
func (d *YtDlpDownloader) Download(ctx context.Context, res *FindResult, destPath string) error {
	// yt-dlp appends the extension itself.
	template := strings.TrimSuffix(destPath, ".mp3") + ".%(ext)s"

	args := []string{
		"--no-playlist",
		"-f", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-progress",
		"--no-warnings",
		"-q",
		"-o", template,
		res.URL,
	}

	cmd := exec.CommandContext(ctx, d.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp failed: %w: %s", err, stderr.String())
	}

	if _, err := os.Stat(destPath); err != nil {
		return fmt.Errorf("yt-dlp finished but %s is missing: %w", destPath, err)
	}
	return nil
}
