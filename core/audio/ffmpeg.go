package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg drives the ffmpeg/ffprobe pair every audio operation runs on.
type FFmpeg struct {
	path string
}

// NewFFmpeg wraps the ffmpeg binary at path.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

func (f *FFmpeg) probePath() string {
	return strings.Replace(f.path, "ffmpeg", "ffprobe", 1)
}

// run executes ffmpeg with the given args, surfacing stderr on failure.
func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s failed: %w: %s", args[len(args)-1], err, stderr.String())
	}
	return nil
}

// ffprobeOutput maps the JSON slice of ffprobe output we consume.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration reads the length of an audio file in seconds via ffprobe.
func (f *FFmpeg) Duration(ctx context.Context, inputFile string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, f.probePath(), args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output for %s: %w", inputFile, err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("no duration in ffprobe output for %s", inputFile)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q for %s: %w", probeData.Format.Duration, inputFile, err)
	}
	return duration, nil
}

// Fetch downloads any ffmpeg-readable source URL and transcodes it to
// MP3 at the given bitrate.
func (f *FFmpeg) Fetch(ctx context.Context, url, outputPath, bitrate string) error {
	return f.run(ctx,
		"-y", "-i", url,
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		outputPath,
	)
}

// StreamCommand builds the realtime transcode command whose stdout
// carries the MP3 frames pushed to the relay. -re paces the read at
// playback speed so a three-minute file takes three minutes to emit.
func (f *FFmpeg) StreamCommand(ctx context.Context, inputFile string, bitrateKbps int) *exec.Cmd {
	return exec.CommandContext(ctx, f.path,
		"-re", "-i", inputFile,
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", bitrateKbps),
		"-ar", "44100",
		"-f", "mp3", "-",
	)
}
