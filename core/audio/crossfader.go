package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"pulsefm/logger"

	"github.com/google/uuid"
)

// Crossfader rewrites a consecutive pair of spooled files so the first
// fades into the second. The tail of the current track and the head of
// the next are mixed into an overlap that replaces both boundaries,
// giving a gapless handover even though the two files still stream one
// after the other.
type Crossfader struct {
	ffmpeg     *FFmpeg
	scratchDir string
	overlapSec int // total crossfade window, split evenly across both files
}

// NewCrossfader builds a crossfader working inside scratchDir.
func NewCrossfader(ffmpeg *FFmpeg, scratchDir string, overlapSec int) *Crossfader {
	return &Crossfader{ffmpeg: ffmpeg, scratchDir: scratchDir, overlapSec: overlapSec}
}

// Blend fades currentPath into nextPath in place. On any failure both
// originals are left untouched and the pair plays back to back with a
// plain cut.
func (c *Crossfader) Blend(ctx context.Context, currentPath, nextPath string) error {
	half := c.overlapSec / 2
	if half <= 0 {
		return nil
	}

	dur, err := c.ffmpeg.Duration(ctx, currentPath)
	if err != nil {
		return fmt.Errorf("failed to probe %s: %w", currentPath, err)
	}
	fadeOutStart := dur - float64(half)
	if fadeOutStart <= float64(half) {
		return fmt.Errorf("track too short to blend: %.1fs", dur)
	}

	workDir := filepath.Join(c.scratchDir, "blend-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create blend dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	fadeTail := filepath.Join(workDir, "current_tail.mp3")
	fadeHead := filepath.Join(workDir, "next_head.mp3")
	overlapMix := filepath.Join(workDir, "overlap_mix.mp3")
	trimmedCurrent := filepath.Join(workDir, "current_trimmed.mp3")
	trimmedNext := filepath.Join(workDir, "next_trimmed.mp3")
	nextFinal := filepath.Join(workDir, "next_final.mp3")

	halfArg := strconv.Itoa(half)
	fadeArg := fmt.Sprintf("%.3f", fadeOutStart)

	// Tail of the current track, faded out.
	if err := c.ffmpeg.run(ctx,
		"-y", "-ss", fadeArg, "-t", halfArg,
		"-i", currentPath,
		"-af", fmt.Sprintf("afade=t=out:st=0:d=%d:curve=cub", half),
		"-c:a", "libmp3lame", fadeTail,
	); err != nil {
		return err
	}

	// Head of the next track, faded in.
	if err := c.ffmpeg.run(ctx,
		"-y", "-t", halfArg,
		"-i", nextPath,
		"-af", fmt.Sprintf("afade=t=in:st=0:d=%d:curve=cub", half),
		"-c:a", "libmp3lame", fadeHead,
	); err != nil {
		return err
	}

	// Mix the two faded windows into the overlap.
	if err := c.ffmpeg.run(ctx,
		"-y",
		"-i", fadeTail,
		"-i", fadeHead,
		"-filter_complex", "[0:a][1:a]amix=inputs=2:duration=first:dropout_transition=0",
		"-c:a", "libmp3lame", overlapMix,
	); err != nil {
		return err
	}

	// Current track without the faded tail.
	if err := c.ffmpeg.run(ctx,
		"-y",
		"-i", currentPath,
		"-t", fadeArg,
		"-c:a", "libmp3lame", trimmedCurrent,
	); err != nil {
		return err
	}

	// Next track without the faded head.
	if err := c.ffmpeg.run(ctx,
		"-y",
		"-ss", halfArg,
		"-i", nextPath,
		"-c:a", "libmp3lame", trimmedNext,
	); err != nil {
		return err
	}

	// Overlap glued onto the trimmed next track.
	if err := c.ffmpeg.run(ctx,
		"-y",
		"-i", overlapMix,
		"-i", trimmedNext,
		"-filter_complex", "[0:a][1:a]concat=n=2:v=0:a=1",
		"-c:a", "libmp3lame", nextFinal,
	); err != nil {
		return err
	}

	if err := replaceFile(trimmedCurrent, currentPath); err != nil {
		return fmt.Errorf("failed to replace current track: %w", err)
	}
	if err := replaceFile(nextFinal, nextPath); err != nil {
		return fmt.Errorf("failed to replace next track: %w", err)
	}

	logger.Info("crossfade applied",
		logger.String("current", filepath.Base(currentPath)),
		logger.String("next", filepath.Base(nextPath)),
		logger.Int("overlapSec", c.overlapSec))
	return nil
}

// replaceFile renames src over dest, copying when the rename crosses
// filesystems.
func replaceFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
