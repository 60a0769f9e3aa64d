package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStreamCommandArgs(t *testing.T) {
	f := NewFFmpeg("/usr/bin/ffmpeg")
	cmd := f.StreamCommand(context.Background(), "/data/spool/track.mp3", 128)

	joined := strings.Join(cmd.Args, " ")
	for _, want := range []string{
		"/usr/bin/ffmpeg",
		"-re",
		"-i /data/spool/track.mp3",
		"-c:a libmp3lame",
		"-b:a 128k",
		"-ar 44100",
		"-f mp3 -",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("stream command %q missing %q", joined, want)
		}
	}
}

func TestNewFFmpegDefaultsPath(t *testing.T) {
	if got := NewFFmpeg("").path; got != "ffmpeg" {
		t.Errorf("default path = %q, want ffmpeg", got)
	}
}

func TestProbePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ffmpeg", "ffprobe"},
		{"/usr/local/bin/ffmpeg", "/usr/local/bin/ffprobe"},
	}
	for _, tt := range tests {
		if got := NewFFmpeg(tt.in).probePath(); got != tt.want {
			t.Errorf("probePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp3")
	dest := filepath.Join(dir, "dest.mp3")
	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := replaceFile(src, dest); err != nil {
		t.Fatalf("replaceFile: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("dest content = %q, want %q", got, "new")
	}
}

func TestBlendRejectsShortTracks(t *testing.T) {
	c := NewCrossfader(NewFFmpeg(""), t.TempDir(), 0)
	// Zero overlap disables blending entirely.
	if err := c.Blend(context.Background(), "a.mp3", "b.mp3"); err != nil {
		t.Errorf("zero overlap should be a no-op, got %v", err)
	}
}
