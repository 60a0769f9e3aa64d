package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "daydream — hira", "daydream — hira"},
		{"path separators", "ac/dc — back\\in black", "ac_dc — back_in black"},
		{"windows reserved", `what? — "quoted": <tag>|pipe*`, "what_ — _quoted__ _tag___pipe_"},
		{"collapse whitespace", "  too   many \t spaces ", "too many spaces"},
		{"control chars dropped", "line\nbreak", "linebreak"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func newTestCache(t *testing.T) *SourceCache {
	t.Helper()
	cache, err := NewSourceCache(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewSourceCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func writeTemp(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("mp3-bytes"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestPutThenGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	temp := writeTemp(t, "download.mp3")
	path, err := cache.Put(ctx, temp, "daydream — hira")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(temp); !os.IsNotExist(err) {
		t.Errorf("temp file should be gone after Put, stat err = %v", err)
	}

	got, ok := cache.Get(ctx, "daydream — hira")
	if !ok {
		t.Fatal("Get after Put reported a miss")
	}
	if got != path {
		t.Errorf("Get = %q, want %q", got, path)
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestGetMiss(t *testing.T) {
	cache := newTestCache(t)
	if _, ok := cache.Get(context.Background(), "never cached"); ok {
		t.Error("Get on empty cache reported a hit")
	}
}

func TestGetDropsStaleEntry(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	temp := writeTemp(t, "download.mp3")
	path, err := cache.Put(ctx, temp, "gone soon — nobody")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Drop the file behind the index's back.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove cached file: %v", err)
	}

	if _, ok := cache.Get(ctx, "gone soon — nobody"); ok {
		t.Error("Get returned a hit for a deleted file")
	}
	if cache.Len() != 0 {
		t.Errorf("stale entry not evicted, Len = %d", cache.Len())
	}
}

func TestGetPicksUpExternalWrite(t *testing.T) {
	cache := newTestCache(t)

	// A file placed directly into the directory, as an operator might.
	name := FileName("dropped in — by hand")
	if err := os.WriteFile(filepath.Join(cache.Dir(), name), []byte("mp3-bytes"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, ok := cache.Get(context.Background(), "dropped in — by hand"); !ok {
		t.Error("Get missed a file present on disk")
	}
}

func TestRandomEntry(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if _, ok := cache.RandomEntry(); ok {
		t.Error("RandomEntry on empty cache reported a hit")
	}

	keys := []string{"one — a", "two — b", "three — c"}
	paths := make(map[string]bool)
	for _, key := range keys {
		path, err := cache.Put(ctx, writeTemp(t, "d.mp3"), key)
		if err != nil {
			t.Fatalf("Put(%q): %v", key, err)
		}
		paths[path] = true
	}

	for i := 0; i < 20; i++ {
		got, ok := cache.RandomEntry()
		if !ok {
			t.Fatal("RandomEntry reported a miss on populated cache")
		}
		if !paths[got] {
			t.Fatalf("RandomEntry returned unknown path %q", got)
		}
	}
}

func TestIndexRebuiltOnOpen(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{FileName("a — x"), FileName("b — y"), "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	cache, err := NewSourceCache(dir, nil)
	if err != nil {
		t.Fatalf("NewSourceCache: %v", err)
	}
	defer cache.Close()

	if cache.Len() != 2 {
		t.Errorf("Len = %d, want 2 (non-mp3 files ignored)", cache.Len())
	}
}
