package library

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pulsefm/logger"
	"pulsefm/storage"

	"github.com/fsnotify/fsnotify"
)

// SourceCache is the content-addressed store of acquired audio, keyed
// by the normalized "title — artist" identity. It is checked before any
// network fetch. An in-memory index backs the lookups; an fsnotify
// watcher keeps the index honest when files appear or disappear behind
// the process's back. The optional archive mirrors entries into object
// storage and serves misses before the provider chain runs.
type SourceCache struct {
	dir     string
	archive *storage.Archive

	mu    sync.RWMutex
	index map[string]string // file name -> absolute path

	watcher *fsnotify.Watcher
	done    chan struct{}
	rnd     *rand.Rand
}

// NewSourceCache opens the cache directory, builds the index and starts
// the directory watcher.
func NewSourceCache(dir string, archive *storage.Archive) (*SourceCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
	}

	c := &SourceCache{
		dir:     abs,
		archive: archive,
		index:   make(map[string]string),
		done:    make(chan struct{}),
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := c.rescan(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("cache watcher unavailable, falling back to stat checks", logger.ErrorField(err))
	} else if err := watcher.Add(abs); err != nil {
		logger.Warn("cache watcher add failed", logger.ErrorField(err))
		watcher.Close()
	} else {
		c.watcher = watcher
		go c.watch()
	}

	logger.Info("audio cache ready",
		logger.String("dir", abs),
		logger.Int("entries", c.Len()),
		logger.Bool("archive", archive != nil))
	return c, nil
}

// Close stops the watcher.
func (c *SourceCache) Close() error {
	close(c.done)
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func (c *SourceCache) rescan() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to scan cache dir: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		c.index[entry.Name()] = filepath.Join(c.dir, entry.Name())
	}
	return nil
}

func (c *SourceCache) watch() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".mp3") {
				continue
			}
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				c.mu.Lock()
				c.index[name] = filepath.Join(c.dir, name)
				c.mu.Unlock()
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				c.mu.Lock()
				delete(c.index, name)
				c.mu.Unlock()
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("cache watcher error", logger.ErrorField(err))
		case <-c.done:
			return
		}
	}
}

// Sanitize turns a cache key into a filesystem-safe file stem.
func Sanitize(key string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(key) {
		switch {
		case r < 32:
			// drop control characters
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FileName maps a cache key to its file name inside the cache dir.
func FileName(key string) string {
	return Sanitize(key) + ".mp3"
}

// Get returns the cached path for a key. On a local miss the archive is
// consulted; an archive hit is downloaded into the cache and still
// counts as a cache hit for the acquisition chain.
func (c *SourceCache) Get(ctx context.Context, key string) (string, bool) {
	name := FileName(key)

	c.mu.RLock()
	path, ok := c.index[name]
	c.mu.RUnlock()
	if ok {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		c.mu.Lock()
		delete(c.index, name)
		c.mu.Unlock()
	}

	// The watcher can lag behind a fresh write; stat directly before
	// declaring a miss.
	direct := filepath.Join(c.dir, name)
	if _, err := os.Stat(direct); err == nil {
		c.mu.Lock()
		c.index[name] = direct
		c.mu.Unlock()
		return direct, true
	}

	if c.archive != nil {
		found, err := c.archive.Fetch(ctx, name, direct)
		if err != nil {
			logger.Warn("archive fetch failed", logger.String("key", key), logger.ErrorField(err))
		} else if found {
			c.mu.Lock()
			c.index[name] = direct
			c.mu.Unlock()
			logger.Info("cache miss served from archive", logger.String("key", key))
			return direct, true
		}
	}

	return "", false
}

// Put moves a finished download into the cache under the key and
// removes the transient copy. The archive upload is best-effort.
func (c *SourceCache) Put(ctx context.Context, tempPath, key string) (string, error) {
	name := FileName(key)
	dest := filepath.Join(c.dir, name)

	if err := moveFile(tempPath, dest); err != nil {
		return "", fmt.Errorf("failed to cache %s: %w", key, err)
	}

	c.mu.Lock()
	c.index[name] = dest
	c.mu.Unlock()

	if c.archive != nil {
		if err := c.archive.Upload(ctx, dest); err != nil {
			logger.Warn("archive upload failed", logger.String("key", key), logger.ErrorField(err))
		}
	}

	return dest, nil
}

// RandomEntry picks a uniformly random cached file, used as the
// emergency substitute when every acquisition source fails.
func (c *SourceCache) RandomEntry() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.index) == 0 {
		return "", false
	}

	n := c.rnd.Intn(len(c.index))
	for _, path := range c.index {
		if n == 0 {
			return path, true
		}
		n--
	}
	return "", false
}

// Len returns the number of indexed entries.
func (c *SourceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// Entries returns the indexed file names, unordered.
func (c *SourceCache) Entries() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.index))
	for name := range c.index {
		names = append(names, name)
	}
	return names
}

// Dir returns the cache directory.
func (c *SourceCache) Dir() string {
	return c.dir
}

// moveFile renames when possible and falls back to copy+remove across
// filesystems.
func moveFile(src, dest string) error {
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
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
