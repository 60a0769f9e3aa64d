package station

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pulsefm/logger"
)

// Spool is the file-backed FIFO handing finished downloads to the
// stream loop, one absolute path per line. The file survives restarts
// so already-acquired audio is not lost.
type Spool struct {
	path string

	mu      sync.Mutex
	entries []string
}

// NewSpool opens (or creates) the spool file and loads its entries.
func NewSpool(path string) (*Spool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool dir: %w", err)
	}

	s := &Spool{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read spool: %w", err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return nil, fmt.Errorf("failed to create spool: %w", err)
		}
		return s, nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			s.entries = append(s.entries, line)
		}
	}
	if len(s.entries) > 0 {
		logger.Info("spool restored", logger.Int("entries", len(s.entries)))
	}
	return s, nil
}

// Append adds a playable file to the tail. Paths that do not exist or
// are already spooled are refused.
func (s *Spool) Append(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		logger.Warn("unusable spool path", logger.String("path", path), logger.ErrorField(err))
		return false
	}
	if _, err := os.Stat(abs); err != nil {
		logger.Warn("refusing to spool missing file", logger.String("path", abs))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing == abs {
			logger.Debug("file already spooled", logger.String("path", abs))
			return false
		}
	}
	s.entries = append(s.entries, abs)
	s.persistLocked()
	return true
}

// PopHead removes and returns the oldest entry. A head whose file has
// vanished since spooling is dropped and reported as absent.
func (s *Spool) PopHead() (string, bool) {
	s.mu.Lock()
	if len(s.entries) == 0 {
		s.mu.Unlock()
		return "", false
	}
	head := s.entries[0]
	s.entries = s.entries[1:]
	s.persistLocked()
	s.mu.Unlock()

	if _, err := os.Stat(head); err != nil {
		logger.Warn("spooled file vanished", logger.String("path", head))
		return "", false
	}
	return head, true
}

// Peek returns the oldest entry without removing it.
func (s *Spool) Peek() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return "", false
	}
	return s.entries[0], true
}

// Tail returns the newest entry, the hand-off predecessor for a
// crossfade, without removing it.
func (s *Spool) Tail() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return "", false
	}
	return s.entries[len(s.entries)-1], true
}

// Len returns the number of spooled entries.
func (s *Spool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Spool) persistLocked() {
	data := ""
	if len(s.entries) > 0 {
		data = strings.Join(s.entries, "\n") + "\n"
	}
	if err := os.WriteFile(s.path, []byte(data), 0o644); err != nil {
		logger.Error("failed to persist spool", logger.ErrorField(err))
	}
}
