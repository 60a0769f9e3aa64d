package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
)

// TrackMetadata is the canonical track record shared by every producer:
// catalog lookups, the playlist walker and manual external submissions.
// Immutable once fetched.
type TrackMetadata struct {
	ID          string `json:"id"` // catalog ID, or synthetic for external sources
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	DurationSec int    `json:"durationSec"`
	ArtworkURL  string `json:"albumArt"`
	ExternalURL string `json:"externalUrl"`
	ReleaseDate string `json:"releaseDate"`
}

// DownloadResult describes one completed acquisition. Ephemeral; the
// path points into the audio cache once the chain finishes.
type DownloadResult struct {
	Path        string `json:"path"`
	Source      string `json:"source"` // cache, saavn, soundcloud, youtube, cache_fallback
	DurationSec int    `json:"durationSec"`
}

// TrackFromCatalog builds the canonical record from a catalog result.
func TrackFromCatalog(id, title, artist, album string, durationSec int, artworkURL, externalURL, releaseDate string) *TrackMetadata {
	return &TrackMetadata{
		ID:          id,
		Title:       title,
		Artist:      artist,
		Album:       album,
		DurationSec: durationSec,
		ArtworkURL:  artworkURL,
		ExternalURL: externalURL,
		ReleaseDate: releaseDate,
	}
}

// TrackFromExternal builds a record for a manually submitted source URL.
// The ID is derived from the URL so resubmissions of the same link hit
// the duplicate checks.
func TrackFromExternal(sourceURL, title, artist string, durationSec int) *TrackMetadata {
	return &TrackMetadata{
		ID:          "external_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL)).String(),
		Title:       title,
		Artist:      artist,
		Album:       title,
		DurationSec: durationSec,
		ExternalURL: sourceURL,
	}
}

// TrackFromFile builds a record for a local audio file with no catalog
// identity. Embedded tags win; the "Title - Artist" filename convention
// is the fallback.
func TrackFromFile(path string) *TrackMetadata {
	t := &TrackMetadata{
		ID: "file_" + uuid.NewString(),
	}

	if f, err := os.Open(path); err == nil {
		if m, err := tag.ReadFrom(f); err == nil {
			t.Title = strings.TrimSpace(m.Title())
			t.Artist = strings.TrimSpace(m.Artist())
			t.Album = strings.TrimSpace(m.Album())
		}
		f.Close()
	}

	if t.Title == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if idx := strings.Index(base, " - "); idx > 0 {
			t.Title = strings.TrimSpace(base[:idx])
			t.Artist = strings.TrimSpace(base[idx+3:])
		} else {
			t.Title = base
		}
	}
	if t.Album == "" {
		t.Album = t.Title
	}

	return t
}

// DisplayName renders the track the way the relay metadata endpoint
// expects it.
func (t *TrackMetadata) DisplayName() string {
	if t == nil || t.Title == "" {
		return ""
	}
	if t.Album == "" {
		return t.Title
	}
	return fmt.Sprintf("%s - %s", t.Title, t.Album)
}

// CacheKey is the normalized "title — artist" identity used by the
// audio cache.
func (t *TrackMetadata) CacheKey() string {
	return strings.ToLower(strings.TrimSpace(t.Title) + " — " + strings.TrimSpace(t.Artist))
}

// DirectSourceURL returns the fetchable URL for externally submitted
// tracks. Catalog tracks return empty; their ExternalURL is a web page,
// not a media source.
func (t *TrackMetadata) DirectSourceURL() string {
	if strings.HasPrefix(t.ID, "external_") {
		return t.ExternalURL
	}
	return ""
}
