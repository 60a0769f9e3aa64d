package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTrackFromExternal(t *testing.T) {
	first := TrackFromExternal("https://cdn.example.com/set.mp3", "Night Drive", "Vance", 240)

	if !strings.HasPrefix(first.ID, "external_") {
		t.Errorf("ID = %q, want external_ prefix", first.ID)
	}
	if first.ExternalURL != "https://cdn.example.com/set.mp3" {
		t.Errorf("ExternalURL = %q", first.ExternalURL)
	}
	if first.Album != "Night Drive" {
		t.Errorf("Album = %q, want the title", first.Album)
	}

	// Same URL, same ID: resubmissions must hit the duplicate checks.
	second := TrackFromExternal("https://cdn.example.com/set.mp3", "Other Title", "Other", 0)
	if second.ID != first.ID {
		t.Errorf("same URL produced different IDs: %q vs %q", first.ID, second.ID)
	}

	other := TrackFromExternal("https://cdn.example.com/other.mp3", "Night Drive", "Vance", 240)
	if other.ID == first.ID {
		t.Error("different URLs should produce different IDs")
	}
}

func TestTrackFromFileFilenameFallback(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		wantTitle  string
		wantArtist string
	}{
		{"title dash artist", "Night Drive - Vance.mp3", "Night Drive", "Vance"},
		{"no separator", "fieldrecording.mp3", "fieldrecording", ""},
		{"dash inside artist", "Go - A-Trak.mp3", "Go", "A-Trak"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte("not real audio"), 0o644); err != nil {
				t.Fatalf("write file: %v", err)
			}

			track := TrackFromFile(path)
			if track.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", track.Title, tt.wantTitle)
			}
			if track.Artist != tt.wantArtist {
				t.Errorf("Artist = %q, want %q", track.Artist, tt.wantArtist)
			}
			if !strings.HasPrefix(track.ID, "file_") {
				t.Errorf("ID = %q, want file_ prefix", track.ID)
			}
			if track.Album != tt.wantTitle {
				t.Errorf("Album = %q, want the title", track.Album)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		track *TrackMetadata
		want  string
	}{
		{"title and album", &TrackMetadata{Title: "Night Drive", Album: "Midnight"}, "Night Drive - Midnight"},
		{"no album", &TrackMetadata{Title: "Night Drive"}, "Night Drive"},
		{"empty", &TrackMetadata{}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.DisplayName(); got != tt.want {
				t.Errorf("DisplayName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	track := &TrackMetadata{Title: "  Night Drive ", Artist: " VANCE "}
	if got, want := track.CacheKey(), "night drive — vance"; got != want {
		t.Errorf("CacheKey = %q, want %q", got, want)
	}
}

func TestDirectSourceURL(t *testing.T) {
	external := TrackFromExternal("https://cdn.example.com/set.mp3", "T", "A", 0)
	if got := external.DirectSourceURL(); got != "https://cdn.example.com/set.mp3" {
		t.Errorf("external DirectSourceURL = %q", got)
	}

	catalog := TrackFromCatalog("cat1", "T", "A", "Al", 100, "", "https://catalog.example.com/track/cat1", "2020")
	if got := catalog.DirectSourceURL(); got != "" {
		t.Errorf("catalog DirectSourceURL = %q, want empty", got)
	}
}

func TestPrivilegedRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{RoleListener, false},
		{RoleDJ, true},
		{RoleModerator, true},
		{"", false},
		{"admin", false},
	}
	for _, tt := range tests {
		if got := PrivilegedRole(tt.role); got != tt.want {
			t.Errorf("PrivilegedRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}
