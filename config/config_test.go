package config

import (
	"reflect"
	"testing"
	"time"
)

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		fallback int
		want     int
	}{
		{"parses value", "42", true, 7, 42},
		{"bad value keeps fallback", "forty-two", true, 7, 7},
		{"unset keeps fallback", "", false, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "PULSEFM_TEST_INT"
			if tt.set {
				t.Setenv(key, tt.value)
			}
			if got := getEnvInt(key, tt.fallback); got != tt.want {
				t.Errorf("getEnvInt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		set      bool
		fallback time.Duration
		want     time.Duration
	}{
		{"parses duration", "90s", true, time.Hour, 90 * time.Second},
		{"parses hours", "5h", true, time.Minute, 5 * time.Hour},
		{"bad value keeps fallback", "soon", true, 3 * time.Hour, 3 * time.Hour},
		{"unset keeps fallback", "", false, 10 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "PULSEFM_TEST_DURATION"
			if tt.set {
				t.Setenv(key, tt.value)
			}
			if got := getEnvDuration(key, tt.fallback); got != tt.want {
				t.Errorf("getEnvDuration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  bool
	}{
		{"true", "true", true, true},
		{"numeric", "1", true, true},
		{"garbage keeps fallback", "yep", true, false},
		{"unset keeps fallback", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "PULSEFM_TEST_BOOL"
			if tt.set {
				t.Setenv(key, tt.value)
			}
			if got := getEnvBool(key, false); got != tt.want {
				t.Errorf("getEnvBool = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  []string
	}{
		{"splits and trims", "one, two ,three", true, []string{"one", "two", "three"}},
		{"drops empty items", "a,,b, ", true, []string{"a", "b"}},
		{"empty value", "", true, nil},
		{"unset", "", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "PULSEFM_TEST_LIST"
			if tt.set {
				t.Setenv(key, tt.value)
			}
			if got := getEnvList(key); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("getEnvList = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STATION_NAME", "Test FM")
	t.Setenv("STREAM_BITRATE", "192")
	t.Setenv("RESUBMIT_WINDOW", "2h")
	t.Setenv("SPOTIFY_PLAYLISTS", "abc123, def456")
	t.Setenv("DJ_SECRET_HASH", "$2a$10$fakehash")
	t.Setenv("AGENT_ENABLED", "true")

	cfg := Load()

	if cfg.StationName != "Test FM" {
		t.Errorf("StationName = %q", cfg.StationName)
	}
	if cfg.StreamBitrate != 192 {
		t.Errorf("StreamBitrate = %d", cfg.StreamBitrate)
	}
	if cfg.ResubmitWindow != 2*time.Hour {
		t.Errorf("ResubmitWindow = %v", cfg.ResubmitWindow)
	}
	if want := []string{"abc123", "def456"}; !reflect.DeepEqual(cfg.SpotifyPlaylists, want) {
		t.Errorf("SpotifyPlaylists = %v, want %v", cfg.SpotifyPlaylists, want)
	}
	if cfg.DJSecret != "$2a$10$fakehash" {
		t.Errorf("DJSecret = %q", cfg.DJSecret)
	}
	if !cfg.AgentEnabled {
		t.Error("AgentEnabled should be true")
	}
}
