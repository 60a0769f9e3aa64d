package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pulsefm/config"
	"pulsefm/model"
)

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantTitle  string
		wantArtist string
		wantErr    bool
	}{
		{
			name:       "plain line",
			content:    "Midnight City - M83",
			wantTitle:  "Midnight City",
			wantArtist: "M83",
		},
		{
			name:       "numeric title",
			content:    "1979 - The Smashing Pumpkins",
			wantTitle:  "1979",
			wantArtist: "The Smashing Pumpkins",
		},
		{
			name:       "bulleted line",
			content:    "- Weightless - Marconi Union",
			wantTitle:  "Weightless",
			wantArtist: "Marconi Union",
		},
		{
			name:       "numbered line with quotes",
			content:    `1. "Clair de Lune" - "Claude Debussy"`,
			wantTitle:  "Clair de Lune",
			wantArtist: "Claude Debussy",
		},
		{
			name:       "preamble before the pick",
			content:    "Here is my pick for the station:\nNightcall - Kavinsky",
			wantTitle:  "Nightcall",
			wantArtist: "Kavinsky",
		},
		{
			name:    "no separator",
			content: "I would play something by Boards of Canada next.",
			wantErr: true,
		},
		{
			name:    "empty reply",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSuggestion(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSuggestion(%q) = %+v, want error", tt.content, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSuggestion(%q) error: %v", tt.content, err)
			}
			if got.Title != tt.wantTitle || got.Artist != tt.wantArtist {
				t.Errorf("ParseSuggestion(%q) = %q / %q, want %q / %q",
					tt.content, got.Title, got.Artist, tt.wantTitle, tt.wantArtist)
			}
		})
	}
}

func TestSuggestTrack(t *testing.T) {
	var gotReq model.OpenAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Tieduprightnow - Parcels"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := NewDJAgent(&config.Config{
		AgentBaseURL: srv.URL,
		AgentAPIKey:  "test-key",
		AgentModel:   "test-model",
		StationName:  "Pulse FM",
	})

	recent := []*model.HistoryEntry{
		{Title: "Overcome", Artist: "Laurence Guy"},
		{Title: "Gamma", Artist: "COMPUTER DATA"},
	}
	got, err := a.SuggestTrack(context.Background(), recent)
	if err != nil {
		t.Fatalf("SuggestTrack: %v", err)
	}
	if got.Title != "Tieduprightnow" || got.Artist != "Parcels" {
		t.Errorf("suggestion = %+v, want Tieduprightnow / Parcels", got)
	}

	if gotReq.Model != "test-model" {
		t.Errorf("request model = %q, want test-model", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("request should not ask for a streaming response")
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(gotReq.Messages))
	}
	if !strings.Contains(gotReq.Messages[0].Content, "Pulse FM") {
		t.Error("system prompt should name the station")
	}
	userMsg := gotReq.Messages[1].Content
	for _, want := range []string{"Overcome - Laurence Guy", "Gamma - COMPUTER DATA"} {
		if !strings.Contains(userMsg, want) {
			t.Errorf("user message missing %q:\n%s", want, userMsg)
		}
	}
}

func TestSuggestTrackAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewDJAgent(&config.Config{AgentBaseURL: srv.URL, AgentAPIKey: "k", AgentModel: "m"})
	if _, err := a.SuggestTrack(context.Background(), nil); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestSuggestTrackUnparseableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "how about some jazz?"}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := NewDJAgent(&config.Config{AgentBaseURL: srv.URL, AgentAPIKey: "k", AgentModel: "m"})
	if _, err := a.SuggestTrack(context.Background(), nil); err == nil {
		t.Fatal("expected error on reply without a track line")
	}
}
