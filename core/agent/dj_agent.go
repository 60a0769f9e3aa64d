package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"pulsefm/config"
	"pulsefm/logger"
	"pulsefm/model"
)

// System prompt for the DJ agent. The reply contract is strict because
// the line is parsed mechanically, not read by a human.
const djSystemPrompt = `You are the music director of %s, an unattended internet radio station.
Given the tracks that played recently, pick the single next track to play.

Rules:
- Answer with EXACTLY one line in the form: Title - Artist
- No numbering, no quotes, no commentary, no extra lines.
- Never repeat a track from the recent list.
- Stay close to the mood of the recent tracks but avoid playing the same artist twice in a row.`

const (
	agentMaxTokens   = 64
	agentTemperature = 0.8
	agentTimeout     = 30 * time.Second
)

// suggestionPattern matches a "Title - Artist" line, tolerating list
// bullets and surrounding quotes the model sometimes adds anyway.
var suggestionPattern = regexp.MustCompile(`(?m)^\s*(?:[-*\d.)]+\s+)?"?([^"]+?)"?\s+-\s+"?([^"]+?)"?\s*$`)

// Suggestion is one track pick returned by the DJ agent.
type Suggestion struct {
	Title  string
	Artist string
}

// DJAgent asks an OpenAI-compatible chat API for the next track to play.
type DJAgent struct {
	baseURL     string
	apiKey      string
	model       string
	stationName string
	httpClient  *http.Client
}

// NewDJAgent creates a DJ agent from the station configuration.
func NewDJAgent(cfg *config.Config) *DJAgent {
	return &DJAgent{
		baseURL:     strings.TrimRight(cfg.AgentBaseURL, "/"),
		apiKey:      cfg.AgentAPIKey,
		model:       cfg.AgentModel,
		stationName: cfg.StationName,
		httpClient:  &http.Client{Timeout: agentTimeout},
	}
}

// SuggestTrack asks the model for one track that fits the recent rotation.
func (a *DJAgent) SuggestTrack(ctx context.Context, recent []*model.HistoryEntry) (*Suggestion, error) {
	reqBody := model.OpenAIChatRequest{
		Model:       a.model,
		Messages:    a.buildMessages(recent),
		MaxTokens:   agentMaxTokens,
		Temperature: agentTemperature,
		Stream:      false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("agent API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp model.OpenAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	content := chatResp.Choices[0].Message.Content
	suggestion, err := ParseSuggestion(content)
	if err != nil {
		return nil, err
	}

	logger.Debug("DJ agent suggested track",
		logger.String("title", suggestion.Title),
		logger.String("artist", suggestion.Artist),
		logger.String("rawReply", content))
	return suggestion, nil
}

// buildMessages constructs the message array for the API call.
func (a *DJAgent) buildMessages(recent []*model.HistoryEntry) []model.OpenAIChatMessage {
	var sb strings.Builder
	if len(recent) == 0 {
		sb.WriteString("Nothing has played yet. Pick an opener.")
	} else {
		sb.WriteString("Recently played, newest first:\n")
		for _, entry := range recent {
			fmt.Fprintf(&sb, "- %s - %s\n", entry.Title, entry.Artist)
		}
		sb.WriteString("Pick the next track.")
	}

	return []model.OpenAIChatMessage{
		{Role: "system", Content: fmt.Sprintf(djSystemPrompt, a.stationName)},
		{Role: "user", Content: sb.String()},
	}
}

// ParseSuggestion extracts the first "Title - Artist" line from a model
// reply. Replies with no such line are an error so the caller can fall
// back to the playlist rotation.
func ParseSuggestion(content string) (*Suggestion, error) {
	matches := suggestionPattern.FindStringSubmatch(content)
	if len(matches) < 3 {
		return nil, fmt.Errorf("agent reply has no title - artist line: %q", content)
	}

	title := strings.TrimSpace(matches[1])
	artist := strings.TrimSpace(matches[2])
	if title == "" || artist == "" {
		return nil, fmt.Errorf("agent reply has empty title or artist: %q", content)
	}
	return &Suggestion{Title: title, Artist: artist}, nil
}
