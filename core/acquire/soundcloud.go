package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"pulsefm/config"
	"pulsefm/core/audio"
	"pulsefm/logger"

	"github.com/go-resty/resty/v2"
)

const (
	scMatchThreshold = 80 // token-sort, stricter than the word-set providers
	scMinDurationSec = 60 // anything shorter is a preview clip
	scMaxDurationSec = 600

	// Finished files below this size are truncated previews the API
	// occasionally serves instead of the full progressive stream.
	scMinFileBytes = 1000 * 1024
)

// SoundCloudDownloader searches the public v2 API with a client id and
// pulls the progressive stream of the best match.
type SoundCloudDownloader struct {
	http     *resty.Client
	clientID string
	ffmpeg   *audio.FFmpeg
}

// NewSoundCloudDownloader builds the provider client. An empty client
// id leaves the provider constructed but permanently matchless.
func NewSoundCloudDownloader(cfg *config.Config, ffmpeg *audio.FFmpeg) *SoundCloudDownloader {
	client := resty.New().
		SetBaseURL(cfg.SoundCloudBaseURL).
		SetTimeout(cfg.ProviderHTTPTimeout)

	return &SoundCloudDownloader{http: client, clientID: cfg.SoundCloudClientID, ffmpeg: ffmpeg}
}

func (d *SoundCloudDownloader) Name() string { return SourceSoundCloud }

type scSearchResponse struct {
	Collection []scTrack `json:"collection"`
}

type scTrack struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	DurationMS int    `json:"duration"`
	Media      struct {
		Transcodings []scTranscoding `json:"transcodings"`
	} `json:"media"`
}

type scTranscoding struct {
	URL    string `json:"url"`
	Format struct {
		Protocol string `json:"protocol"`
	} `json:"format"`
}

type scStream struct {
	URL string `json:"url"`
}

// FindByName searches for the query and keeps the highest token-sort
// score at or above the strict threshold.
func (d *SoundCloudDownloader) FindByName(ctx context.Context, query string) (*FindResult, error) {
	if d.clientID == "" {
		return nil, nil
	}

	var search scSearchResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":         query,
			"client_id": d.clientID,
			"limit":     "10",
		}).
		SetResult(&search).
		Get("/search/tracks")
	if err != nil {
		return nil, fmt.Errorf("soundcloud search failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("soundcloud search returned %s", resp.Status())
	}

	var best *scTrack
	bestScore := 0
	for i := range search.Collection {
		track := &search.Collection[i]
		if Derivative(track.Title, query) {
			continue
		}
		if score := TokenSortRatio(query, track.Title); score > bestScore {
			bestScore = score
			best = track
		}
	}
	if best == nil || bestScore < scMatchThreshold {
		logger.Debug("soundcloud match below threshold",
			logger.String("query", query),
			logger.Int("best", bestScore))
		return nil, nil
	}

	duration := best.DurationMS / 1000
	if duration < scMinDurationSec || duration > scMaxDurationSec {
		logger.Debug("soundcloud hit outside duration window",
			logger.String("title", best.Title),
			logger.Int("durationSec", duration))
		return nil, nil
	}

	transcoding := progressiveTranscoding(best)
	if transcoding == "" {
		return nil, nil
	}

	return &FindResult{
		Title:       best.Title,
		URL:         transcoding,
		DurationSec: duration,
		Source:      SourceSoundCloud,
	}, nil
}

func progressiveTranscoding(track *scTrack) string {
	for _, t := range track.Media.Transcodings {
		if t.Format.Protocol == "progressive" {
			return t.URL
		}
	}
	return ""
}

// Download resolves the transcoding handle to its short-lived stream
// URL, fetches it and rejects preview-sized results.
func (d *SoundCloudDownloader) Download(ctx context.Context, res *FindResult, destPath string) error {
	var stream scStream
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParam("client_id", d.clientID).
		Get(res.URL)
	if err != nil {
		return fmt.Errorf("soundcloud stream resolve failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("soundcloud stream resolve returned %s", resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), &stream); err != nil || stream.URL == "" {
		return fmt.Errorf("soundcloud stream response unreadable: %v", err)
	}

	if err := d.ffmpeg.Fetch(ctx, stream.URL, destPath, "192k"); err != nil {
		return err
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return fmt.Errorf("downloaded file missing: %w", err)
	}
	if info.Size() < scMinFileBytes {
		os.Remove(destPath)
		return fmt.Errorf("downloaded file too small (%d KB), rejected as preview", info.Size()/1024)
	}
	return nil
}
