package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pulsefm/config"
	"pulsefm/core/audio"
	"pulsefm/core/library"
	"pulsefm/logger"
	"pulsefm/model"
)

// Acquirer runs the ordered fallback chain that turns a track request
// into a playable file: cache, then each provider in turn, then the
// video platform, then a random cached substitute. One provider
// failing never aborts the chain.
type Acquirer struct {
	cache      *library.SourceCache
	ffmpeg     *audio.FFmpeg
	chain      []SourceDownloader
	ytdlp      *YtDlpDownloader
	scratchDir string
}

// NewAcquirer wires the default provider chain.
func NewAcquirer(cfg *config.Config, cache *library.SourceCache, ffmpeg *audio.FFmpeg) *Acquirer {
	return &Acquirer{
		cache:  cache,
		ffmpeg: ffmpeg,
		chain: []SourceDownloader{
			NewSaavnDownloader(cfg, ffmpeg),
			NewSoundCloudDownloader(cfg, ffmpeg),
		},
		ytdlp:      NewYtDlpDownloader(cfg.YtDlpPath),
		scratchDir: cfg.ScratchDir,
	}
}

// Acquire resolves a request to a cached file path. expectedDuration is
// advisory, used only when the finished file cannot be probed. A
// non-empty directURL replaces the search query at the video-platform
// step; the earlier steps still run first.
func (a *Acquirer) Acquire(ctx context.Context, title, artist string, expectedDuration int, directURL string) (*model.DownloadResult, error) {
	key := (&model.TrackMetadata{Title: title, Artist: artist}).CacheKey()
	query := title
	if artist != "" {
		query = title + " " + artist
	}

	logger.Info("acquisition started", logger.String("query", query), logger.Bool("directURL", directURL != ""))

	if path, ok := a.cache.Get(ctx, key); ok {
		logger.Info("acquisition served from cache", logger.String("query", query))
		return &model.DownloadResult{
			Path:        path,
			Source:      SourceCache,
			DurationSec: a.probe(ctx, path, expectedDuration),
		}, nil
	}

	for _, d := range a.chain {
		res, err := d.FindByName(ctx, query)
		if err != nil {
			logger.Warn("provider search failed",
				logger.String("provider", d.Name()),
				logger.ErrorField(err))
			continue
		}
		if res == nil {
			logger.Info("provider had no acceptable match",
				logger.String("provider", d.Name()),
				logger.String("query", query))
			continue
		}

		path, err := a.fetchAndCache(ctx, d, res, key)
		if err != nil {
			logger.Warn("provider download failed",
				logger.String("provider", d.Name()),
				logger.String("title", res.Title),
				logger.ErrorField(err))
			continue
		}

		duration := res.DurationSec
		if duration == 0 {
			duration = a.probe(ctx, path, expectedDuration)
		}
		logger.Info("acquisition complete",
			logger.String("provider", d.Name()),
			logger.String("title", res.Title))
		return &model.DownloadResult{Path: path, Source: d.Name(), DurationSec: duration}, nil
	}

	var res *FindResult
	if directURL != "" {
		res = a.ytdlp.DirectURL(directURL)
	} else {
		res, _ = a.ytdlp.FindByName(ctx, query)
	}

	path, ytErr := a.fetchAndCache(ctx, a.ytdlp, res, key)
	if ytErr == nil {
		logger.Info("acquisition complete", logger.String("provider", SourceYouTube), logger.String("query", query))
		return &model.DownloadResult{
			Path:        path,
			Source:      SourceYouTube,
			DurationSec: a.probe(ctx, path, expectedDuration),
		}, nil
	}
	logger.Error("video platform download failed", logger.String("query", query), logger.ErrorField(ytErr))

	if path, ok := a.cache.RandomEntry(); ok {
		logger.Warn("every source failed, substituting random cached track",
			logger.String("query", query),
			logger.String("substitute", filepath.Base(path)))
		return &model.DownloadResult{
			Path:        path,
			Source:      SourceCacheFallback,
			DurationSec: a.probe(ctx, path, 0),
		}, nil
	}

	return nil, fmt.Errorf("every source failed for %q: %w", query, ytErr)
}

// fetchAndCache downloads into the scratch dir and promotes the result
// into the cache, which also removes the scratch copy.
func (a *Acquirer) fetchAndCache(ctx context.Context, d SourceDownloader, res *FindResult, key string) (string, error) {
	if err := os.MkdirAll(a.scratchDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	scratch := filepath.Join(a.scratchDir, library.FileName(key))

	if err := d.Download(ctx, res, scratch); err != nil {
		os.Remove(scratch)
		return "", err
	}
	return a.cache.Put(ctx, scratch, key)
}

func (a *Acquirer) probe(ctx context.Context, path string, fallback int) int {
	duration, err := a.ffmpeg.Duration(ctx, path)
	if err != nil {
		logger.Debug("duration probe failed", logger.String("path", path), logger.ErrorField(err))
		return fallback
	}
	return int(duration)
}
