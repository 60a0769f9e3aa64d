package acquire

import "context"

// Source tags stamped on acquisition results.
const (
	SourceCache         = "cache"
	SourceSaavn         = "saavn"
	SourceSoundCloud    = "soundcloud"
	SourceYouTube       = "youtube"
	SourceCacheFallback = "cache_fallback"
)

// FindResult is one provider hit, found but not yet downloaded.
type FindResult struct {
	Title       string
	URL         string
	DurationSec int
	Source      string
}

// SourceDownloader is a single provider in the acquisition chain. A nil
// FindResult with a nil error means the provider answered but had no
// acceptable match; the chain moves on without logging a failure.
type SourceDownloader interface {
	Name() string
	FindByName(ctx context.Context, query string) (*FindResult, error)
	Download(ctx context.Context, res *FindResult, destPath string) error
}
