package catalog

import (
	"context"
	"fmt"
	"strings"

	"pulsefm/config"
	"pulsefm/model"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

const pageSize = 100

// Client wraps the catalog API behind the two lookups the station
// needs. Unattended service, so the client-credentials grant is used;
// the oauth2 transport refreshes the token on its own.
type Client struct {
	api         *spotify.Client
	playlistIDs []string
}

// NewClient authenticates against the catalog with the configured
// application credentials.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" {
		return nil, fmt.Errorf("catalog credentials not configured")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := creds.Token(ctx); err != nil {
		return nil, fmt.Errorf("catalog auth failed: %w", err)
	}

	return &Client{
		api:         spotify.New(creds.Client(ctx)),
		playlistIDs: cfg.SpotifyPlaylists,
	}, nil
}

func (c *Client) trackByID(ctx context.Context, id string) (*model.TrackMetadata, error) {
	track, err := c.api.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return nil, err
	}
	return convertTrack(track), nil
}

func (c *Client) searchTrack(ctx context.Context, query string) (*model.TrackMetadata, error) {
	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return nil, err
	}
	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, ErrNotFound
	}
	return convertTrack(&result.Tracks.Tracks[0]), nil
}

// ListTrackIDs walks every configured playlist and returns the union of
// track IDs, in playlist order.
func (c *Client) ListTrackIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for _, pid := range c.playlistIDs {
		offset := 0
		for {
			page, err := c.api.GetPlaylistItems(ctx, spotify.ID(pid),
				spotify.Limit(pageSize), spotify.Offset(offset))
			if err != nil {
				return nil, fmt.Errorf("failed to read playlist %s: %w", pid, err)
			}

			for _, item := range page.Items {
				// Episodes and local files carry no track record.
				if item.Track.Track == nil || item.Track.Track.ID == "" {
					continue
				}
				ids = append(ids, string(item.Track.Track.ID))
			}

			if len(page.Items) < pageSize {
				break
			}
			offset += pageSize
		}
	}
	return ids, nil
}

func convertTrack(t *spotify.FullTrack) *model.TrackMetadata {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}

	artwork := ""
	if len(t.Album.Images) > 0 {
		artwork = t.Album.Images[0].URL
	}

	return model.TrackFromCatalog(
		string(t.ID),
		t.Name,
		strings.Join(names, ", "),
		t.Album.Name,
		int(t.TimeDuration().Seconds()),
		artwork,
		t.ExternalURLs["spotify"],
		t.Album.ReleaseDate,
	)
}
