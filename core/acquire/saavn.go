package acquire

import (
	"context"
	"crypto/des"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"pulsefm/config"
	"pulsefm/core/audio"
	"pulsefm/logger"

	"github.com/go-resty/resty/v2"
)

const (
	saavnMatchThreshold = 60
	saavnMaxDurationSec = 600

	// Media URLs come base64-wrapped in single-DES ECB with this static
	// key; the decrypted URL names the 96kbps variant.
	saavnMediaKey = "38346591"
)

// SaavnDownloader searches the Saavn public autocomplete API and pulls
// tracks from its media CDN.
type SaavnDownloader struct {
	http   *resty.Client
	ffmpeg *audio.FFmpeg
}

// NewSaavnDownloader builds the provider client.
func NewSaavnDownloader(cfg *config.Config, ffmpeg *audio.FFmpeg) *SaavnDownloader {
	client := resty.New().
		SetBaseURL(cfg.SaavnBaseURL).
		SetTimeout(cfg.ProviderHTTPTimeout).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	return &SaavnDownloader{http: client, ffmpeg: ffmpeg}
}

func (d *SaavnDownloader) Name() string { return SourceSaavn }

type saavnSearchResponse struct {
	Songs struct {
		Data []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	} `json:"songs"`
}

type saavnSongDetail struct {
	Title             string `json:"title"`
	Duration          string `json:"duration"`
	EncryptedMediaURL string `json:"encrypted_media_url"`
}

// FindByName searches the autocomplete endpoint and keeps the best
// word-set match above the acceptance threshold.
func (d *SaavnDownloader) FindByName(ctx context.Context, query string) (*FindResult, error) {
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"__call":  "autocomplete.get",
			"query":   query,
			"ctx":     "web6dot0",
			"_format": "json",
			"_marker": "0",
		}).
		Get("/api.php")
	if err != nil {
		return nil, fmt.Errorf("saavn search failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("saavn search returned %s", resp.Status())
	}

	// The endpoint serves JSON under a text content type, so decode by
	// hand instead of relying on resty's unmarshalling.
	var search saavnSearchResponse
	if err := json.Unmarshal(resp.Body(), &search); err != nil {
		return nil, fmt.Errorf("saavn search response unreadable: %w", err)
	}

	bestID, bestScore := "", 0
	for _, song := range search.Songs.Data {
		if Derivative(song.Title, query) {
			continue
		}
		if score := JaccardWords(query, song.Title); score > bestScore && score > saavnMatchThreshold {
			bestScore = score
			bestID = song.ID
		}
	}
	if bestID == "" {
		return nil, nil
	}

	detail, err := d.songDetails(ctx, bestID)
	if err != nil {
		return nil, err
	}
	if detail == nil || detail.EncryptedMediaURL == "" {
		return nil, nil
	}

	duration, _ := strconv.Atoi(detail.Duration)
	if duration > saavnMaxDurationSec {
		logger.Debug("saavn hit too long",
			logger.String("title", detail.Title),
			logger.Int("durationSec", duration))
		return nil, nil
	}

	mediaURL, err := decryptMediaURL(detail.EncryptedMediaURL)
	if err != nil {
		return nil, fmt.Errorf("saavn media url decrypt failed: %w", err)
	}

	return &FindResult{
		Title:       detail.Title,
		URL:         mediaURL,
		DurationSec: duration,
		Source:      SourceSaavn,
	}, nil
}

func (d *SaavnDownloader) songDetails(ctx context.Context, id string) (*saavnSongDetail, error) {
	resp, err := d.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"__call":  "song.getDetails",
			"cc":      "in",
			"pids":    id,
			"_format": "json",
			"_marker": "0",
		}).
		Get("/api.php")
	if err != nil {
		return nil, fmt.Errorf("saavn details failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("saavn details returned %s", resp.Status())
	}

	var details map[string]saavnSongDetail
	if err := json.Unmarshal(resp.Body(), &details); err != nil {
		return nil, fmt.Errorf("saavn details response unreadable: %w", err)
	}

	detail, ok := details[id]
	if !ok {
		return nil, nil
	}
	return &detail, nil
}

// Download fetches the decrypted media URL and transcodes it to MP3.
func (d *SaavnDownloader) Download(ctx context.Context, res *FindResult, destPath string) error {
	return d.ffmpeg.Fetch(ctx, res.URL, destPath, "192k")
}

// decryptMediaURL unwraps the encrypted CDN URL and upgrades the
// quality suffix to the 320kbps variant.
func decryptMediaURL(encrypted string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("bad base64: %w", err)
	}

	block, err := des.NewCipher([]byte(saavnMediaKey))
	if err != nil {
		return "", err
	}
	if len(data) == 0 || len(data)%block.BlockSize() != 0 {
		return "", fmt.Errorf("ciphertext length %d not a block multiple", len(data))
	}

	plain := make([]byte, len(data))
	for i := 0; i < len(data); i += block.BlockSize() {
		block.Decrypt(plain[i:], data[i:])
	}

	// PKCS#5 padding.
	pad := int(plain[len(plain)-1])
	if pad < 1 || pad > block.BlockSize() || pad > len(plain) {
		return "", fmt.Errorf("bad padding byte %d", pad)
	}
	plain = plain[:len(plain)-pad]

	return strings.Replace(string(plain), "_96.mp4", "_320.mp4", 1), nil
}
