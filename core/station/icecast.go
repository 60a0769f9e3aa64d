package station

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pulsefm/config"
	"pulsefm/core/audio"
	"pulsefm/logger"

	"github.com/go-resty/resty/v2"
)

const (
	dialTimeout      = 10 * time.Second
	writeTimeout     = 10 * time.Second
	statusAPITimeout = 5 * time.Second
)

// IcecastClient owns the persistent source connection to the relay. One
// goroutine (the stream loop) drives Connect and the Stream* methods;
// the skip flag may be set from anywhere.
type IcecastClient struct {
	addr           string
	mount          string
	sourceAuth     string
	stationName    string
	description    string
	genre          string
	stationURL     string
	bitrate        int
	chunkSize      int
	handshakeDelay time.Duration

	ffmpeg *audio.FFmpeg
	admin  *resty.Client
	skip   *atomic.Bool

	mu        sync.Mutex
	conn      net.Conn
	connected atomic.Bool
}

// NewIcecastClient builds the relay client. skip is the shared flag set
// by user skip/block actions and consulted at chunk granularity.
func NewIcecastClient(cfg *config.Config, ffmpeg *audio.FFmpeg, skip *atomic.Bool) *IcecastClient {
	auth := base64.StdEncoding.EncodeToString([]byte("source:" + cfg.SourcePassword))
	addr := net.JoinHostPort(cfg.IcecastHost, cfg.IcecastPort)
	return &IcecastClient{
		addr:           addr,
		mount:          cfg.IcecastMount,
		sourceAuth:     auth,
		stationName:    cfg.StationName,
		description:    cfg.StationDescription,
		genre:          cfg.StationGenre,
		stationURL:     cfg.StationURL,
		bitrate:        cfg.StreamBitrate,
		chunkSize:      cfg.StreamChunkSize,
		handshakeDelay: cfg.HandshakeDelay,
		ffmpeg:         ffmpeg,
		admin: resty.New().
			SetBaseURL("http://" + addr).
			SetTimeout(statusAPITimeout).
			SetBasicAuth(cfg.AdminUser, cfg.AdminPassword),
		skip: skip,
	}
}

// Connect dials the relay and performs the source handshake, retrying
// indefinitely until it succeeds or ctx is cancelled. The station must
// eventually come back online, so there is no attempt limit.
func (c *IcecastClient) Connect(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.handshake(ctx)
		if err == nil {
			logger.Info("connected to relay",
				logger.String("addr", c.addr), logger.String("mount", c.mount))
			return nil
		}
		logger.Warn("relay handshake failed",
			logger.String("addr", c.addr), logger.ErrorField(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.handshakeDelay):
		}
	}
}

func (c *IcecastClient) handshake(ctx context.Context) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}

	var req bytes.Buffer
	fmt.Fprintf(&req, "PUT %s HTTP/1.0\r\n", c.mount)
	fmt.Fprintf(&req, "Host: %s\r\n", c.addr)
	fmt.Fprintf(&req, "Authorization: Basic %s\r\n", c.sourceAuth)
	fmt.Fprintf(&req, "User-Agent: pulsefm-source/1.0\r\n")
	fmt.Fprintf(&req, "Content-Type: audio/mpeg\r\n")
	fmt.Fprintf(&req, "ice-name: %s\r\n", c.stationName)
	fmt.Fprintf(&req, "ice-description: %s\r\n", c.description)
	fmt.Fprintf(&req, "ice-genre: %s\r\n", c.genre)
	fmt.Fprintf(&req, "ice-url: %s\r\n", c.stationURL)
	fmt.Fprintf(&req, "ice-public: 1\r\n")
	fmt.Fprintf(&req, "ice-audio-info: bitrate=%d\r\n", c.bitrate)
	req.WriteString("\r\n")

	conn.SetDeadline(time.Now().Add(dialTimeout))
	if _, err := conn.Write(req.Bytes()); err != nil {
		conn.Close()
		return fmt.Errorf("handshake write: %w", err)
	}

	status, err := readLine(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake response: %w", err)
	}
	parts := strings.SplitN(status, " ", 3)
	if len(parts) < 2 || parts[1] != "200" {
		conn.Close()
		return fmt.Errorf("relay refused source: %q", status)
	}
	conn.SetDeadline(time.Time{})

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	return nil
}

// readLine collects bytes up to the first LF without over-reading the
// socket.
func readLine(conn net.Conn) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for len(line) < 1024 {
		if _, err := conn.Read(buf); err != nil {
			return "", err
		}
		if buf[0] == '\n' {
			break
		}
		line = append(line, buf[0])
	}
	return strings.TrimRight(string(line), "\r"), nil
}

// Connected reports whether the source connection is believed healthy.
func (c *IcecastClient) Connected() bool {
	return c.connected.Load()
}

// Disconnect drops the source connection.
func (c *IcecastClient) Disconnect() {
	c.connected.Store(false)
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

// StreamFile transcodes one file to MP3 in realtime and pushes it to
// the relay. It returns false only when the connection broke and the
// caller must reconnect; skips and local errors count as finished.
func (c *IcecastClient) StreamFile(ctx context.Context, path string) bool {
	return c.stream(ctx, path, true)
}

// StreamPromo streams promotional audio; promos cannot be skipped.
func (c *IcecastClient) StreamPromo(ctx context.Context, path string) bool {
	return c.stream(ctx, path, false)
}

func (c *IcecastClient) stream(ctx context.Context, path string, skippable bool) bool {
	if _, err := os.Stat(path); err != nil {
		logger.Warn("stream file missing, skipping", logger.String("path", path))
		return true
	}

	cmd := c.ffmpeg.StreamCommand(ctx, path, c.bitrate)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		logger.Error("failed to open transcoder pipe", logger.ErrorField(err))
		return true
	}
	if err := cmd.Start(); err != nil {
		logger.Error("failed to start transcoder", logger.ErrorField(err))
		return true
	}

	logger.Info("streaming file",
		logger.String("file", filepath.Base(path)), logger.Bool("skippable", skippable))

	chunk := make([]byte, c.chunkSize)
	for {
		n, readErr := stdout.Read(chunk)
		if n > 0 {
			if skippable && c.skip.CompareAndSwap(true, false) {
				logger.Info("skip requested, cutting stream",
					logger.String("file", filepath.Base(path)))
				cmd.Process.Kill()
				cmd.Wait()
				return true
			}

			if !c.writeChunk(chunk[:n]) {
				cmd.Process.Kill()
				cmd.Wait()
				c.Disconnect()
				return false
			}
		}
		if readErr != nil {
			break
		}
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		logger.Warn("transcoder exited with error",
			logger.String("file", filepath.Base(path)),
			logger.String("stderr", tail(stderr.String(), 400)),
			logger.ErrorField(err))
	}
	return true
}

func (c *IcecastClient) writeChunk(p []byte) bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return false
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(p); err != nil {
		logger.Error("relay write failed", logger.ErrorField(err))
		return false
	}
	return true
}

// UpdateMetadata pushes the current song title to the relay's admin
// endpoint. Best-effort; failures are logged only.
func (c *IcecastClient) UpdateMetadata(song string) {
	resp, err := c.admin.R().
		SetQueryParams(map[string]string{
			"mount": c.mount,
			"mode":  "updinfo",
			"song":  song,
		}).
		Get("/admin/metadata")
	if err != nil {
		logger.Warn("relay metadata update failed", logger.ErrorField(err))
		return
	}
	if resp.StatusCode() != 200 {
		logger.Warn("relay metadata update rejected",
			logger.Int("status", resp.StatusCode()),
			logger.String("body", tail(resp.String(), 200)))
	}
}

type icecastSource struct {
	ListenURL string `json:"listenurl"`
	Listeners int    `json:"listeners"`
}

// FetchListeners reads the relay's public status document and returns
// the listener count for our mount, 0 when the mount is not listed.
func (c *IcecastClient) FetchListeners(ctx context.Context) (int, error) {
	resp, err := c.admin.R().SetContext(ctx).Get("/status-json.xsl")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("relay status fetch failed: HTTP %d", resp.StatusCode())
	}

	var doc struct {
		IceStats struct {
			Source json.RawMessage `json:"source"`
		} `json:"icestats"`
	}
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return 0, fmt.Errorf("relay status parse: %w", err)
	}
	if len(doc.IceStats.Source) == 0 {
		return 0, nil
	}

	// A single mount is an object, several mounts are an array.
	var sources []icecastSource
	if err := json.Unmarshal(doc.IceStats.Source, &sources); err != nil {
		var single icecastSource
		if err := json.Unmarshal(doc.IceStats.Source, &single); err != nil {
			return 0, fmt.Errorf("relay status parse: %w", err)
		}
		sources = []icecastSource{single}
	}

	for _, src := range sources {
		if strings.HasSuffix(src.ListenURL, c.mount) {
			return src.Listeners, nil
		}
	}
	return 0, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
