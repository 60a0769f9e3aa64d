package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values come from the
// environment (optionally seeded by a .env file) with working defaults
// for local development.
type Config struct {
	// Station identity
	StationName        string
	StationDescription string
	StationGenre       string
	StationURL         string

	// Relay (Icecast) connection
	IcecastHost     string
	IcecastPort     string
	IcecastMount    string
	SourcePassword  string
	AdminUser       string
	AdminPassword   string
	StreamBitrate   int           // kbps pushed to the relay
	StreamChunkSize int           // bytes per write to the relay socket
	ReconnectDelay  time.Duration // wait between reconnect attempts
	HandshakeDelay  time.Duration // wait between failed handshakes

	// Audio pipeline
	FFmpegPath   string
	YtDlpPath    string
	AudioDir     string // cache of acquired tracks
	ScratchDir   string // transient downloads and crossfade work
	SpoolPath    string // FIFO handoff between downloader and stream loop
	SilenceFile  string // played when nothing else is available
	PromoDir     string // promotional audio
	CrossfadeSec int    // total overlap window, 0 disables blending

	// Catalog (Spotify)
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyPlaylists    []string // playlist IDs walked by the selector

	// Providers
	SaavnBaseURL        string
	SoundCloudBaseURL   string
	SoundCloudClientID  string
	ProviderHTTPTimeout time.Duration

	// Selection policy
	ResubmitWindow  time.Duration // reject listener resubmission inside this window
	ReselectWindow  time.Duration // reject algorithmic re-selection inside this window
	MaxAISelections int           // consecutive agent picks before a playlist walk

	// DJ agent (optional)
	AgentEnabled bool
	AgentBaseURL string
	AgentAPIKey  string
	AgentModel   string

	// Background cadence
	ListenerPollInterval time.Duration
	PromoInterval        int // tracks between promo breaks
	PromoCleanupInterval time.Duration
	MemoryTrimInterval   time.Duration
	DownloadTaskDelay    time.Duration // settle time before the downloader runs

	// HTTP surface
	ListenAddr string
	JWTSecret  string
	DJSecret   string // bcrypt hash of the DJ/moderator passphrase

	// MySQL
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO (optional cold tier of the audio cache)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Logging
	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as a duration ("3h", "10s")
// or returns a default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated environment variable.
func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(value); i++ {
		if i == len(value) || value[i] == ',' {
			item := value[start:i]
			for len(item) > 0 && item[0] == ' ' {
				item = item[1:]
			}
			for len(item) > 0 && item[len(item)-1] == ' ' {
				item = item[:len(item)-1]
			}
			if item != "" {
				out = append(out, item)
			}
			start = i + 1
		}
	}
	return out
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override variables already set in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	dataBase := getEnv("DATA_DIR", "data")

	return &Config{
		StationName:        getEnv("STATION_NAME", "Pulse FM"),
		StationDescription: getEnv("STATION_DESCRIPTION", "Nonstop community radio"),
		StationGenre:       getEnv("STATION_GENRE", "Various"),
		StationURL:         getEnv("STATION_URL", "https://pulsefm.live"),

		IcecastHost:     getEnv("ICECAST_HOST", "127.0.0.1"),
		IcecastPort:     getEnv("ICECAST_PORT", "8000"),
		IcecastMount:    getEnv("ICECAST_MOUNT", "/stream"),
		SourcePassword:  os.Getenv("ICECAST_SOURCE_PASSWORD"),
		AdminUser:       getEnv("ICECAST_ADMIN_USER", "admin"),
		AdminPassword:   os.Getenv("ICECAST_ADMIN_PASSWORD"),
		StreamBitrate:   getEnvInt("STREAM_BITRATE", 128),
		StreamChunkSize: getEnvInt("STREAM_CHUNK_SIZE", 4096),
		ReconnectDelay:  getEnvDuration("RECONNECT_DELAY", 3*time.Second),
		HandshakeDelay:  getEnvDuration("HANDSHAKE_DELAY", 5*time.Second),

		FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
		YtDlpPath:    getEnv("YTDLP_PATH", "yt-dlp"),
		AudioDir:     getEnv("AUDIO_DIR", filepath.Join(dataBase, "audio")),
		ScratchDir:   getEnv("SCRATCH_DIR", filepath.Join(dataBase, "scratch")),
		SpoolPath:    getEnv("SPOOL_PATH", filepath.Join(dataBase, "spool.txt")),
		SilenceFile:  getEnv("SILENCE_FILE", filepath.Join(dataBase, "silence.mp3")),
		PromoDir:     getEnv("PROMO_DIR", filepath.Join(dataBase, "promos")),
		CrossfadeSec: getEnvInt("CROSSFADE_SECONDS", 20),

		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyPlaylists:    getEnvList("SPOTIFY_PLAYLISTS"),

		SaavnBaseURL:        getEnv("SAAVN_BASE_URL", "https://www.jiosaavn.com"),
		SoundCloudBaseURL:   getEnv("SOUNDCLOUD_BASE_URL", "https://api-v2.soundcloud.com"),
		SoundCloudClientID:  os.Getenv("SOUNDCLOUD_CLIENT_ID"),
		ProviderHTTPTimeout: getEnvDuration("PROVIDER_HTTP_TIMEOUT", 15*time.Second),

		ResubmitWindow:  getEnvDuration("RESUBMIT_WINDOW", 3*time.Hour),
		ReselectWindow:  getEnvDuration("RESELECT_WINDOW", 5*time.Hour),
		MaxAISelections: getEnvInt("MAX_AI_SELECTIONS", 2),

		AgentEnabled: getEnvBool("AGENT_ENABLED", false),
		AgentBaseURL: getEnv("AGENT_BASE_URL", "https://api.openai.com/v1"),
		AgentAPIKey:  os.Getenv("AGENT_API_KEY"),
		AgentModel:   getEnv("AGENT_MODEL", "gpt-4o-mini"),

		ListenerPollInterval: getEnvDuration("LISTENER_POLL_INTERVAL", 10*time.Second),
		PromoInterval:        getEnvInt("PROMO_INTERVAL", 23),
		PromoCleanupInterval: getEnvDuration("PROMO_CLEANUP_INTERVAL", time.Hour),
		MemoryTrimInterval:   getEnvDuration("MEMORY_TRIM_INTERVAL", 5*time.Minute),
		DownloadTaskDelay:    getEnvDuration("DOWNLOAD_TASK_DELAY", 5*time.Second),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		JWTSecret:  getEnv("JWT_SECRET", "change-me"),
		DJSecret:   os.Getenv("DJ_SECRET_HASH"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "pulsefm"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "pulsefm-audio"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", filepath.Join("logs", "pulsefm.log")),
	}
}
