// Package config provides configuration loading and management for the feed sync agent.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// godotenv.Load does not override variables that are already set, so the
// process environment always wins over the files.
func init() {
	// Load .env file if it exists (shared development config)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Load .env.local if it exists (local overrides, gitignored)
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the feed sync agent.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	Port        string // Local control API port
	BackendURL  string // REST backend base URL (the /api prefix is added by the client)
	Token       string // Bearer credential for the session, empty for anonymous use
	UserID      string // Fallback user id when the token carries no subject
	DatabaseDSN string // PostgreSQL DSN for notification snapshots, empty for in-memory

	// Push channel
	NATSURL          string        // NATS server URL, empty disables the push channel
	PushSubject      string        // Subject prefix for per-user event and command subjects
	ReconnectInitial time.Duration // First reconnect delay
	ReconnectMax     time.Duration // Reconnect delay cap

	// Object storage for media source resolution
	S3Endpoint     string        // S3-compatible storage endpoint
	S3Region       string        // S3 region
	S3AccessKey    string        // S3 access key
	S3SecretKey    string        // S3 secret key
	PublicMediaURL string        // Base URL of public buckets, used when S3 is not configured
	PresignTTL     time.Duration // Lifetime of presigned media URLs

	// Feed behavior
	MediaType       string        // all, video, music
	PageSize        int           // Items per feed page
	ScrollThreshold float64       // Distance from the bottom that triggers the next page
	SuggestionDelay time.Duration // Debounce for suggestion lookups
	FilterDelay     time.Duration // Debounce for committing the search filter
	SuggestionLimit int           // Maximum suggestions requested
	RequestRate     float64       // Backend requests per second, 0 means unlimited
	RequestTimeout  time.Duration // Per-request timeout
	Workers         int           // Network worker pool size
}

// Default configuration values used when environment variables are not set
const (
	defaultPort            = "8090"
	defaultEnv             = "dev"
	defaultBackendURL      = "http://localhost:5000"
	defaultPushSubject     = "feedsync.notifications"
	defaultS3Region        = "us-east-1"
	defaultMediaType       = "all"
	defaultPageSize        = 10
	defaultScrollThreshold = 100
	defaultSuggestionLimit = 8
	defaultWorkers         = 8
)

// Load reads environment variables and produces a Config suitable for wiring the agent.
// Returns an error if a value is present but invalid.
func Load() (Config, error) {
	cfg := Config{
		Env:             getEnv("FEEDSYNC_ENV", defaultEnv),
		Port:            getEnv("FEEDSYNC_PORT", defaultPort),
		BackendURL:      getEnv("FEEDSYNC_BACKEND_URL", defaultBackendURL),
		PushSubject:     getEnv("FEEDSYNC_PUSH_SUBJECT", defaultPushSubject),
		S3Region:        getEnv("FEEDSYNC_S3_REGION", defaultS3Region),
		MediaType:       getEnv("FEEDSYNC_MEDIA_TYPE", defaultMediaType),
		PageSize:        defaultPageSize,
		ScrollThreshold: defaultScrollThreshold,
		SuggestionLimit: defaultSuggestionLimit,
		Workers:         defaultWorkers,
	}

	// Handle optional variables
	if token, exists := os.LookupEnv("FEEDSYNC_TOKEN"); exists {
		cfg.Token = strings.TrimSpace(token)
	}

	if userID, exists := os.LookupEnv("FEEDSYNC_USER_ID"); exists {
		cfg.UserID = userID
	}

	if dsn, exists := os.LookupEnv("FEEDSYNC_DB_DSN"); exists {
		cfg.DatabaseDSN = dsn
	}

	if natsURL, exists := os.LookupEnv("FEEDSYNC_NATS_URL"); exists {
		cfg.NATSURL = natsURL
	}

	if s3Endpoint, exists := os.LookupEnv("FEEDSYNC_S3_ENDPOINT"); exists {
		cfg.S3Endpoint = s3Endpoint
	}

	if s3AccessKey, exists := os.LookupEnv("FEEDSYNC_S3_ACCESS_KEY"); exists {
		cfg.S3AccessKey = s3AccessKey
	}

	if s3SecretKey, exists := os.LookupEnv("FEEDSYNC_S3_SECRET_KEY"); exists {
		cfg.S3SecretKey = s3SecretKey
	}

	if publicURL, exists := os.LookupEnv("FEEDSYNC_PUBLIC_MEDIA_URL"); exists {
		cfg.PublicMediaURL = strings.TrimRight(publicURL, "/")
	}

	// Handle durations
	var err error
	if cfg.ReconnectInitial, err = getDuration("FEEDSYNC_RECONNECT_INITIAL", time.Second); err != nil {
		return cfg, err
	}
	if cfg.ReconnectMax, err = getDuration("FEEDSYNC_RECONNECT_MAX", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.PresignTTL, err = getDuration("FEEDSYNC_PRESIGN_TTL", 15*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.SuggestionDelay, err = getDuration("FEEDSYNC_SUGGESTION_DELAY", 300*time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.FilterDelay, err = getDuration("FEEDSYNC_FILTER_DELAY", 500*time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = getDuration("FEEDSYNC_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}

	// Handle numbers
	if v, exists := os.LookupEnv("FEEDSYNC_PAGE_SIZE"); exists {
		if cfg.PageSize, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("FEEDSYNC_PAGE_SIZE: %w", err)
		}
	}
	if v, exists := os.LookupEnv("FEEDSYNC_SCROLL_THRESHOLD"); exists {
		if cfg.ScrollThreshold, err = strconv.ParseFloat(v, 64); err != nil {
			return cfg, fmt.Errorf("FEEDSYNC_SCROLL_THRESHOLD: %w", err)
		}
	}
	if v, exists := os.LookupEnv("FEEDSYNC_SUGGESTION_LIMIT"); exists {
		if cfg.SuggestionLimit, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("FEEDSYNC_SUGGESTION_LIMIT: %w", err)
		}
	}
	if v, exists := os.LookupEnv("FEEDSYNC_REQUEST_RATE"); exists {
		if cfg.RequestRate, err = strconv.ParseFloat(v, 64); err != nil {
			return cfg, fmt.Errorf("FEEDSYNC_REQUEST_RATE: %w", err)
		}
	}
	if v, exists := os.LookupEnv("FEEDSYNC_WORKERS"); exists {
		if cfg.Workers, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("FEEDSYNC_WORKERS: %w", err)
		}
	}

	return cfg, cfg.validate()
}

// S3Enabled reports whether presigned media URLs can be generated.
func (c Config) S3Enabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// validate checks value ranges
func (c Config) validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("FEEDSYNC_BACKEND_URL must be an absolute URL, got %q", c.BackendURL)
	}

	switch c.MediaType {
	case "all", "video", "music":
	default:
		return fmt.Errorf("FEEDSYNC_MEDIA_TYPE must be all, video or music, got %q", c.MediaType)
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("FEEDSYNC_PAGE_SIZE must be > 0")
	}

	if c.ScrollThreshold < 0 {
		return fmt.Errorf("FEEDSYNC_SCROLL_THRESHOLD must be >= 0")
	}

	if c.SuggestionLimit <= 0 {
		return fmt.Errorf("FEEDSYNC_SUGGESTION_LIMIT must be > 0")
	}

	if c.Workers <= 0 {
		return fmt.Errorf("FEEDSYNC_WORKERS must be > 0")
	}

	if c.ReconnectInitial <= 0 || c.ReconnectMax < c.ReconnectInitial {
		return fmt.Errorf("reconnect delays must satisfy 0 < initial <= max")
	}

	return nil
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// getDuration parses a duration variable, returning a fallback if not set
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, exists := os.LookupEnv(key)
	if !exists || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
