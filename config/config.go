// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For features that need Twitch credentials (channel browsing), use ValidateHelixReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Twitch
	TwitchClientID     string
	TwitchClientSecret string

	// HTTP
	HTTPAddr string

	// Clip assembly
	FetchConcurrency int           // max simultaneous segment downloads
	FetchRetries     int           // extra attempts per segment (0 = no retry)
	ClipPadding      float64       // seconds of slack around each highlight
	FFmpegPath       string        // remux binary
	ClipTimeout      time.Duration // hard deadline for a whole clip request

	// Chat loading
	ChatParallelism int // concurrent comment-paging chunks per VOD

	// Aggregation workers
	WorkerCount int

	// Upstream response cache
	CacheTTL time.Duration
}

// Load reads environment variables and applies defaults. Missing Twitch credentials
// don't fail the load; they only disable the Helix channel-browsing surface.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.FetchConcurrency = envInt("FETCH_CONCURRENCY", 20)
	if cfg.FetchConcurrency < 1 {
		return nil, fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	cfg.FetchRetries = envInt("FETCH_RETRIES", 0)
	if cfg.FetchRetries < 0 {
		cfg.FetchRetries = 0
	}

	cfg.ClipPadding = 20
	if s := os.Getenv("CLIP_PADDING_SECONDS"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid CLIP_PADDING_SECONDS: %q", s)
		}
		cfg.ClipPadding = f
	}

	cfg.FFmpegPath = os.Getenv("FFMPEG_PATH")
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}

	cfg.ClipTimeout = envDuration("CLIP_TIMEOUT", 10*time.Minute)
	cfg.ChatParallelism = envInt("CHAT_PARALLELISM", 10)
	if cfg.ChatParallelism < 1 {
		cfg.ChatParallelism = 1
	}
	cfg.WorkerCount = envInt("WORKER_COUNT", 2)
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	cfg.CacheTTL = envDuration("CACHE_TTL", 15*time.Minute)

	return cfg, nil
}

// ValidateHelixReady checks required fields for the Helix API surface (app token flow).
func (c *Config) ValidateHelixReady() error {
	if c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
	}
	return nil
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}
