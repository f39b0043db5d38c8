// Package config reads service configuration from the environment so main
// stays lean. Every knob has a development default; production overrides via
// env vars.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Addr        string
	LogLevel    string
	PostgresDSN string
	Redis       Redis
	Kafka       Kafka

	// WatchlistPath points at the raw list file the ingestion job reads.
	WatchlistPath string

	// MinWatchlistEntries rejects suspiciously small list files.
	MinWatchlistEntries int

	// JobQueueSize bounds how many pending ingestion/scoring units may wait.
	JobQueueSize int

	ScoringBatchSize int
	ScreenTimeout    time.Duration
	RunLockTTL       time.Duration
}

// Redis configures the run-lock backend. An empty URL means locks are kept
// in process memory, which is only safe for a single instance.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit event publisher. No brokers means audit events
// stay in the outbox table only.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envOr("LISTSCREEN_ADDR", ":8080"),
		LogLevel:    envOr("LISTSCREEN_LOG_LEVEL", "info"),
		PostgresDSN: os.Getenv("LISTSCREEN_POSTGRES_DSN"),
		Redis: Redis{
			URL:          os.Getenv("LISTSCREEN_REDIS_URL"),
			PoolSize:     envIntOr("LISTSCREEN_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("LISTSCREEN_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("LISTSCREEN_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("LISTSCREEN_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("LISTSCREEN_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("LISTSCREEN_KAFKA_BROKERS")),
			Topic:   envOr("LISTSCREEN_KAFKA_AUDIT_TOPIC", "listscreen.audit.v1"),
		},
		WatchlistPath:       os.Getenv("LISTSCREEN_WATCHLIST_PATH"),
		MinWatchlistEntries: envIntOr("LISTSCREEN_MIN_WATCHLIST_ENTRIES", 1),
		JobQueueSize:        envIntOr("LISTSCREEN_JOB_QUEUE_SIZE", 16),
		ScoringBatchSize:    envIntOr("LISTSCREEN_SCORING_BATCH_SIZE", 1000),
		ScreenTimeout:       envDurationOr("LISTSCREEN_SCREEN_TIMEOUT", 5*time.Second),
		RunLockTTL:          envDurationOr("LISTSCREEN_RUN_LOCK_TTL", 30*time.Minute),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
