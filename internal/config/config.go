package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// DataDir holds the persisted blobs (incidents, user, notifications,
	// last-sync marker, classification cache).
	DataDir string

	// SyncInterval drives the periodic sync loop in serve mode. Zero disables
	// automatic syncing; cycles then run only on explicit triggers.
	SyncInterval time.Duration

	// Feed endpoints. Overridable for tests and regional mirrors.
	FeedTimeout     time.Duration
	EONETBaseURL    string
	USGSFeedURL     string
	ReliefWebURL    string
	MastodonBaseURL string
	MastodonTag     string

	// Triage oracle configuration. The oracle speaks the chat-completions
	// wire format; BaseURL selects the deployment.
	OracleAPIKey    string
	OracleBaseURL   string
	OracleModel     string
	OracleTimeout   time.Duration
	TriageCacheSize int

	// Kafka incident publishing (feature-flagged via KAFKA_ENABLED).
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	syncInterval, err := parseOptionalDuration("SYNC_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parseDuration("FEED_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	oracleTimeout, err := parseDuration("ORACLE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("TRIAGE_CACHE_SIZE", 200)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		DataDir:         envOrDefault("DATA_DIR", "data"),
		SyncInterval:    syncInterval,

		FeedTimeout:     feedTimeout,
		EONETBaseURL:    envOrDefault("EONET_BASE_URL", "https://eonet.gsfc.nasa.gov/api/v3"),
		USGSFeedURL:     envOrDefault("USGS_FEED_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/4.5_day.geojson"),
		ReliefWebURL:    envOrDefault("RELIEFWEB_URL", "https://api.reliefweb.int/v1/reports"),
		MastodonBaseURL: envOrDefault("MASTODON_BASE_URL", "https://mastodon.social"),
		MastodonTag:     envOrDefault("MASTODON_TAG", "emergency"),

		OracleAPIKey:    os.Getenv("ORACLE_API_KEY"),
		OracleBaseURL:   os.Getenv("ORACLE_BASE_URL"),
		OracleModel:     envOrDefault("ORACLE_MODEL", "gpt-4o-mini"),
		OracleTimeout:   oracleTimeout,
		TriageCacheSize: cacheSize,

		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "disaster-incidents"),
		KafkaEnabled:   kafkaEnabled,
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// parseOptionalDuration allows zero ("0" or "0s") to mean disabled.
func parseOptionalDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
