package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// KV backends
const (
	KVRedis    = "redis"
	KVPostgres = "postgres"
	KVMemory   = "memory"
)

type Config struct {
	// Server
	Port     int
	Env      string
	LogLevel string

	// CORS
	AllowedOrigins []string

	// Auth
	APIKey string

	// Storage. An empty URL for the selected backend leaves the prediction
	// routes unbound; they answer with a config error.
	KVBackend     string
	RedisURL      string
	PostgresURL   string
	ClickHouseURL string
	RecordTTL     time.Duration

	// Versions and freshness
	ModelVersion  string
	DataVersion   string
	PreKickoffTTL time.Duration
	MaxStaleness  time.Duration

	// Generation
	GenerationTimeout       time.Duration
	DistributedSingleFlight bool
	OpenAIAPIKey            string
	OpenAIModel             string
	OpenAIBaseURL           string

	// Upstream feeds
	FeedBaseURL        string
	FeedAPIKey         string
	FeedRequestsPerSec int
	FeedTimeout        time.Duration

	// Worker pool
	WorkerCount   int
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}

// Load loads configuration from environment variables, after applying a
// .env file when one exists. It returns an error if critical
// configuration is missing.
func Load() (*Config, error) {
	// Missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvInt("PORT", 8080),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		KVBackend:     strings.ToLower(getEnv("KV_BACKEND", KVRedis)),
		RedisURL:      os.Getenv("REDIS_URL"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		ClickHouseURL: os.Getenv("CLICKHOUSE_URL"),
		RecordTTL:     getEnvDuration("RECORD_TTL", 0),

		ModelVersion:  getEnv("MODEL_VERSION", "v1"),
		DataVersion:   getEnv("DATA_VERSION", "v1"),
		PreKickoffTTL: getEnvDuration("PRE_KICKOFF_TTL", 90*time.Minute),
		MaxStaleness:  getEnvDuration("MAX_STALENESS", 24*time.Hour),

		GenerationTimeout:       getEnvDuration("GENERATION_TIMEOUT", 60*time.Second),
		DistributedSingleFlight: getEnvBool("DISTRIBUTED_SINGLE_FLIGHT", false),
		OpenAIAPIKey:            os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:           os.Getenv("OPENAI_BASE_URL"),

		FeedBaseURL:        getEnv("FEED_BASE_URL", "https://v3.football.api-sports.io"),
		FeedAPIKey:         os.Getenv("FEED_API_KEY"),
		FeedRequestsPerSec: getEnvInt("FEED_REQUESTS_PER_SEC", 5),
		FeedTimeout:        getEnvDuration("FEED_TIMEOUT", 10*time.Second),

		WorkerCount:   getEnvInt("WORKER_COUNT", 2),
		QueueSize:     getEnvInt("QUEUE_SIZE", 10000),
		BatchSize:     getEnvInt("BATCH_SIZE", 500),
		FlushInterval: getEnvDuration("FLUSH_INTERVAL", 1*time.Second),
	}

	// CORS
	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	switch cfg.KVBackend {
	case KVRedis, KVPostgres, KVMemory:
	default:
		return nil, fmt.Errorf("invalid KV_BACKEND %q: want redis, postgres or memory", cfg.KVBackend)
	}

	// Critical configuration - fail if missing
	var err error
	if cfg.APIKey, err = getEnvRequired("API_KEY"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether ENV selects production logging
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// requestGrace covers the store write and response after a generation
// that used its whole budget
const requestGrace = 30 * time.Second

// RequestTimeout bounds a whole HTTP request. It always outlasts
// GenerationTimeout so a slow generation ends as a timeout error rather
// than a cut connection.
func (c *Config) RequestTimeout() time.Duration {
	return c.GenerationTimeout + requestGrace
}

// StoreURL returns the connection URL of the selected KV backend
func (c *Config) StoreURL() string {
	switch c.KVBackend {
	case KVRedis:
		return c.RedisURL
	case KVPostgres:
		return c.PostgresURL
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
