// Package config loads the service configuration from the environment once at
// startup. The loaded values are immutable; the only sanctioned way to change
// rule configuration at runtime is the audited reload operation on the
// compliance service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures every tunable of the ingestion pipeline. Rule values
// (retention, notice year, purposes) are configuration rather than code so the
// accepted year can roll forward without a release.
type Config struct {
	Addr string

	// Compliance rule surface.
	RetentionDays      int
	NoticeYear         int
	AuthorizedPurposes []string

	// Autofill previews pipeline behavior on incomplete test data. It must
	// never be on for production consent decisions, so it defaults off and
	// has no truthy fallback.
	Autofill          bool
	DefaultNoticeDate string

	// Worker pool size for record-level evaluation.
	Workers int

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig
}

// RedisConfig configures the optional identity-resolution cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional persistent record store.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the optional audit fan-out.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// GatewayConfig configures the external identity lookup collaborator.
type GatewayConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// FromEnv builds a Config from OMNIGEST_* environment variables so main stays
// lean. Absent optional collaborators (redis, postgres, kafka, gateway) leave
// their URL/DSN empty and the pipeline runs fully in memory.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("OMNIGEST_ADDR", ":8080"),
		RetentionDays:      envIntOr("OMNIGEST_RETENTION_DAYS", 365),
		NoticeYear:         envIntOr("OMNIGEST_NOTICE_YEAR", 2026),
		AuthorizedPurposes: envListOr("OMNIGEST_AUTHORIZED_PURPOSES", []string{"Consultation", "Treatment", "Audit", "Emergency Care"}),
		Autofill:           os.Getenv("OMNIGEST_AUTOFILL") == "true",
		DefaultNoticeDate:  envOr("OMNIGEST_DEFAULT_NOTICE_DATE", "2026-01-01"),
		Workers:            envIntOr("OMNIGEST_WORKERS", 8),
		Redis: RedisConfig{
			URL:          os.Getenv("OMNIGEST_REDIS_URL"),
			PoolSize:     envIntOr("OMNIGEST_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("OMNIGEST_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("OMNIGEST_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("OMNIGEST_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("OMNIGEST_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("OMNIGEST_POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers: envListOr("OMNIGEST_KAFKA_BROKERS", nil),
			Topic:   envOr("OMNIGEST_KAFKA_TOPIC", "omnigest.audit"),
		},
		Gateway: GatewayConfig{
			URL:          os.Getenv("OMNIGEST_GATEWAY_URL"),
			ClientID:     os.Getenv("OMNIGEST_GATEWAY_CLIENT_ID"),
			ClientSecret: os.Getenv("OMNIGEST_GATEWAY_CLIENT_SECRET"),
			Timeout:      envDurationOr("OMNIGEST_GATEWAY_TIMEOUT", 5*time.Second),
		},
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envListOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
