package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration assembled from the environment
// so main stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	SessionTTL    time.Duration

	OTPTTL         time.Duration
	OTPMaxAttempts int

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig tunes the shared Redis client. An empty URL disables Redis and
// the service falls back to in-memory stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the durable profile store. An empty URL disables
// Postgres.
type PostgresConfig struct {
	URL string
}

// KafkaConfig configures the mutation-event publisher. Empty brokers disable
// publishing (a no-op publisher is wired instead).
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables with dev defaults.
func FromEnv() Config {
	return Config{
		Addr:          envOr("VENDRY_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("JWT_ISSUER", "vendry"),
		SessionTTL:    envDuration("SESSION_TTL", 24*time.Hour),

		OTPTTL:         envDuration("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts: envInt("OTP_MAX_ATTEMPTS", 5),

		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_TOPIC", "vendry.identity.events"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
