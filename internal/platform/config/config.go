// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production
// deployments override via env.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel string
	BaseURL  string // public base URL used when composing referral links

	// Webhook deliveries carry small JSON bodies, so the read timeout
	// stays short; slow-consumer protection lives in WriteTimeout.
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// Postgres captures the domain store connection settings.
type Postgres struct {
	DSN         string
	MaxConns    int32
	ConnTimeout time.Duration
}

// Redis captures the rate limiter backend settings. An empty URL disables
// Redis and the engine falls back to in-process limiting.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures audit publishing settings. Empty brokers disable Kafka and
// audit events stay in the configured store only.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Auth captures the credentials the HTTP surface validates against.
type Auth struct {
	// JWTSigningKey is the HS256 key shared with the upstream identity
	// gateway that mints user access tokens.
	JWTSigningKey string
	JWTIssuer     string

	// ServiceToken guards service-to-service routes (conversion delivery,
	// payout operations).
	ServiceToken string
}

// Referral captures the engine's tunable policy knobs.
type Referral struct {
	// CodeIssueLimit bounds how many codes one owner may issue per window.
	CodeIssueLimit  int
	CodeIssueWindow time.Duration

	// LinkTokenSecret signs per-link tracking tokens.
	LinkTokenSecret string
	LinkTokenTTL    time.Duration

	// HighValueThresholdCents feeds the fraud value-anomaly check.
	HighValueThresholdCents int64

	// SignupFallbackCents is the flat signup bonus when a signup conversion
	// carries no value.
	SignupFallbackCents int64

	// CascadeRateBasisPoints and CascadeMinimumCents bound the one-level
	// tier bonus paid to the referrer's own referrer.
	CascadeRateBasisPoints int64
	CascadeMinimumCents    int64
}

// Config is the root configuration object.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Auth     Auth
	Referral Referral
}

// FromEnv reads configuration from the environment.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:              getEnv("REFWARD_ADDR", ":8080"),
			LogLevel:          getEnv("REFWARD_LOG_LEVEL", "info"),
			BaseURL:           getEnv("REFWARD_BASE_URL", "https://refward.example.com"),
			ReadHeaderTimeout: getEnvDuration("REFWARD_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvDuration("REFWARD_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      getEnvDuration("REFWARD_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("REFWARD_IDLE_TIMEOUT", 2*time.Minute),
		},
		Postgres: Postgres{
			DSN:         os.Getenv("REFWARD_POSTGRES_DSN"),
			MaxConns:    int32(getEnvInt("REFWARD_POSTGRES_MAX_CONNS", 10)),
			ConnTimeout: getEnvDuration("REFWARD_POSTGRES_CONN_TIMEOUT", 5*time.Second),
		},
		Redis: Redis{
			URL:          os.Getenv("REFWARD_REDIS_URL"),
			PoolSize:     getEnvInt("REFWARD_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REFWARD_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REFWARD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REFWARD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REFWARD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("REFWARD_KAFKA_BROKERS")),
			Topic:   getEnv("REFWARD_KAFKA_AUDIT_TOPIC", "refward.audit"),
		},
		Auth: Auth{
			JWTSigningKey: getEnv("REFWARD_JWT_SIGNING_KEY", "dev-jwt-key-change-in-production"),
			JWTIssuer:     getEnv("REFWARD_JWT_ISSUER", "refward"),
			ServiceToken:  getEnv("REFWARD_SERVICE_TOKEN", "dev-service-token"),
		},
		Referral: Referral{
			CodeIssueLimit:          getEnvInt("REFWARD_CODE_ISSUE_LIMIT", 10),
			CodeIssueWindow:         getEnvDuration("REFWARD_CODE_ISSUE_WINDOW", time.Hour),
			LinkTokenSecret:         getEnv("REFWARD_LINK_TOKEN_SECRET", "dev-secret-change-in-production"),
			LinkTokenTTL:            getEnvDuration("REFWARD_LINK_TOKEN_TTL", 30*24*time.Hour),
			HighValueThresholdCents: getEnvInt64("REFWARD_HIGH_VALUE_THRESHOLD_CENTS", 100000),
			SignupFallbackCents:     getEnvInt64("REFWARD_SIGNUP_FALLBACK_CENTS", 500),
			CascadeRateBasisPoints:  getEnvInt64("REFWARD_CASCADE_RATE_BASIS_POINTS", 3000),
			CascadeMinimumCents:     getEnvInt64("REFWARD_CASCADE_MINIMUM_CENTS", 100),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
