// Package config loads process-wide configuration from the environment so
// main stays lean. Every tunable the decision path depends on lives here;
// services receive values through constructors, never by reading env vars.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the full runtime configuration for the faceguard process.
type Server struct {
	Addr string
	Env  string // "dev" or "prod"

	// Credential issuance. Rotating the key invalidates all outstanding
	// tokens; there is no revocation list.
	JWTSigningKey string
	TokenTTL      time.Duration

	// Matching and liveness tunables.
	EmbeddingDim   int
	MatchThreshold float64
	MotionMin      float64
	MotionMax      float64

	// Capture quality gate.
	BlurFloor     float64
	BrightnessMin float64
	BrightnessMax float64

	// Brute-force lockout.
	LockoutMaxFailures int
	LockoutWindow      time.Duration
	LockoutDuration    time.Duration

	// 1:N search result cap.
	SearchMaxK int

	// External collaborators and backing stores. Empty URL means the
	// corresponding backend is not configured (memory fallback or disabled).
	PostgresURL      string
	RedisURL         string
	KafkaBrokers     []string
	KafkaAuditTopic  string
	ExtractorURL     string
	ExtractorTimeout time.Duration
}

// FromEnv builds a Server config from environment variables, applying
// development defaults for anything unset.
func FromEnv() Server {
	cfg := Server{
		Addr:               envStr("FACEGUARD_ADDR", ":8080"),
		Env:                envStr("FACEGUARD_ENV", "dev"),
		JWTSigningKey:      os.Getenv("FACEGUARD_SIGNING_KEY"),
		TokenTTL:           envDuration("FACEGUARD_TOKEN_TTL", time.Hour),
		EmbeddingDim:       envInt("FACEGUARD_EMBEDDING_DIM", 128),
		MatchThreshold:     envFloat("FACEGUARD_MATCH_THRESHOLD", 0.6),
		MotionMin:          envFloat("FACEGUARD_MOTION_MIN", 0.05),
		MotionMax:          envFloat("FACEGUARD_MOTION_MAX", 0.5),
		BlurFloor:          envFloat("FACEGUARD_BLUR_FLOOR", 45),
		BrightnessMin:      envFloat("FACEGUARD_BRIGHTNESS_MIN", 40),
		BrightnessMax:      envFloat("FACEGUARD_BRIGHTNESS_MAX", 220),
		LockoutMaxFailures: envInt("FACEGUARD_LOCKOUT_MAX_FAILURES", 5),
		LockoutWindow:      envDuration("FACEGUARD_LOCKOUT_WINDOW", time.Minute),
		LockoutDuration:    envDuration("FACEGUARD_LOCKOUT_DURATION", time.Minute),
		SearchMaxK:         envInt("FACEGUARD_SEARCH_MAX_K", 25),
		PostgresURL:        os.Getenv("FACEGUARD_POSTGRES_URL"),
		RedisURL:           os.Getenv("FACEGUARD_REDIS_URL"),
		KafkaAuditTopic:    envStr("FACEGUARD_KAFKA_AUDIT_TOPIC", "faceguard.audit"),
		ExtractorURL:       os.Getenv("FACEGUARD_EXTRACTOR_URL"),
		ExtractorTimeout:   envDuration("FACEGUARD_EXTRACTOR_TIMEOUT", 2*time.Second),
	}

	if brokers := os.Getenv("FACEGUARD_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.JWTSigningKey == "" && cfg.Env == "dev" {
		// Development only; Validate rejects this outside dev.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

// Validate rejects configurations that must fail at startup rather than
// per request.
func (c Server) Validate() error {
	if c.JWTSigningKey == "" {
		return errors.New("signing key is required (set FACEGUARD_SIGNING_KEY)")
	}
	if c.EmbeddingDim <= 0 {
		return errors.New("embedding dimension must be positive")
	}
	if c.MotionMin >= c.MotionMax {
		return errors.New("motion band is empty (min >= max)")
	}
	if c.BrightnessMin >= c.BrightnessMax {
		return errors.New("brightness band is empty (min >= max)")
	}
	if c.LockoutMaxFailures <= 0 {
		return errors.New("lockout failure limit must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
