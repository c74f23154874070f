// Package config loads process configuration from the environment, the
// way the teacher's pkg/config/config.go does: plain os.Getenv reads with
// explicit defaults, no framework.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker process configuration (spec.md §6 "Environment").
type Config struct {
	// Durable execution endpoint + credential.
	Endpoint  string
	Namespace string
	APIKey    string

	// Persistence.
	DatabaseURL string // "sqlite://path.db" or "postgres://..."

	// Artifacts.
	ArtifactRoot string // used by the "fs" storage type
	StorageType  string // "fs" | "s3" | "gcs"

	// ProfilesDir, when non-empty, is scanned for "profile_<family>.yaml"
	// files that override or add to DefaultFamilyProfiles (LoadAllProfiles).
	ProfilesDir string

	// Optional distributed lease cache for multi-worker coordination.
	RedisURL string

	// Token store encryption key (tangential; §6).
	TokenEncryptionKey string

	// Extractor rate limiting.
	ExtractorRPS float64

	LogLevel string

	// OTLPEndpoint, when set, turns on OpenTelemetry trace/metric export
	// (e.g. "otel-collector:4317"). Left empty, the worker runs with
	// tracing/metrics disabled rather than failing to dial a collector
	// that doesn't exist.
	OTLPEndpoint string
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	return Config{
		Endpoint:           getenv("ENDPOINT", "localhost:7233"),
		Namespace:          getenv("NAMESPACE", "ap-core"),
		APIKey:             os.Getenv("API_KEY"),
		DatabaseURL:        getenv("DATABASE_URL", "sqlite://./data/apcore.db"),
		ArtifactRoot:       getenv("ARTIFACT_ROOT", "./data/artifacts"),
		StorageType:        getenv("ARTIFACT_STORAGE_TYPE", "fs"),
		ProfilesDir:        os.Getenv("PROFILES_DIR"),
		RedisURL:           os.Getenv("REDIS_URL"),
		TokenEncryptionKey: os.Getenv("TOKEN_ENCRYPTION_KEY"),
		ExtractorRPS:       getenvFloat("EXTRACTOR_RPS", 2.0),
		LogLevel:           getenv("LOG_LEVEL", "INFO"),
		OTLPEndpoint:       os.Getenv("OTLP_ENDPOINT"),
	}
}

// Validate returns an error describing the first missing required setting.
// A worker should treat this as a fatal initialization error (exit code 1
// per spec.md §6).
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("config: ENDPOINT is required")
	}
	if c.Namespace == "" {
		return fmt.Errorf("config: NAMESPACE is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
