// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database (local record store, subscriptions, run queue)
	DatabaseURL string

	// Record store backend: "airtable" (hosted workspace) or "local" (libsql)
	RecordStoreMode   string
	AirtableAPIKey    string
	AirtableBaseID    string
	AirtableEndpoint  string // override for testing; defaults to the public API

	// Authentication
	JWTSecret     string
	JWTExpiry     time.Duration
	EncryptionKey []byte // 32-byte key for AES-256-GCM encryption of stored credentials

	// Google Analytics / Search Console OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// LLM provider keys
	AnthropicKey  string
	OpenAIKey     string
	OpenRouterKey string
	LLMProvider   string // default provider for generation ("anthropic", "openai", "openrouter")
	LLMModel      string

	// Stripe billing
	StripeSecretKey     string
	StripeWebhookSecret string

	// Platform user webhooks (Svix signing secret)
	PlatformWebhookSecret string

	// Outbound run-completed webhook (optional)
	RunWebhookURL string

	// Snapshot archive (S3-compatible object storage)
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string

	// CORS
	CORSOrigins []string

	// Worker
	WorkerPollInterval        time.Duration
	WorkerConcurrency         int
	WorkerShutdownGracePeriod time.Duration

	// Idle shutdown (scale-to-zero deployments; 0 = disabled)
	IdleTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:hive.db?_journal=WAL&_timeout=5000"),

		RecordStoreMode:  getEnv("RECORD_STORE_MODE", "local"),
		AirtableAPIKey:   getEnv("AIRTABLE_API_KEY", ""),
		AirtableBaseID:   getEnv("AIRTABLE_BASE_ID", ""),
		AirtableEndpoint: getEnv("AIRTABLE_ENDPOINT", "https://api.airtable.com/v0"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 15*time.Minute),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		AnthropicKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenRouterKey: getEnv("OPENROUTER_API_KEY", ""),
		LLMProvider:   getEnv("LLM_PROVIDER", "anthropic"),
		LLMModel:      getEnv("LLM_MODEL", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		PlatformWebhookSecret: getEnv("PLATFORM_WEBHOOK_SECRET", ""),

		RunWebhookURL: getEnv("RUN_WEBHOOK_URL", ""),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0),
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	cfg.WorkerPollInterval = getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second)
	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 3)
	cfg.WorkerShutdownGracePeriod = getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 5*time.Minute)

	if cfg.RecordStoreMode == "airtable" {
		if cfg.AirtableAPIKey == "" || cfg.AirtableBaseID == "" {
			return nil, fmt.Errorf("AIRTABLE_API_KEY and AIRTABLE_BASE_ID are required when RECORD_STORE_MODE=airtable")
		}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// Encryption key: explicit base64 key, or derived from the JWT secret
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveEncryptionKey(cfg.JWTSecret)
	}

	return cfg, nil
}

// UsesAirtable returns true if the hosted record store backend is configured.
func (c *Config) UsesAirtable() bool {
	return c.RecordStoreMode == "airtable"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string using
// HKDF-SHA256. Appropriate for high-entropy secrets; low-entropy passwords
// would need Argon2 instead.
func deriveEncryptionKey(secret string) []byte {
	salt := []byte("hive-api-encryption-key-v1")
	info := []byte("aes-256-gcm-encryption")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
