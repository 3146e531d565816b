package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSecretKey is only acceptable outside production.
const DefaultSecretKey = "dev-secret-change-me"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Storage
	Store       string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	DocumentTTL time.Duration

	// Auth
	SecretKey string
	TokenTTL  time.Duration

	// Model
	GoogleAPIKey     string
	ModelName        string
	EmbeddingModel   string
	ModelTemperature float32
	MaxModelCalls    int
	ReadGuard        bool

	// HTTP
	AllowedOrigins []string
	MaxUploadBytes int64

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SQLITE_PATH", "./data/todo.db")
	v.SetDefault("DOCUMENT_TTL", "24h")
	v.SetDefault("SECRET_KEY", DefaultSecretKey)
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("MODEL_NAME", "gemini-flash-latest")
	v.SetDefault("EMBEDDING_MODEL", "gemini-embedding-001")
	v.SetDefault("MODEL_TEMPERATURE", 0.0)
	v.SetDefault("MAX_MODEL_CALLS", 12)
	v.SetDefault("ENFORCE_READ_BEFORE_MUTATE", false)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("MAX_UPLOAD_BYTES", 5<<20)
	v.SetDefault("AUTO_BLOCK_ENABLED", false)

	cfg := &Config{
		Port:               v.GetString("PORT"),
		Env:                v.GetString("ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		Store:              strings.ToLower(v.GetString("STORE")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		RedisURL:           v.GetString("REDIS_URL"),
		DocumentTTL:        v.GetDuration("DOCUMENT_TTL"),
		SecretKey:          v.GetString("SECRET_KEY"),
		TokenTTL:           time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		GoogleAPIKey:       v.GetString("GOOGLE_API_KEY"),
		ModelName:          v.GetString("MODEL_NAME"),
		EmbeddingModel:     v.GetString("EMBEDDING_MODEL"),
		ModelTemperature:   float32(v.GetFloat64("MODEL_TEMPERATURE")),
		MaxModelCalls:      v.GetInt("MAX_MODEL_CALLS"),
		ReadGuard:          v.GetBool("ENFORCE_READ_BEFORE_MUTATE"),
		AllowedOrigins:     splitList(v.GetString("ALLOWED_ORIGINS")),
		MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_BYTES"),
		RateLimitWhitelist: splitList(v.GetString("RATE_LIMIT_WHITELIST")),
		AutoBlockEnabled:   v.GetBool("AUTO_BLOCK_ENABLED"),
	}

	if cfg.Store == "" {
		cfg.Store = StoreSQLite
		if cfg.DatabaseURL != "" {
			cfg.Store = StorePostgres
		}
	}

	// In production, require a real secret and model credentials
	if cfg.Env == "production" {
		if cfg.SecretKey == "" || cfg.SecretKey == DefaultSecretKey {
			panic("SECRET_KEY is required in production")
		}
		if cfg.GoogleAPIKey == "" {
			panic("GOOGLE_API_KEY is required in production")
		}
		if cfg.Store == StorePostgres && cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required for the postgres store")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// splitList parses a comma-separated value.
func splitList(value string) []string {
	var out []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
