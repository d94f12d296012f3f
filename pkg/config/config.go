package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	StorageDriverLocal = "local"
	StorageDriverGCS   = "gcs"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Folders   FoldersConfig
	Search    SearchConfig
	Outbox    OutboxConfig
	Cache     CacheConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig controls bearer token verification. Tokens are issued by an external identity service.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Required bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig selects the blob store that mirrors folders and files.
type StorageConfig struct {
	Driver             string
	LocalRoot          string
	GCSBucket          string
	GCSCredentialsFile string
	SignedURLSecret    string
	SignedURLTTL       time.Duration
	PublicBaseURL      string
}

// FoldersConfig bounds the folder hierarchy.
type FoldersConfig struct {
	MaxDepth int
}

// SearchConfig tunes document search.
type SearchConfig struct {
	DefaultLimit  int
	MaxLimit      int
	RecordHistory bool
	ExportMaxRows int
}

// OutboxConfig controls the durable side-effect dispatcher.
type OutboxConfig struct {
	Enabled      bool
	Workers      int
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleAfter   time.Duration
}

// CacheConfig governs the redis read-through cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	ServiceName string
}

// RateLimitConfig applies per-client limits to expensive endpoints.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 30*time.Minute),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Required: v.GetBool("JWT_REQUIRED"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		Driver:             strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalRoot:          v.GetString("STORAGE_LOCAL_ROOT"),
		GCSBucket:          v.GetString("STORAGE_GCS_BUCKET"),
		GCSCredentialsFile: v.GetString("STORAGE_GCS_CREDENTIALS_FILE"),
		SignedURLSecret:    v.GetString("SHARE_SIGNED_URL_SECRET"),
		SignedURLTTL:       parseDuration(v.GetString("SHARE_SIGNED_URL_TTL"), 24*time.Hour),
		PublicBaseURL:      strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
	}

	cfg.Folders = FoldersConfig{MaxDepth: positiveOr(v.GetInt("FOLDER_MAX_DEPTH"), 32)}

	cfg.Search = SearchConfig{
		DefaultLimit:  positiveOr(v.GetInt("SEARCH_DEFAULT_LIMIT"), 10),
		MaxLimit:      positiveOr(v.GetInt("SEARCH_MAX_LIMIT"), 100),
		RecordHistory: v.GetBool("SEARCH_RECORD_HISTORY"),
		ExportMaxRows: positiveOr(v.GetInt("SEARCH_EXPORT_MAX_ROWS"), 1000),
	}

	cfg.Outbox = OutboxConfig{
		Enabled:      v.GetBool("OUTBOX_ENABLED"),
		Workers:      positiveOr(v.GetInt("OUTBOX_WORKERS"), 2),
		PollInterval: parseDuration(v.GetString("OUTBOX_POLL_INTERVAL"), 5*time.Second),
		BatchSize:    positiveOr(v.GetInt("OUTBOX_BATCH_SIZE"), 20),
		MaxAttempts:  positiveOr(v.GetInt("OUTBOX_MAX_ATTEMPTS"), 8),
		RetryDelay:   parseDuration(v.GetString("OUTBOX_RETRY_DELAY"), 30*time.Second),
		StaleAfter:   parseDuration(v.GetString("OUTBOX_STALE_AFTER"), 10*time.Minute),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 2*time.Minute),
	}

	cfg.Telemetry = TelemetryConfig{
		Enabled:     v.GetBool("OTEL_ENABLED"),
		Exporter:    strings.ToLower(v.GetString("OTEL_EXPORTER")),
		Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
	}

	cfg.RateLimit = RateLimitConfig{
		RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		Burst: positiveOr(v.GetInt("RATE_LIMIT_BURST"), 20),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_docs")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_REQUIRED", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_ROOT", "./storage")
	v.SetDefault("STORAGE_GCS_BUCKET", "")
	v.SetDefault("STORAGE_GCS_CREDENTIALS_FILE", "")
	v.SetDefault("SHARE_SIGNED_URL_SECRET", "dev_share_secret")
	v.SetDefault("SHARE_SIGNED_URL_TTL", "24h")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("FOLDER_MAX_DEPTH", 32)

	v.SetDefault("SEARCH_DEFAULT_LIMIT", 10)
	v.SetDefault("SEARCH_MAX_LIMIT", 100)
	v.SetDefault("SEARCH_RECORD_HISTORY", true)
	v.SetDefault("SEARCH_EXPORT_MAX_ROWS", 1000)

	v.SetDefault("OUTBOX_ENABLED", true)
	v.SetDefault("OUTBOX_WORKERS", 2)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "5s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 20)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 8)
	v.SetDefault("OUTBOX_RETRY_DELAY", "30s")
	v.SetDefault("OUTBOX_STALE_AFTER", "10m")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_TTL", "2m")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER", "otlp")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SERVICE_NAME", "sma-docs-api")

	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
