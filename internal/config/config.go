package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageLocal    = "local"
	StorageSupabase = "supabase"
	StorageS3       = "s3"

	SequencePostgres = "postgres"
	SequenceRedis    = "redis"
	SequenceMemory   = "memory"
)

type Config struct {
	// Server
	Port            string
	Environment     string
	BaseURL         string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string

	// Auth
	JWTSecret string

	// File storage
	UploadDir             string
	StorageBackend        string
	SupabaseURL           string
	SupabaseKey           string
	SupabaseStorageBucket string
	S3Bucket              string
	S3Region              string
	S3Endpoint            string
	S3PublicBaseURL       string

	// Order and payment numbers
	SequenceBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Events
	KafkaBrokers string
	KafkaTopic   string

	// Archive ingestion limits
	MaxUploadBytes    int64
	MaxArchiveEntries int
	MaxArchiveBytes   int64
	MaxEntryBytes     int64
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		UploadDir:             getEnv("UPLOAD_DIR", "./uploads"),
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseKey:           getEnv("SUPABASE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "volume-pages"),
		S3Bucket:              getEnv("S3_BUCKET", ""),
		S3Region:              getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3PublicBaseURL:       getEnv("S3_PUBLIC_BASE_URL", ""),

		SequenceBackend: strings.ToLower(getEnv("SEQUENCE_BACKEND", "")),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),

		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "mangashelf-events"),

		MaxUploadBytes:    getEnvAsInt64("MAX_UPLOAD_BYTES", 512<<20),
		MaxArchiveEntries: getEnvAsInt("MAX_ARCHIVE_ENTRIES", 2000),
		MaxArchiveBytes:   getEnvAsInt64("MAX_ARCHIVE_BYTES", 1<<30),
		MaxEntryBytes:     getEnvAsInt64("MAX_ENTRY_BYTES", 64<<20),
	}

	if cfg.SequenceBackend == "" {
		cfg.SequenceBackend = SequencePostgres
		if cfg.DatabaseURL == "" {
			cfg.SequenceBackend = SequenceMemory
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageLocal:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required")
		}
	case StorageSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for supabase storage")
		}
		if c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_KEY is required for supabase storage")
		}
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.SequenceBackend {
	case SequencePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres sequences")
		}
	case SequenceRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for redis sequences")
		}
	case SequenceMemory:
	default:
		return fmt.Errorf("unknown SEQUENCE_BACKEND %q", c.SequenceBackend)
	}

	if c.MaxArchiveEntries <= 0 || c.MaxArchiveBytes <= 0 || c.MaxEntryBytes <= 0 {
		return fmt.Errorf("archive limits must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetKafkaBrokers returns nil when event publishing is disabled.
func (c *Config) GetKafkaBrokers() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
