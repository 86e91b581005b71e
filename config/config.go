package config

import (
	"fmt"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/writer"
)

type Config struct {
	AppName                       string        `env:"APP_NAME" env-default:"fern-api"`
	Version                       string        `env:"APP_VERSION" env-default:"dev"`
	Port                          int           `env:"PORT" env-default:"3000"`
	LogLevel                      string        `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool          `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int           `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"120"`
	HttpServerReadTimeoutSeconds  int           `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"60"`
	HttpServerIdleTimeoutSeconds  int           `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	ReadHeaderTimeoutSeconds      int           `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int           `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	BodyLimit                     string        `env:"HTTP_SERVER_BODY_LIMIT" env-default:"32M"`
	AllowOrigins                  []string      `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string      `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int           `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	ShutdownTimeout               time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	// Remote store driver: postgres, rest or none
	RemoteDriver string `env:"REMOTE_DRIVER" env-default:"none"`

	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:""`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// REST remote base URL
	RestBaseURL string `env:"REST_BASE_URL" env-default:""`
	// REST remote API key
	RestAPIKey string `env:"REST_API_KEY" env-default:""`
	// REST request timeout
	RestTimeout time.Duration `env:"REST_TIMEOUT" env-default:"30s"`
	// REST read page size
	RestPageSize int `env:"REST_PAGE_SIZE" env-default:"1000"`

	// Cache driver: memory, sqlite or redis
	CacheDriver string `env:"CACHE_DRIVER" env-default:"sqlite"`
	// sqlite cache file
	CacheSQLitePath string `env:"CACHE_SQLITE_PATH" env-default:"data/cache.db"`
	// Redis cache key prefix
	CacheRedisPrefix string `env:"CACHE_REDIS_PREFIX" env-default:"fern:snapshot:"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Serialize save-all per kind across instances with a redis lock
	SaveLockEnabled bool `env:"SAVE_LOCK_ENABLED" env-default:"false"`
	// Save lock expiry
	SaveLockTTL time.Duration `env:"SAVE_LOCK_TTL" env-default:"5m"`

	// Publish sync events to kafka
	KafkaEnabled bool `env:"KAFKA_ENABLED" env-default:"false"`
	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic for sync events
	KafkaSyncTopic string `env:"KAFKA_SYNC_TOPIC" env-default:"fern-sync-events"`

	// Upload archive driver: none, memory or s3
	ArchiveDriver string `env:"ARCHIVE_DRIVER" env-default:"none"`
	// S3 bucket for uploads
	ArchiveS3Bucket string `env:"ARCHIVE_S3_BUCKET" env-default:""`
	// S3 region
	ArchiveS3Region string `env:"ARCHIVE_S3_REGION" env-default:"us-east-1"`
	// S3 endpoint override, for S3 compatible stores
	ArchiveS3Endpoint string `env:"ARCHIVE_S3_ENDPOINT" env-default:""`
	// Use path style addressing
	ArchiveS3PathStyle bool `env:"ARCHIVE_S3_PATH_STYLE" env-default:"false"`

	// Writer batch sizes per kind
	WriterBatchSizeRevenue   int `env:"WRITER_BATCH_SIZE_REVENUE" env-default:"500"`
	WriterBatchSizePurchase  int `env:"WRITER_BATCH_SIZE_PURCHASE" env-default:"500"`
	WriterBatchSizeInventory int `env:"WRITER_BATCH_SIZE_INVENTORY" env-default:"500"`
	WriterBatchSizeSupplier  int `env:"WRITER_BATCH_SIZE_SUPPLIER" env-default:"200"`
	WriterBatchSizeQuote     int `env:"WRITER_BATCH_SIZE_QUOTE" env-default:"200"`
	// Pause between batches
	WriterBatchDelay time.Duration `env:"WRITER_BATCH_DELAY" env-default:"300ms"`
	// Attempts per batch and per record
	WriterMaxAttempts int `env:"WRITER_MAX_ATTEMPTS" env-default:"3"`
	// First retry delay
	WriterInitialDelay time.Duration `env:"WRITER_INITIAL_DELAY" env-default:"500ms"`
	// Retry delay cap
	WriterMaxDelay time.Duration `env:"WRITER_MAX_DELAY" env-default:"5s"`
	// Backoff type: exponential, linear or constant
	WriterBackoff string `env:"WRITER_BACKOFF" env-default:"exponential"`

	// CSV delimiter; empty sniffs it
	IngestDelimiter string `env:"INGEST_DELIMITER" env-default:""`
	// Year for periods that carry only a month; 0 uses the current year
	IngestDefaultYear int `env:"INGEST_DEFAULT_YEAR" env-default:"0"`
	// Leading rows handed to the schema mapper
	IngestSampleSize int `env:"INGEST_SAMPLE_SIZE" env-default:"10"`

	// Enable OTLP tracing export (set to true to send traces to collector)
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads an optional .env file, then binds the environment onto Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.RemoteDriver {
	case "postgres", "rest", "none":
	default:
		return fmt.Errorf("invalid REMOTE_DRIVER %q", c.RemoteDriver)
	}
	switch c.CacheDriver {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("invalid CACHE_DRIVER %q", c.CacheDriver)
	}
	switch c.ArchiveDriver {
	case "none", "memory", "s3":
	default:
		return fmt.Errorf("invalid ARCHIVE_DRIVER %q", c.ArchiveDriver)
	}
	if c.RemoteDriver == "rest" && c.RestBaseURL == "" {
		return fmt.Errorf("REST_BASE_URL is required when REMOTE_DRIVER is rest")
	}
	if c.ArchiveDriver == "s3" && c.ArchiveS3Bucket == "" {
		return fmt.Errorf("ARCHIVE_S3_BUCKET is required when ARCHIVE_DRIVER is s3")
	}
	if len([]rune(c.IngestDelimiter)) > 1 {
		return fmt.Errorf("INGEST_DELIMITER must be a single character")
	}
	if _, err := retry.ParseBackoff(c.WriterBackoff); err != nil {
		return err
	}
	return nil
}

// WriterConfig builds the remote writer settings.
func (c Config) WriterConfig() writer.Config {
	backoff, _ := retry.ParseBackoff(c.WriterBackoff)
	return writer.Config{
		BatchSizes: map[models.Kind]int{
			models.KindRevenue:   c.WriterBatchSizeRevenue,
			models.KindPurchase:  c.WriterBatchSizePurchase,
			models.KindInventory: c.WriterBatchSizeInventory,
			models.KindSupplier:  c.WriterBatchSizeSupplier,
			models.KindQuote:     c.WriterBatchSizeQuote,
		},
		BatchDelay: c.WriterBatchDelay,
		Policy: retry.Policy{
			MaxAttempts:  c.WriterMaxAttempts,
			Backoff:      backoff,
			InitialDelay: c.WriterInitialDelay,
			MaxDelay:     c.WriterMaxDelay,
		},
	}
}

// Delimiter is the configured CSV delimiter, or 0 to sniff.
func (c Config) Delimiter() rune {
	for _, r := range c.IngestDelimiter {
		return r
	}
	return 0
}
