// Package config provides configuration structures and validation for the
// payment vault services. It covers the HTTP server, the relational and
// audit stores, the mobile-money gateway credentials, the bank paybill
// notification secrets, and the retry scheduler parameters.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Each field represents
// a major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Kafka       KafkaConfig
	Gateway     GatewayConfig
	Paybill     PaybillConfig
	Retry       RetryConfig
	WorkerPool  WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration for the callback audit store
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig contains Kafka configuration for status event publishing
type KafkaConfig struct {
	Brokers           string
	StatusTopic       string // Topic for terminal disbursement status events
	DLQTopic          string // Fallback topic when the status topic is unreachable
	NumPartitions     int
	ReplicationFactor int
	MaxWait           time.Duration
}

// GatewayConfig contains the mobile-money disbursement gateway settings.
// Injected into the gateway client at construction time; nothing here is
// read from process-wide state.
type GatewayConfig struct {
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	InitiatorName      string
	SecurityCredential string
	ShortCode          string
	ResultURL          string // Callback URL for asynchronous results
	TimeoutURL         string // Callback URL for queue timeouts
	RequestTimeout     time.Duration
}

// PaybillConfig contains the bank paybill notification contract: the shared
// secret for the notification hash, the embedded credentials, and the
// account reference layout.
type PaybillConfig struct {
	ShortCode     string // Expected destination business short code
	Username      string
	Password      string
	SecretKey     string // Shared secret for the notification hash
	AccountNumber string // Fixed first half of the account reference
	Separator     string // Account reference separator, e.g. "#"
}

// RetryConfig contains retry scheduler configuration
type RetryConfig struct {
	ScanInterval      time.Duration // How often the retry scan runs
	BaseDelay         time.Duration // First backoff step
	MaxDelay          time.Duration // Backoff cap
	BatchSize         int           // Maximum rows claimed per scan
	DefaultMaxRetries int           // max_retries assigned to new disbursement requests
}

// WorkerPoolConfig contains worker pool configuration for retry dispatch
type WorkerPoolConfig struct {
	Size int
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.StatusTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_STATUS_TOPIC is required")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_MAX_WAIT must be greater than 0")
	}

	// Validate Gateway config
	if c.Gateway.BaseURL == "" {
		validationErrors = append(validationErrors, "GATEWAY_BASE_URL is required")
	}
	if c.Gateway.ShortCode == "" {
		validationErrors = append(validationErrors, "GATEWAY_SHORT_CODE is required")
	}
	if c.Gateway.ResultURL == "" {
		validationErrors = append(validationErrors, "GATEWAY_RESULT_URL is required")
	}
	if c.Gateway.TimeoutURL == "" {
		validationErrors = append(validationErrors, "GATEWAY_TIMEOUT_URL is required")
	}
	if c.Gateway.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "GATEWAY_REQUEST_TIMEOUT must be greater than 0")
	}

	// Validate Paybill config
	if c.Paybill.ShortCode == "" {
		validationErrors = append(validationErrors, "PAYBILL_SHORT_CODE is required")
	}
	if c.Paybill.SecretKey == "" {
		validationErrors = append(validationErrors, "PAYBILL_SECRET_KEY is required")
	}
	if c.Paybill.AccountNumber == "" {
		validationErrors = append(validationErrors, "PAYBILL_ACCOUNT_NUMBER is required")
	}
	if c.Paybill.Separator == "" {
		validationErrors = append(validationErrors, "PAYBILL_ACCOUNT_SEPARATOR is required")
	}

	// Validate Retry config
	if c.Retry.ScanInterval <= 0 {
		validationErrors = append(validationErrors, "RETRY_SCAN_INTERVAL must be greater than 0")
	}
	if c.Retry.BaseDelay <= 0 {
		validationErrors = append(validationErrors, "RETRY_BASE_DELAY must be greater than 0")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		validationErrors = append(validationErrors, "RETRY_MAX_DELAY must be at least RETRY_BASE_DELAY")
	}
	if c.Retry.BatchSize <= 0 {
		validationErrors = append(validationErrors, "RETRY_BATCH_SIZE must be greater than 0")
	}
	if c.Retry.DefaultMaxRetries <= 0 {
		validationErrors = append(validationErrors, "RETRY_DEFAULT_MAX_RETRIES must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
