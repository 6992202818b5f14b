package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_HappyPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	tempConfigsSubDir := filepath.Join(tempDir, "configs")
	err = os.Mkdir(tempConfigsSubDir, 0755)
	require.NoError(t, err)

	testAppName := "TestApp"
	testPort := 9090
	testLogLevel := "debug"
	testSecret := "paybill-secret"

	envContent := fmt.Sprintf(
		"APP_NAME=%s\nSERVER_PORT=%d\nLOG_LEVEL=%s\nPAYBILL_SECRET_KEY=%s\n",
		testAppName, testPort, testLogLevel, testSecret,
	)
	envFilePath := filepath.Join(tempConfigsSubDir, "test_happy.env")
	err = os.WriteFile(envFilePath, []byte(envContent), 0644)
	require.NoError(t, err)

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	err = os.Chdir(tempDir)
	require.NoError(t, err)

	cfg, err := LoadConfig("test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testAppName, cfg.Application.Name)
	assert.Equal(t, testPort, cfg.Server.Port)
	assert.Equal(t, testLogLevel, cfg.Logging.Level)
	assert.Equal(t, testSecret, cfg.Paybill.SecretKey)

	// Defaults kept where the file is silent
	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "disbursement_status_events", cfg.Kafka.StatusTopic)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, 5*time.Minute, cfg.Retry.ScanInterval)
	assert.Equal(t, 5*time.Minute, cfg.Retry.BaseDelay)
	assert.Equal(t, 2*time.Hour, cfg.Retry.MaxDelay)
	assert.Equal(t, 3, cfg.Retry.DefaultMaxRetries)
	assert.Equal(t, "#", cfg.Paybill.Separator)
	assert.Equal(t, "774451", cfg.Paybill.AccountNumber)
	assert.Equal(t, 10, cfg.WorkerPool.Size)

	cfgWithName, err := LoadConfigWithName("configs/test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfgWithName)
	assert.Equal(t, testAppName, cfgWithName.Application.Name)

	cfgWithNameAndType, err := LoadConfigWithNameAndType("configs/test_happy", "env")
	require.NoError(t, err)
	require.NotNil(t, cfgWithNameAndType)
	assert.Equal(t, testAppName, cfgWithNameAndType.Application.Name)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test_defaults")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()
	require.NoError(t, os.Chdir(tempDir))

	cfg, err := LoadConfig("does_not_exist")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://sandbox.safaricom.co.ke", cfg.Gateway.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, 50, cfg.Retry.BatchSize)
}

func TestConfigValidate(t *testing.T) {
	newValid := func() *Config {
		return &Config{
			Application: ApplicationConfig{Env: "test", Name: "test"},
			Logging:     LoggingConfig{Level: "info"},
			Server: ServerConfig{
				Port:            8080,
				ShutdownTimeout: time.Second,
				ReadTimeout:     time.Second,
				WriteTimeout:    time.Second,
				IdleTimeout:     time.Second,
			},
			Postgres: PostgresConfig{
				URL:             "postgres://localhost/db",
				MaxConns:        10,
				MinConns:        2,
				ConnMaxLifetime: time.Hour,
				ConnMaxIdleTime: time.Minute,
			},
			MongoDB: MongoDBConfig{
				URI:             "mongodb://localhost:27017",
				Database:        "db",
				Timeout:         time.Second,
				MaxPoolSize:     10,
				MinPoolSize:     1,
				MaxConnIdleTime: time.Minute,
			},
			Kafka: KafkaConfig{
				Brokers:     "localhost:9092",
				StatusTopic: "events",
				MaxWait:     time.Second,
			},
			Gateway: GatewayConfig{
				BaseURL:        "https://sandbox.safaricom.co.ke",
				ShortCode:      "600000",
				ResultURL:      "http://localhost/result",
				TimeoutURL:     "http://localhost/timeout",
				RequestTimeout: time.Second,
			},
			Paybill: PaybillConfig{
				ShortCode:     "880100",
				SecretKey:     "secret",
				AccountNumber: "774451",
				Separator:     "#",
			},
			Retry: RetryConfig{
				ScanInterval:      time.Minute,
				BaseDelay:         time.Minute,
				MaxDelay:          time.Hour,
				BatchSize:         10,
				DefaultMaxRetries: 3,
			},
			WorkerPool: WorkerPoolConfig{Size: 5},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, newValid().validate())
	})

	t.Run("missing paybill secret", func(t *testing.T) {
		cfg := newValid()
		cfg.Paybill.SecretKey = ""
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PAYBILL_SECRET_KEY")
	})

	t.Run("max delay below base delay", func(t *testing.T) {
		cfg := newValid()
		cfg.Retry.MaxDelay = time.Second
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RETRY_MAX_DELAY")
	})

	t.Run("zero server port", func(t *testing.T) {
		cfg := newValid()
		cfg.Server.Port = 0
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SERVER_PORT")
	})
}
