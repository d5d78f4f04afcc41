package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"groomly/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Booking       BookingConfig       `yaml:"booking"`
	Redis         RedisConfig         `yaml:"redis"`
	Snapshots     SnapshotConfig      `yaml:"snapshots"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Exports       ExportConfig        `yaml:"exports"`
	ShopsFile     string              `yaml:"shops_file"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BookingConfig struct {
	TxnMaxAttempts  int `yaml:"txn_max_attempts"`
	TxnRetryDelayMS int `yaml:"txn_retry_delay_ms"`
	TxnMaxDelayMS   int `yaml:"txn_max_delay_ms"`
	MaxAdvanceDays  int `yaml:"max_advance_days"`
}

// TxnRetryDelay is the base backoff between transaction retries.
func (b BookingConfig) TxnRetryDelay() time.Duration {
	return time.Duration(b.TxnRetryDelayMS) * time.Millisecond
}

// TxnMaxDelay caps the transaction retry backoff.
func (b BookingConfig) TxnMaxDelay() time.Duration {
	return time.Duration(b.TxnMaxDelayMS) * time.Millisecond
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SnapshotConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type NotificationsConfig struct {
	Enabled          bool `yaml:"enabled"`
	QueueSize        int  `yaml:"queue_size"`
	MaxRetries       int  `yaml:"max_retries"`
	RetryDelaySec    int  `yaml:"retry_delay_seconds"`
	RetryMaxDelaySec int  `yaml:"retry_max_delay_seconds"`
}

// RetryDelay is the initial delivery retry delay.
func (n NotificationsConfig) RetryDelay() time.Duration {
	return time.Duration(n.RetryDelaySec) * time.Second
}

// RetryMaxDelay caps the delivery retry backoff.
func (n NotificationsConfig) RetryMaxDelay() time.Duration {
	return time.Duration(n.RetryMaxDelaySec) * time.Second
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional outside local development
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Booking.TxnMaxAttempts < 1 {
		return errors.New("booking txn_max_attempts must be at least 1")
	}

	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth enabled but no api keys configured")
	}

	keys := make(map[string]bool)
	for _, k := range c.API.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key for client '%s' is empty", k.Name)
		}
		if keys[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		keys[k.Key] = true
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Booking.TxnMaxAttempts == 0 {
		c.Booking.TxnMaxAttempts = models.DefaultTxnMaxAttempts
	}
	if c.Booking.TxnRetryDelayMS == 0 {
		c.Booking.TxnRetryDelayMS = 10
	}
	if c.Booking.TxnMaxDelayMS == 0 {
		c.Booking.TxnMaxDelayMS = 250
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.DefaultMaxAdvanceDays
	}

	if c.Snapshots.TTLSeconds == 0 {
		c.Snapshots.TTLSeconds = models.DefaultSnapshotTTL
	}

	if c.Notifications.QueueSize == 0 {
		c.Notifications.QueueSize = models.WorkerQueueSize
	}
	if c.Notifications.MaxRetries == 0 {
		c.Notifications.MaxRetries = 5
	}
	if c.Notifications.RetryDelaySec == 0 {
		c.Notifications.RetryDelaySec = 2
	}
	if c.Notifications.RetryMaxDelaySec == 0 {
		c.Notifications.RetryMaxDelaySec = 60
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.Enabled && !c.API.HTTP.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}

	if c.ShopsFile == "" {
		c.ShopsFile = "configs/shops.yaml"
	}
}
