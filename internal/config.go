package internal

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Storage       StorageConfig       `mapstructure:"storage" validate:"required"`
	Antivirus     AntivirusConfig     `mapstructure:"antivirus"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Idempotency   IdempotencyConfig   `mapstructure:"idempotency"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes" validate:"min=0"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" validate:"required,min=32"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
}

// StorageConfig describes the disks files can live on. DefaultDisk is the
// disk new uploads land on; quarantined files stay on the disk they were
// scanned on, under QuarantinePrefix.
type StorageConfig struct {
	DefaultDisk      string                `mapstructure:"default_disk" validate:"required"`
	QuarantinePrefix string                `mapstructure:"quarantine_prefix" validate:"required"`
	Disks            map[string]DiskConfig `mapstructure:"disks" validate:"required,min=1,dive"`
}

type DiskConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=local minio"`

	// local driver
	Root string `mapstructure:"root" validate:"required_if=Driver local"`

	// minio driver
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Driver minio"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Driver minio"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type AntivirusConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address" validate:"required_if=Enabled true"`
	Timeout  time.Duration `mapstructure:"timeout"`
	FailOpen bool          `mapstructure:"fail_open"`
}

type PipelineConfig struct {
	Workers       int `mapstructure:"workers" validate:"min=0"`
	QueueSize     int `mapstructure:"queue_size" validate:"min=0"`
	MaxAttempts   int `mapstructure:"max_attempts" validate:"min=0"`
	BaseBackoffMS int `mapstructure:"base_backoff_ms" validate:"min=0"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// RecordTTL returns the idempotency retention window, defaulting to 24h.
func (c IdempotencyConfig) RecordTTL() time.Duration {
	if c.TTL <= 0 {
		return 24 * time.Hour
	}
	return c.TTL
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if err := c.Server.validateOrigins(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database config: max_idle_conns cannot be greater than max_open_conns")
	}
	if _, ok := c.Storage.Disks[c.Storage.DefaultDisk]; !ok {
		return fmt.Errorf("storage config: default_disk %q is not declared under disks", c.Storage.DefaultDisk)
	}
	return nil
}

func (c *ServerConfig) validateOrigins() error {
	if c.AllowedOrigins == "" {
		return nil
	}
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			continue
		}
		if _, err := url.Parse(origin); err != nil {
			return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
		}
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}
