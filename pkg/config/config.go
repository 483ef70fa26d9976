// Package config loads the destination configuration file.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort             = 3307
	DefaultDatabase         = "default"
	DefaultUsername         = "root"
	DefaultBufferSizeBytes  = 128 * 1024 * 1024
	DefaultStatementTimeout = 300
	DefaultUploadTimeout    = 600
)

// Config holds all configuration for the destination.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLS      bool   `yaml:"tls"`

	BufferSizeBytes         int64  `yaml:"buffer_size_bytes"`
	StatementTimeoutSeconds int    `yaml:"statement_timeout_seconds"`
	UploadTimeoutSeconds    int    `yaml:"upload_timeout_seconds"`
	TmpDir                  string `yaml:"tmp_dir"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`

	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the optional Kafka transport.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	InputTopic    string   `yaml:"input_topic"`
	StateTopic    string   `yaml:"state_topic"`
	ConsumerGroup string   `yaml:"consumer_group"`
	StartOffset   string   `yaml:"start_offset"`
}

// Load reads a YAML or JSON configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration bytes, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.BufferSizeBytes == 0 {
		cfg.BufferSizeBytes = DefaultBufferSizeBytes
	}
	if cfg.StatementTimeoutSeconds == 0 {
		cfg.StatementTimeoutSeconds = DefaultStatementTimeout
	}
	if cfg.UploadTimeoutSeconds == 0 {
		cfg.UploadTimeoutSeconds = DefaultUploadTimeout
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.TempDir()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.BufferSizeBytes < 0 {
		return fmt.Errorf("buffer_size_bytes must be positive, got %d", c.BufferSizeBytes)
	}
	if c.StatementTimeoutSeconds < 0 || c.UploadTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Kafka.InputTopic != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.input_topic requires kafka.brokers")
	}
	if c.Kafka.StateTopic != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.state_topic requires kafka.brokers")
	}
	return nil
}

// DSN renders a go-sql-driver/mysql DSN for Databend's MySQL handler.
func (c *Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	if c.TLS {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN()
}

// StatementTimeout bounds every statement sent to the destination.
func (c *Config) StatementTimeout() time.Duration {
	return time.Duration(c.StatementTimeoutSeconds) * time.Second
}

// UploadTimeout bounds every single upload attempt.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.UploadTimeoutSeconds) * time.Second
}

// Level maps LogLevel onto a slog level.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
