package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/liliang-cn/pdfqa/internal/domain"
	"github.com/liliang-cn/pdfqa/internal/settings"
)

// Config holds all configuration for pdfqa
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Server   ServerConfig   `mapstructure:"server"`
	Session  SessionConfig  `mapstructure:"session"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// BackendConfig holds the processing backend defaults
type BackendConfig struct {
	URL            string        `mapstructure:"url"`
	Temperature    float64       `mapstructure:"temperature"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	AskTimeout     time.Duration `mapstructure:"ask_timeout"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	APIKey       string   `mapstructure:"api_key"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// SessionConfig holds session lifetime configuration
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// UploadConfig holds document upload limits
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	Production bool   `mapstructure:"production"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load loads configuration from .env, file and environment
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("PDFQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("backend.url", "BACKEND_URL", "PDFQA_BACKEND_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind BACKEND_URL: %w", err)
	}

	// Read config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", domain.DefaultEndpointURL)
	v.SetDefault("backend.temperature", domain.DefaultTemperature)
	v.SetDefault("backend.process_timeout", "120s")
	v.SetDefault("backend.ask_timeout", "60s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("session.ttl", "1h")
	v.SetDefault("session.cleanup_interval", "10m")

	v.SetDefault("upload.max_bytes", 50<<20)

	v.SetDefault("database.path", "./data/pdfqa.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "./data/pdfqa.log")
	v.SetDefault("log.production", false)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Validate checks the startup backend defaults with the same rules the
// per-session configuration store applies.
func (c *Config) Validate() error {
	if err := settings.Validate(c.BackendDefaults()); err != nil {
		return fmt.Errorf("backend defaults: %w", err)
	}
	if c.Backend.ProcessTimeout <= 0 || c.Backend.AskTimeout <= 0 {
		return &domain.InvalidConfigError{Field: "backend timeouts", Reason: "must be positive"}
	}
	return nil
}

// BackendDefaults returns the configuration each new session starts with.
func (c *Config) BackendDefaults() domain.BackendConfiguration {
	return domain.BackendConfiguration{
		EndpointURL:        strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/"),
		RequestTemperature: c.Backend.Temperature,
	}
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
