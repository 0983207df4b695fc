package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the newsletter service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Application ApplicationConfig `yaml:"application"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Email       EmailConfig       `yaml:"email"`
	SES         SESConfig         `yaml:"ses"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AccessLog      bool     `yaml:"access_log"`
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ApplicationConfig holds settings that shape user-facing output.
type ApplicationConfig struct {
	// BaseURL is the public origin used to build confirmation links.
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds PostgreSQL connection settings. URL wins over the
// individual fields when set.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	DatabaseName string `yaml:"database_name"`
	RequireSSL   bool   `yaml:"require_ssl"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslMode := "disable"
	if c.RequireSSL {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DatabaseName,
		RawQuery: "sslmode=" + sslMode + "&connect_timeout=5",
	}
	return u.String()
}

// RedisConfig holds the optional Redis connection used for distributed locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// EmailConfig selects and configures the outgoing email provider.
type EmailConfig struct {
	// Provider is "postmark" (HTTP JSON API) or "ses".
	Provider           string `yaml:"provider"`
	BaseURL            string `yaml:"base_url"`
	Sender             string `yaml:"sender"`
	AuthorizationToken string `yaml:"authorization_token"`
	TimeoutMillis      int    `yaml:"timeout_ms"`
	MaxRetries         int    `yaml:"max_retries"`
}

// Timeout returns the per-send timeout.
func (c EmailConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

// SESConfig holds AWS SES credentials.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// ArchiveConfig selects where published newsletter issues are archived.
type ArchiveConfig struct {
	// Type is "local", "aws", or "none".
	Type      string `yaml:"type"`
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	TableName string `yaml:"table_name"`
	Region    string `yaml:"region"`
}

// WorkflowConfig tunes the subscription workflow.
type WorkflowConfig struct {
	TxTimeoutSeconds   int `yaml:"tx_timeout_seconds"`
	PublishLockSeconds int `yaml:"publish_lock_seconds"`
}

// TxTimeout bounds each storage transaction.
func (c WorkflowConfig) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutSeconds) * time.Second
}

// PublishLockTTL bounds how long a newsletter publish may hold its lock.
func (c WorkflowConfig) PublishLockTTL() time.Duration {
	return time.Duration(c.PublishLockSeconds) * time.Second
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether email addresses are masked in logs. Defaults to true.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Application.BaseURL == "" {
		cfg.Application.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	cfg.Application.BaseURL = strings.TrimRight(cfg.Application.BaseURL, "/")
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 3
	}
	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "postmark"
	}
	if cfg.Email.TimeoutMillis == 0 {
		cfg.Email.TimeoutMillis = 10000
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.Archive.Type == "" {
		cfg.Archive.Type = "none"
	}
	if cfg.Archive.LocalPath == "" {
		cfg.Archive.LocalPath = "./data/issues"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = cfg.SES.Region
	}
	if cfg.Workflow.TxTimeoutSeconds == 0 {
		cfg.Workflow.TxTimeoutSeconds = 5
	}
	if cfg.Workflow.PublishLockSeconds == 0 {
		cfg.Workflow.PublishLockSeconds = 300
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports settings the server cannot start without.
func (cfg *Config) Validate() error {
	if _, err := url.ParseRequestURI(cfg.Application.BaseURL); err != nil {
		return fmt.Errorf("application.base_url: %w", err)
	}
	if cfg.Email.Sender == "" {
		return fmt.Errorf("email.sender is required")
	}
	switch cfg.Email.Provider {
	case "postmark":
		if cfg.Email.BaseURL == "" {
			return fmt.Errorf("email.base_url is required for the postmark provider")
		}
	case "ses":
	default:
		return fmt.Errorf("email.provider %q is not supported (postmark, ses)", cfg.Email.Provider)
	}
	switch cfg.Archive.Type {
	case "none", "local":
	case "aws":
		if cfg.Archive.S3Bucket == "" || cfg.Archive.TableName == "" {
			return fmt.Errorf("archive.s3_bucket and archive.table_name are required for the aws archive")
		}
	default:
		return fmt.Errorf("archive.type %q is not supported (none, local, aws)", cfg.Archive.Type)
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file is read first if present, so secrets can live there locally
// and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		cfg.Application.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("EMAIL_BASE_URL"); v != "" {
		cfg.Email.BaseURL = v
	}
	if v := os.Getenv("EMAIL_AUTHORIZATION_TOKEN"); v != "" {
		cfg.Email.AuthorizationToken = v
	}
	if v := os.Getenv("SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
