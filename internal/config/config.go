package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the registration server configuration
type Config struct {
	Port            string `envconfig:"PORT" default:"8080"`
	DBConn          string `envconfig:"DB_CONN" default:"host=localhost port=5436 user=test password=test dbname=infotelecom sslmode=disable"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"INFO"`
	AutoMigrate     bool   `envconfig:"AUTO_MIGRATE" default:"true"`
	PasswordStorage string `envconfig:"PASSWORD_STORAGE" default:"plain"`
	CORSOrigin      string `envconfig:"CORS_ORIGIN" default:"*"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SenderEmail  string `envconfig:"SENDER_EMAIL" default:"noreply@infotelecom.ru"`
	AdminEmail   string `envconfig:"ADMIN_EMAIL"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"infotelecom.events"`

	DigestSchedule  string `envconfig:"DIGEST_SCHEDULE" default:"0 9 * * *"`
	NotifyQueueSize int    `envconfig:"NOTIFY_QUEUE_SIZE" default:"100"`
}

// ClientConfig holds the form client configuration
type ClientConfig struct {
	APIBaseURL     string        `envconfig:"API_BASE_URL" default:"http://localhost/api"`
	APITimeout     time.Duration `envconfig:"API_TIMEOUT" default:"10s"`
	StorageBackend string        `envconfig:"STORAGE_BACKEND" default:"file"`
	StoragePath    string        `envconfig:"STORAGE_PATH" default:"localstorage.json"`
	StorageOrigin  string        `envconfig:"STORAGE_ORIGIN" default:"http://localhost"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"INFO"`
}

// NewConfig loads server configuration from environment variables
// and an optional .env file
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	cfg.PasswordStorage = strings.ToLower(cfg.PasswordStorage)
	if cfg.PasswordStorage != "plain" && cfg.PasswordStorage != "bcrypt" {
		return nil, fmt.Errorf("PASSWORD_STORAGE must be plain or bcrypt, got %q", cfg.PasswordStorage)
	}
	if cfg.NotifyQueueSize <= 0 {
		return nil, fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}

	return cfg, nil
}

// SMTPEnabled reports whether outgoing mail is configured
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

// NewClientConfig loads client configuration from environment variables
// and an optional .env file
func NewClientConfig() (*ClientConfig, error) {
	_ = godotenv.Load()

	cfg := &ClientConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.StorageBackend = strings.ToLower(cfg.StorageBackend)
	switch cfg.StorageBackend {
	case "file":
		if cfg.StoragePath == "" {
			return nil, fmt.Errorf("STORAGE_PATH is required")
		}
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required")
		}
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be file or redis, got %q", cfg.StorageBackend)
	}

	return cfg, nil
}
