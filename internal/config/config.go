// Package config loads service configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerAddress  = ":8080"
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultGenTimeout     = 90 * time.Second
	defaultPublishTimeout = 30 * time.Second
	defaultRetryDelay     = 15 * time.Second
	defaultMaxAttempts    = 3
	defaultMaxRetries     = 3
	defaultConcurrency    = 4
	defaultPollInterval   = 5 * time.Second
	defaultWorkerBatch    = 25
	defaultLeaseTTL       = 2 * time.Minute
	defaultCooldownDays   = 30
	defaultRecycleBatch   = 50
	defaultRecycleCron    = "0 2 * * *"
)

type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Generator GeneratorConfig `yaml:"generator"`
	Publish   PublishConfig   `yaml:"publish"`
	Recycling RecyclingConfig `yaml:"recycling"`
	Worker    WorkerConfig    `yaml:"worker"`
	Publer    PublerConfig    `yaml:"publer"`
}

type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GeneratorConfig bounds calls into the AI caption generator.
type GeneratorConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	ImageModel string        `yaml:"image_model"` // empty disables image generation
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"` // reject -> regenerate budget
}

// PublishConfig controls the per-platform fan-out.
type PublishConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RecyclingConfig controls the periodic republish-after-cooldown sweep.
type RecyclingConfig struct {
	CooldownDays int    `yaml:"cooldown_days"`
	Schedule     string `yaml:"schedule"` // cron expression
	BatchSize    int    `yaml:"batch_size"`
}

type WorkerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	Concurrency  int           `yaml:"concurrency"`
	LeaseTTL     time.Duration `yaml:"lease_ttl"`
}

// PublerConfig holds credentials for the third-party scheduling API.
type PublerConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	WorkspaceID string        `yaml:"workspace_id"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Load reads configuration from path. A missing file is not an error: the
// service can run on defaults plus environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
				return nil, fmt.Errorf("parse config: %w", unmarshalErr)
			}
		case os.IsNotExist(err):
			// Fall through to defaults + env.
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Publish.MaxAttempts <= 0 {
		return fmt.Errorf("publish.max_attempts must be positive, got %d", c.Publish.MaxAttempts)
	}
	if c.Generator.MaxRetries < 0 {
		return fmt.Errorf("generator.max_retries must not be negative, got %d", c.Generator.MaxRetries)
	}
	if c.Recycling.CooldownDays <= 0 {
		return fmt.Errorf("recycling.cooldown_days must be positive, got %d", c.Recycling.CooldownDays)
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive, got %v", c.Worker.PollInterval)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultServerAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "gopost"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = defaultGenTimeout
	}
	if cfg.Generator.MaxRetries == 0 {
		cfg.Generator.MaxRetries = defaultMaxRetries
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "openai/gpt-4-turbo-preview"
	}

	if cfg.Publish.MaxAttempts == 0 {
		cfg.Publish.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Publish.RetryDelay == 0 {
		cfg.Publish.RetryDelay = defaultRetryDelay
	}
	if cfg.Publish.Concurrency == 0 {
		cfg.Publish.Concurrency = defaultConcurrency
	}
	if cfg.Publish.Timeout == 0 {
		cfg.Publish.Timeout = defaultPublishTimeout
	}

	if cfg.Recycling.CooldownDays == 0 {
		cfg.Recycling.CooldownDays = defaultCooldownDays
	}
	if cfg.Recycling.Schedule == "" {
		cfg.Recycling.Schedule = defaultRecycleCron
	}
	if cfg.Recycling.BatchSize == 0 {
		cfg.Recycling.BatchSize = defaultRecycleBatch
	}

	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = defaultPollInterval
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = defaultWorkerBatch
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = defaultConcurrency
	}
	if cfg.Worker.LeaseTTL == 0 {
		cfg.Worker.LeaseTTL = defaultLeaseTTL
	}

	if cfg.Publer.Timeout == 0 {
		cfg.Publer.Timeout = defaultPublishTimeout
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("GOPOST_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}

	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.DBName = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		cfg.Generator.Model = v
	}
	if v := os.Getenv("OPENROUTER_IMAGE_MODEL"); v != "" {
		cfg.Generator.ImageModel = v
	}
	if v := os.Getenv("PUBLER_API_KEY"); v != "" {
		cfg.Publer.APIKey = v
	}
	if v := os.Getenv("PUBLER_WORKSPACE_ID"); v != "" {
		cfg.Publer.WorkspaceID = v
	}
}

// parseBool accepts the common truthy spellings: "true", "1", "yes".
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
