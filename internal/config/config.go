package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment (and an
// optional .env file).
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogMode  string `env:"LOG_MODE" envDefault:"development"`

	Postgres   PostgresConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Classifier ClassifierConfig
	Session    SessionConfig
}

type PostgresConfig struct {
	DSN string `env:"DATABASE_URL" envDefault:"host=localhost user=user password=password dbname=supportchat port=5432 sslmode=disable"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-me"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"supportchat"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"72h"`
}

type ClassifierConfig struct {
	BaseURL string        `env:"CLASSIFIER_BASE_URL"`
	APIKey  string        `env:"CLASSIFIER_API_KEY"`
	Model   string        `env:"CLASSIFIER_MODEL" envDefault:"gpt-4o-mini"`
	Timeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"5s"`
}

type SessionConfig struct {
	EditWindow        time.Duration `env:"EDIT_WINDOW" envDefault:"24h"`
	ArchiveInterval   time.Duration `env:"ARCHIVE_SWEEP_INTERVAL" envDefault:"10m"`
	TypingTTL         time.Duration `env:"TYPING_TTL" envDefault:"10s"`
	SendBufferSize    int           `env:"SEND_BUFFER_SIZE" envDefault:"256"`
	PresenceMirrorTTL time.Duration `env:"PRESENCE_TTL" envDefault:"5m"`
}

// Load reads .env when present and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would make the session layer misbehave.
func (c *Config) Validate() error {
	if c.Classifier.Timeout <= 0 {
		return errors.New("CLASSIFIER_TIMEOUT must be positive")
	}
	if c.Session.EditWindow <= 0 {
		return errors.New("EDIT_WINDOW must be positive")
	}
	if c.Session.TypingTTL <= 0 {
		return errors.New("TYPING_TTL must be positive")
	}
	if c.Session.SendBufferSize <= 0 {
		return errors.New("SEND_BUFFER_SIZE must be positive")
	}
	return nil
}
