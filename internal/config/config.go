package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	APNS      APNSConfig      `yaml:"apns"`
	JWT       JWTConfig       `yaml:"jwt"`
	Google    GoogleConfig    `yaml:"google"`
	Messaging MessagingConfig `yaml:"messaging"`
	Push      PushConfig      `yaml:"push"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port" env:"SERVER_PORT" validate:"min=1,max=65535"`
	Host string `yaml:"host" env:"SERVER_HOST"`
}

// StoreConfig selects the keyed-tree backend
type StoreConfig struct {
	Driver     string `yaml:"driver" env:"STORE_DRIVER" validate:"oneof=memory badger postgres"`
	BadgerPath string `yaml:"badger_path" env:"STORE_BADGER_PATH" validate:"required_if=Driver badger"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region    string `yaml:"region" env:"AWS_REGION"`
	S3Bucket  string `yaml:"s3_bucket" env:"AWS_S3_BUCKET"`
	AccessKey string `yaml:"access_key" env:"AWS_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"AWS_SECRET_KEY"`
	Endpoint  string `yaml:"endpoint" env:"AWS_ENDPOINT" validate:"omitempty,url"`
}

// APNSConfig holds Apple push configuration. An empty key file disables
// push delivery.
type APNSConfig struct {
	KeyFile    string `yaml:"key_file" env:"APNS_KEY_FILE"`
	KeyID      string `yaml:"key_id" env:"APNS_KEY_ID" validate:"required_with=KeyFile"`
	TeamID     string `yaml:"team_id" env:"APNS_TEAM_ID" validate:"required_with=KeyFile"`
	Topic      string `yaml:"topic" env:"APNS_TOPIC" validate:"required_with=KeyFile"`
	Production bool   `yaml:"production" env:"APNS_PRODUCTION"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret   string        `yaml:"secret" env:"JWT_SECRET" validate:"required"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL"`
}

// GoogleConfig enables Google sign-in when ClientID is set
type GoogleConfig struct {
	ClientID string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	JWKSURL  string `yaml:"jwks_url" env:"GOOGLE_JWKS_URL" validate:"omitempty,url"`
}

// MessagingConfig tunes the message channel selector
type MessagingConfig struct {
	Platform      string        `yaml:"platform" env:"MESSAGING_PLATFORM" validate:"oneof=web native constrained"`
	RelayURL      string        `yaml:"relay_url" env:"MESSAGING_RELAY_URL" validate:"omitempty,url"`
	RelayToken    string        `yaml:"relay_token" env:"MESSAGING_RELAY_TOKEN"`
	FallbackDelay time.Duration `yaml:"fallback_delay" env:"MESSAGING_FALLBACK_DELAY" validate:"gt=0"`
	HistoryLimit  int           `yaml:"history_limit" env:"MESSAGING_HISTORY_LIMIT" validate:"min=1"`
}

// PushConfig tunes push delivery
type PushConfig struct {
	QueueSize int `yaml:"queue_size" env:"PUSH_QUEUE_SIZE" validate:"min=1"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used for anything the file and the
// environment leave unset
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Host: "0.0.0.0"},
		Store:  StoreConfig{Driver: "memory"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		JWT: JWTConfig{TokenTTL: 365 * 24 * time.Hour},
		Messaging: MessagingConfig{
			Platform:      "native",
			FallbackDelay: 1500 * time.Millisecond,
			HistoryLimit:  50,
		},
		Push: PushConfig{QueueSize: 256},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file, then applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-section requirements
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Store.Driver == "postgres" && (c.Database.Host == "" || c.Database.DBName == "") {
		return fmt.Errorf("invalid configuration: postgres store needs database.host and database.dbname")
	}
	if c.AWS.S3Bucket != "" && c.AWS.Region == "" {
		return fmt.Errorf("invalid configuration: aws.region is required with aws.s3_bucket")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
