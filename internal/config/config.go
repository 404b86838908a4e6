// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, e.g. DB_HOST, SECRET_KEY)
//  2. Config file (./config.yaml)
//  3. Default values (matching the docker-compose development setup)
//
// Error Handling:
//   - Sentinel errors for Go-idiomatic checking with errors.Is()
//   - Wrapped with context using fmt.Errorf("%w: details", ErrXxx)
//
// Security: the database password and token secret are never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidDBHost indicates the database host is invalid.
	ErrInvalidDBHost = errors.New("invalid database host")

	// ErrInvalidDBPort indicates the database port is out of range.
	ErrInvalidDBPort = errors.New("invalid database port")

	// ErrInvalidDBName indicates the database name is invalid.
	ErrInvalidDBName = errors.New("invalid database name")

	// ErrInvalidPoolBounds indicates the connection pool bounds are invalid.
	ErrInvalidPoolBounds = errors.New("invalid connection pool bounds")

	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrMissingTokenSecret indicates the token signing secret is not set.
	ErrMissingTokenSecret = errors.New("missing token secret")
)

// defaultTokenSecret is the development fallback signing key. Anything
// deployed for real must override it via SECRET_KEY.
const defaultTokenSecret = "a_very_secret_key_that_should_be_changed"

// Config stores application configuration.
type Config struct {
	// Storage configuration (see storage.go for DSN builders)
	DBHost     string `mapstructure:"db_host"`
	DBPort     int    `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"` // SENSITIVE: never logged
	DBName     string `mapstructure:"db_name"`
	DBSSLMode  string `mapstructure:"db_ssl_mode"`
	DBMinConns int    `mapstructure:"db_min_conns"`
	DBMaxConns int    `mapstructure:"db_max_conns"`

	// AI configuration (Ollama provider)
	OllamaHost    string `mapstructure:"ollama_host"`
	ModelName     string `mapstructure:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model"`

	// Security configuration
	TokenSecret     string `mapstructure:"token_secret"` // SENSITIVE: never logged
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`

	// HTTP server configuration
	ListenAddr string `mapstructure:"listen_addr"`
}

// TokenTTL returns the access-token lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults", "config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual db_* settings when present.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
// Database defaults match the docker-compose development stack.
func setDefaults(v *viper.Viper) {
	v.SetDefault("db_host", "db")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "rag_user")
	v.SetDefault("db_password", "password123")
	v.SetDefault("db_name", "rag_db")
	v.SetDefault("db_ssl_mode", "disable")
	v.SetDefault("db_min_conns", 1)
	v.SetDefault("db_max_conns", 20)

	v.SetDefault("ollama_host", "http://ollama:11434")
	v.SetDefault("model_name", "llama3.1")
	v.SetDefault("embedder_model", "nomic-embed-text")

	v.SetDefault("token_secret", defaultTokenSecret)
	v.SetDefault("token_ttl_minutes", 30)

	v.SetDefault("listen_addr", ":8000")
}

// bindEnvVariables binds environment variables explicitly. Explicit binds
// keep the accepted environment surface documented in one place.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("db_host", "DB_HOST")
	mustBind("db_port", "DB_PORT")
	mustBind("db_user", "DB_USER")
	mustBind("db_password", "DB_PASSWORD")
	mustBind("db_name", "DB_NAME")
	mustBind("db_ssl_mode", "DB_SSLMODE")
	mustBind("db_min_conns", "DB_MIN_CONNS")
	mustBind("db_max_conns", "DB_MAX_CONNS")

	mustBind("ollama_host", "OLLAMA_HOST")
	mustBind("model_name", "MODEL_NAME")
	mustBind("embedder_model", "EMBEDDER_MODEL")

	mustBind("token_secret", "SECRET_KEY")
	mustBind("token_ttl_minutes", "TOKEN_TTL_MINUTES")

	mustBind("listen_addr", "LISTEN_ADDR")
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.DBHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidDBHost)
	}
	if c.DBPort < 1 || c.DBPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidDBPort, c.DBPort)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidDBName)
	}
	if c.DBMinConns < 1 || c.DBMaxConns < c.DBMinConns {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidPoolBounds, c.DBMinConns, c.DBMaxConns)
	}

	if c.OllamaHost == "" {
		return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.TokenSecret == "" {
		return fmt.Errorf("%w: set SECRET_KEY", ErrMissingTokenSecret)
	}
	if c.TokenSecret == defaultTokenSecret {
		slog.Warn("using default development token secret",
			"warning", "set SECRET_KEY for production deployments")
	}

	return nil
}
