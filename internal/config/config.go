package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// MaxBatchCeiling is the hard upper bound for keys generated per request.
const MaxBatchCeiling = 1000

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Keys     KeysConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"5000"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/activation_keys.db"`
}

// AuthConfig holds admin bootstrap and password hashing configuration.
type AuthConfig struct {
	BootstrapAPIKey   string `env:"BOOTSTRAP_API_KEY"`
	BootstrapPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD" envDefault:"admin"`
	BcryptCost        int    `env:"BCRYPT_COST" envDefault:"10"`
}

// KeysConfig holds key generation defaults.
type KeysConfig struct {
	DefaultPrefix  string `env:"DEFAULT_KEY_PREFIX" envDefault:"ECP"`
	DefaultKeyType string `env:"DEFAULT_KEY_TYPE" envDefault:"month"`
	MaxBatchSize   int    `env:"MAX_BATCH_SIZE" envDefault:"1000"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}
	if err := env.Parse(&cfg.Keys); err != nil {
		return nil, fmt.Errorf("parsing keys config: %w", err)
	}
	if err := env.Parse(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("parsing logging config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsSQLite reports whether the configured driver is one of the SQLite drivers.
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Driver == "sqlite3" || c.Driver == "sqlite"
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite3", "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be one of sqlite3, sqlite, postgres (got %q)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	if c.Keys.MaxBatchSize < 1 || c.Keys.MaxBatchSize > MaxBatchCeiling {
		return fmt.Errorf("MAX_BATCH_SIZE must be between 1 and %d", MaxBatchCeiling)
	}
	if c.Keys.DefaultPrefix == "" {
		return fmt.Errorf("DEFAULT_KEY_PREFIX must not be empty")
	}

	if c.Auth.BootstrapPassword == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD must not be empty")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	return nil
}
