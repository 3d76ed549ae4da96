// Package config loads service configuration from an optional file and the
// environment. Environment variables take precedence over file values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConnection is the name of the connection string used by the
// warehouse repository.
const DefaultConnection = "Default"

// Config groups the service configuration.
type Config struct {
	App      AppConfig
	Log      LogConfig
	HTTP     HTTPConfig
	DB       DBConfig
	Auth     AuthConfig
	Receipts ReceiptsConfig
	Shutdown ShutdownConfig

	connectionStrings map[string]string
}

// AppConfig holds general application settings.
type AppConfig struct {
	Env  string // development, production
	Name string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DBConfig holds connection pool sizing.
type DBConfig struct {
	MaxConns int32
	MinConns int32
}

// AuthConfig holds bearer-token settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ReceiptsConfig controls stock-receipt persistence.
type ReceiptsConfig struct {
	// Atomic wraps the order lookup, price lookup and insert in one transaction.
	Atomic bool
}

// ShutdownConfig holds graceful shutdown settings.
type ShutdownConfig struct {
	Timeout time.Duration
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// ConnectionString returns the named connection string (case-insensitive).
func (c *Config) ConnectionString(name string) (string, error) {
	dsn, ok := c.connectionStrings[strings.ToLower(name)]
	if !ok || dsn == "" {
		return "", fmt.Errorf("connection string %q is not configured", name)
	}
	return dsn, nil
}

// Load reads configuration from config.yaml (. or ./config) when present, then
// from the environment. Nested keys map to env vars with "_" separators,
// e.g. connectionStrings.default -> CONNECTIONSTRINGS_DEFAULT.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.name", "stockflow")
	v.SetDefault("log.level", "info")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readTimeout", 15*time.Second)
	v.SetDefault("http.writeTimeout", 30*time.Second)
	v.SetDefault("db.maxConns", 25)
	v.SetDefault("db.minConns", 2)
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.issuer", "stockflow")
	v.SetDefault("receipts.atomic", true)
	v.SetDefault("shutdown.timeout", 30*time.Second)
	v.SetDefault("connectionStrings.default", "")
	v.SetDefault("database_url", "")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Name: v.GetString("app.name"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		HTTP: HTTPConfig{
			Port:         v.GetInt("http.port"),
			ReadTimeout:  v.GetDuration("http.readTimeout"),
			WriteTimeout: v.GetDuration("http.writeTimeout"),
		},
		DB: DBConfig{
			MaxConns: v.GetInt32("db.maxConns"),
			MinConns: v.GetInt32("db.minConns"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwtSecret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Receipts: ReceiptsConfig{
			Atomic: v.GetBool("receipts.atomic"),
		},
		Shutdown: ShutdownConfig{
			Timeout: v.GetDuration("shutdown.timeout"),
		},
		connectionStrings: make(map[string]string),
	}

	for name, dsn := range v.GetStringMapString("connectionStrings") {
		cfg.connectionStrings[strings.ToLower(name)] = dsn
	}
	// Env override for the default connection, then the conventional DATABASE_URL.
	if dsn := v.GetString("connectionStrings.default"); dsn != "" {
		cfg.connectionStrings["default"] = dsn
	}
	if cfg.connectionStrings["default"] == "" {
		cfg.connectionStrings["default"] = v.GetString("database_url")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values.
func (c *Config) Validate() error {
	if _, err := c.ConnectionString(DefaultConnection); err != nil {
		return fmt.Errorf("%w (set CONNECTIONSTRINGS_DEFAULT or DATABASE_URL)", err)
	}
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("http.port must be positive")
	}
	if c.DB.MaxConns <= 0 {
		return fmt.Errorf("db.maxConns must be positive")
	}
	if c.DB.MinConns < 0 || c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("db.minConns must be between 0 and db.maxConns")
	}
	if c.Shutdown.Timeout <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}
	return nil
}
