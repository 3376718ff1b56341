// Package config holds the application configuration, loaded from an
// optional TOML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Provider ProviderConfig `toml:"provider"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port          int    `toml:"port"`
	Environment   string `toml:"environment"`
	AllowedOrigin string `toml:"allowed_origin"`
	// GenerateRPM bounds how many generate requests a single user may
	// issue per minute. Zero disables rate limiting.
	GenerateRPM int `toml:"generate_rpm"`
}

// DatabaseConfig selects the history store backend.
// Driver is one of "sqlite", "postgres", "mysql".
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	URI    string `toml:"uri"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

// ProviderConfig holds settings for completion provider selection.
type ProviderConfig struct {
	Default string        `toml:"default"`
	OpenAI  VariantConfig `toml:"openai"`
	Gemini  VariantConfig `toml:"gemini"`
}

// VariantConfig holds settings for one provider variant.
type VariantConfig struct {
	Model        string `toml:"model"`
	BaseURL      string `toml:"base_url"`
	APIKeySource string `toml:"api_key_source"`
	APIKey       string `toml:"api_key"`
}

// Duration lets TOML and env values carry durations like "720h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns a Config populated with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          5000,
			Environment:   "development",
			AllowedOrigin: "http://localhost:5173",
			GenerateRPM:   30,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			URI:    "cursorconnect.db",
		},
		Auth: AuthConfig{
			JWTSecret: "",
			TokenTTL:  Duration{30 * 24 * time.Hour},
		},
		Provider: ProviderConfig{
			Default: "openai",
			OpenAI: VariantConfig{
				Model:        "gpt-3.5-turbo",
				BaseURL:      "https://api.openai.com/v1",
				APIKeySource: "env",
			},
			Gemini: VariantConfig{
				Model:        "gemini-2.0-flash",
				BaseURL:      "https://generativelanguage.googleapis.com/v1beta",
				APIKeySource: "env",
			},
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, and
// environment variables, in increasing order of precedence. An empty path
// skips the file step.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("no JWT secret configured: set JWT_SECRET or auth.jwt_secret")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("NODE_ENV"); v != "" {
		cfg.Server.Environment = v
	}
	if v := os.Getenv("ALLOWED_ORIGIN"); v != "" {
		cfg.Server.AllowedOrigin = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URI"); v != "" {
		cfg.Database.URI = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("JWT_EXPIRE"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_EXPIRE %q: %w", v, err)
		}
		cfg.Auth.TokenTTL = Duration{ttl}
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.Provider.Default = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Provider.OpenAI.Model = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Provider.Gemini.Model = v
	}
	return nil
}
