package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "openai", cfg.Provider.Default)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL.Duration)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	assert.ErrorContains(t, err, "JWT secret")
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 8080
environment = "production"

[database]
driver = "postgres"
uri = "postgres://localhost/cursorconnect"

[auth]
jwt_secret = "file-secret"
token_ttl = "24h"

[provider]
default = "gemini"

[provider.gemini]
model = "gemini-2.0-pro"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL.Duration)
	assert.Equal(t, "gemini", cfg.Provider.Default)
	assert.Equal(t, "gemini-2.0-pro", cfg.Provider.Gemini.Model)
	// Untouched sections keep their defaults.
	assert.Equal(t, "gpt-3.5-turbo", cfg.Provider.OpenAI.Model)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "9999")
	t.Setenv("DATABASE_URI", "other.db")
	t.Setenv("AI_PROVIDER", "gemini")
	t.Setenv("JWT_EXPIRE", "1h")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "other.db", cfg.Database.URI)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL.Duration)
	assert.Equal(t, "gemini", cfg.Provider.Default)
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("PORT", "not-a-number")

	_, err := Load("")
	assert.ErrorContains(t, err, "invalid PORT")
}

func TestResolveAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "abc123")

	key, err := ResolveAPIKey("env", "", "TEST_PROVIDER_KEY")
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)
}

func TestResolveAPIKeyMissingEnv(t *testing.T) {
	t.Setenv("TEST_PROVIDER_KEY", "")

	_, err := ResolveAPIKey("env", "", "TEST_PROVIDER_KEY")
	assert.Error(t, err)
}

func TestResolveAPIKeyFromConfig(t *testing.T) {
	key, err := ResolveAPIKey("config", "inline-key", "UNUSED")
	require.NoError(t, err)
	assert.Equal(t, "inline-key", key)

	_, err = ResolveAPIKey("config", "", "UNUSED")
	assert.Error(t, err)
}

func TestResolveAPIKeyUnknownSource(t *testing.T) {
	_, err := ResolveAPIKey("vault", "", "X")
	assert.ErrorContains(t, err, "unknown api_key_source")
}
