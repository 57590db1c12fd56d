package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:            8080,
		DBPath:          "data/blog.db",
		JWTSecret:       "a-very-long-and-random-production-secret",
		TokenTTL:        time.Hour,
		CookieSecure:    true,
		PostPolicy:      "owner",
		TracingExporter: "stdout",
		Env:             "production",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(c *Config) {}, false},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
		{"empty db path", func(c *Config) { c.DBPath = " " }, true},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"unknown policy", func(c *Config) { c.PostPolicy = "everyone" }, true},
		{"admin policy", func(c *Config) { c.PostPolicy = "admin" }, false},
		{"unknown exporter", func(c *Config) { c.TracingExporter = "jaeger" }, true},
		{"zero token ttl", func(c *Config) { c.TokenTTL = 0 }, true},
		{"production default secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"production secret under 32 chars", func(c *Config) { c.JWTSecret = "0123456789abcdef0123" }, true},
		{"production insecure cookie", func(c *Config) { c.CookieSecure = false }, true},
		{"development allows default secret", func(c *Config) {
			c.Env = "development"
			c.JWTSecret = defaultJWTSecret
			c.CookieSecure = false
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "owner", c.PostPolicy)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", c.GitHubCallbackURL)
	assert.False(t, c.GitHubEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("POST_POLICY", "  ADMIN ")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("COOKIE_SECURE", "true")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, "admin", c.PostPolicy)
	assert.Equal(t, 2*time.Hour, c.TokenTTL)
	assert.True(t, c.CookieSecure)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("DB_PATH: /tmp/from-file.db\nLOG_LEVEL: debug\n"), 0o600)
	require.NoError(t, err)

	c, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-file.db", c.DBPath)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoad_MissingConfigFileIsFine(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.NoError(t, err)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Setenv("POST_POLICY", "anyone")

	_, err := Load()
	assert.Error(t, err)
}

func TestOrigins(t *testing.T) {
	c := Config{AllowedOrigins: " http://a.test/ ,,http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.Origins())
}
