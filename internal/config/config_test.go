package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UNIFY_AUTH_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("UNIFY_SERVER_PORT", "9090")
	t.Setenv("UNIFY_PROVIDERS_FACEBOOK_CLIENT_ID", "fb-id")
	t.Setenv("UNIFY_PROVIDERS_FACEBOOK_CLIENT_SECRET", "fb-secret")
	t.Setenv("UNIFY_PROVIDERS_HTTP_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "data/unify.db", cfg.Database.Path)
	assert.Equal(t, 720*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTTL)
	assert.Equal(t, 5*time.Second, cfg.Providers.HTTPTimeout)
	assert.True(t, cfg.Providers.Facebook.Enabled())
	assert.False(t, cfg.Providers.Twitter.Enabled())
	assert.Equal(t, "text", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: 8080},
			Auth:      AuthConfig{JWTSecret: "0123456789abcdef"},
			Providers: ProvidersConfig{HTTPTimeout: time.Second},
			Log:       LogConfig{Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero timeout", func(c *Config) { c.Providers.HTTPTimeout = 0 }, "http_timeout"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
