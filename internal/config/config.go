// Package config loads the server configuration.
//
// SOURCES, lowest to highest precedence:
//  1. Defaults set in setDefaults
//  2. config.yaml in ".", "./config" or "/etc/unify" (optional)
//  3. A .env file in the working directory (optional, loaded into the environment)
//  4. UNIFY_-prefixed environment variables, e.g. UNIFY_AUTH_JWT_SECRET
//     for auth.jwt_secret
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Cache     CacheConfig     `mapstructure:"cache"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PublicURL is the web client's URL, used for links in emails.
	PublicURL string `mapstructure:"public_url"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds session and account-flow token settings.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	ResetTTL      time.Duration `mapstructure:"reset_ttl"`
	VerifyTTL     time.Duration `mapstructure:"verify_ttl"`
	RequestSecret time.Duration `mapstructure:"request_secret_ttl"`
}

// OAuthApp is an OAuth 2.0 client registration.
type OAuthApp struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// Enabled reports whether the app has credentials.
func (a OAuthApp) Enabled() bool {
	return a.ClientID != "" && a.ClientSecret != ""
}

// TwitterApp is the OAuth 1.0a consumer registration.
type TwitterApp struct {
	ConsumerKey    string `mapstructure:"consumer_key"`
	ConsumerSecret string `mapstructure:"consumer_secret"`
	CallbackURL    string `mapstructure:"callback_url"`
}

// Enabled reports whether the consumer has credentials.
func (a TwitterApp) Enabled() bool {
	return a.ConsumerKey != "" && a.ConsumerSecret != ""
}

// ProvidersConfig holds the social provider registrations.
type ProvidersConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	Facebook    OAuthApp      `mapstructure:"facebook"`
	Instagram   OAuthApp      `mapstructure:"instagram"`
	Google      OAuthApp      `mapstructure:"google"`
	Twitter     TwitterApp    `mapstructure:"twitter"`
}

// CacheConfig selects the cache backend. An empty RedisURL means in-process.
type CacheConfig struct {
	RedisURL  string        `mapstructure:"redis_url"`
	SearchTTL time.Duration `mapstructure:"search_ttl"`
}

// SMTPConfig configures outbound mail. An empty Host logs emails instead.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLSMode  string `mapstructure:"tls_mode"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

// envKeys lists every key that can come from the environment. AutomaticEnv
// only sees keys viper already knows about, and nested keys without a
// default are unknown until bound.
var envKeys = []string{
	"auth.jwt_secret",
	"providers.facebook.client_id", "providers.facebook.client_secret", "providers.facebook.redirect_url",
	"providers.instagram.client_id", "providers.instagram.client_secret", "providers.instagram.redirect_url",
	"providers.google.client_id", "providers.google.client_secret", "providers.google.redirect_url",
	"providers.twitter.consumer_key", "providers.twitter.consumer_secret", "providers.twitter.callback_url",
	"cache.redis_url",
	"smtp.host", "smtp.username", "smtp.password", "smtp.from",
}

// Load reads configuration from defaults, an optional config file, an
// optional .env file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/unify")

	v.SetEnvPrefix("UNIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.public_url", "http://localhost:3000")

	v.SetDefault("database.path", "data/unify.db")

	v.SetDefault("auth.session_ttl", "720h")
	v.SetDefault("auth.reset_ttl", "1h")
	v.SetDefault("auth.verify_ttl", "72h")
	v.SetDefault("auth.request_secret_ttl", "15m")

	v.SetDefault("providers.http_timeout", "15s")

	v.SetDefault("cache.search_ttl", "30m")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.tls_mode", "auto")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters (set UNIFY_AUTH_JWT_SECRET)"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Providers.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("providers.http_timeout must be positive"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
