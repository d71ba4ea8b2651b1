// Package config loads the blog's settings.
//
// Sources are layered, later ones winning:
//
//  1. DefaultConfig
//  2. an optional YAML file (--config)
//  3. an optional .env file in the working directory
//  4. the process environment (BLOG_* variables, plus PORT)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/sakif/blog/internal/auth"
)

// Config is the complete blog configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Media    MediaConfig    `yaml:"media"`
	Auth     AuthConfig     `yaml:"auth"`
	GitHub   GitHubConfig   `yaml:"github"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MediaConfig controls uploaded image storage.
type MediaConfig struct {
	Dir            string `yaml:"dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// AuthConfig configures sessions and cookies.
type AuthConfig struct {
	// Secret signs session tokens. Required; generate with `openssl rand -hex 32`.
	Secret string `yaml:"secret"`
	// BrowserSessionTTL bounds logins made without "remember me".
	BrowserSessionTTL time.Duration `yaml:"browser_session_ttl"`
	// SecureCookies marks cookies HTTPS-only. Enable behind TLS.
	SecureCookies bool `yaml:"secure_cookies"`
	// BcryptCost is the password hashing work factor.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// GitHubConfig enables "Sign in with GitHub" when both credentials are set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults. Auth.Secret is left
// empty on purpose so a deployment cannot run with a shared default.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{Path: "data/blog.db"},
		Media: MediaConfig{
			Dir:            "data/media",
			MaxUploadBytes: 5 << 20,
		},
		Auth: AuthConfig{
			BrowserSessionTTL: 14 * 24 * time.Hour,
			BcryptCost:        12,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from every source. configPath and envFile
// may be empty; a missing envFile is ignored. lookup reads the environment
// (os.LookupEnv in production).
func Load(configPath, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = LoadFromFile(configPath); err != nil {
			return nil, err
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = vars
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	// the real environment wins over .env
	layered := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.ApplyEnv(layered); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a number", key, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}

	integer("PORT", &c.Server.Port)
	integer("BLOG_PORT", &c.Server.Port)
	str("BLOG_DB_PATH", &c.Database.Path)
	str("BLOG_MEDIA_DIR", &c.Media.Dir)
	if v, ok := lookup("BLOG_MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("BLOG_MAX_UPLOAD_BYTES: %q is not a number", v))
		} else {
			c.Media.MaxUploadBytes = n
		}
	}
	str("BLOG_SECRET", &c.Auth.Secret)
	duration("BLOG_BROWSER_SESSION_TTL", &c.Auth.BrowserSessionTTL)
	boolean("BLOG_SECURE_COOKIES", &c.Auth.SecureCookies)
	integer("BLOG_BCRYPT_COST", &c.Auth.BcryptCost)
	str("BLOG_GITHUB_CLIENT_ID", &c.GitHub.ClientID)
	str("BLOG_GITHUB_CLIENT_SECRET", &c.GitHub.ClientSecret)
	str("BLOG_GITHUB_CALLBACK_URL", &c.GitHub.CallbackURL)
	str("BLOG_LOG_LEVEL", &c.Log.Level)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Media.Dir == "" {
		errs = append(errs, errors.New("media.dir is required"))
	}
	if c.Media.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("media.max_upload_bytes must be positive"))
	}
	if len(c.Auth.Secret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("auth.secret must be at least %d characters (set BLOG_SECRET)", auth.MinSecretLength))
	}
	if c.Auth.BrowserSessionTTL <= 0 {
		errs = append(errs, errors.New("auth.browser_session_ttl must be positive"))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if (c.GitHub.ClientID == "") != (c.GitHub.ClientSecret == "") {
		errs = append(errs, errors.New("github.client_id and github.client_secret must be set together"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// GitHubEnabled reports whether GitHub sign-in should be mounted.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

// GitHubCallbackURL returns the configured callback or a localhost default.
func (c *Config) GitHubCallbackURL() string {
	if c.GitHub.CallbackURL != "" {
		return c.GitHub.CallbackURL
	}
	return fmt.Sprintf("http://localhost:%d/auth/github/callback/", c.Server.Port)
}

// LogLevel returns the slog level for Log.Level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q is not one of debug, info, warn, error", s)
}
