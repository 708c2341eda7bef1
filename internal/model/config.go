package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr        string   `mapstructure:"addr" yaml:"addr"`
	BodyLimitMB int      `mapstructure:"body_limit_mb" yaml:"body_limit_mb"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	// ExposeErrors includes internal error details in 500 responses.
	ExposeErrors bool `mapstructure:"expose_errors" yaml:"expose_errors"`
}

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`
	JWKSURL  string `mapstructure:"jwks_url" yaml:"jwks_url"`
	Audience string `mapstructure:"audience" yaml:"audience"`
	Issuer   string `mapstructure:"issuer" yaml:"issuer"`
}

// ProductivityConfig holds focus session settings.
type ProductivityConfig struct {
	SessionSeconds int64 `mapstructure:"session_seconds" yaml:"session_seconds"`

	// Timezone is the IANA zone that defines calendar days. Empty means local.
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// ReconcileConfig controls the orphan sweep.
type ReconcileConfig struct {
	GraceMinutes int `mapstructure:"grace_minutes" yaml:"grace_minutes"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Auth         AuthConfig         `mapstructure:"auth" yaml:"auth"`
	Productivity ProductivityConfig `mapstructure:"productivity" yaml:"productivity"`
	Reconcile    ReconcileConfig    `mapstructure:"reconcile" yaml:"reconcile"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// Location resolves Productivity.Timezone.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Productivity.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Productivity.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Productivity.Timezone, err)
	}
	return loc, nil
}

// SessionDuration returns the configured focus session length.
func (c *AppConfig) SessionDuration() time.Duration {
	return time.Duration(c.Productivity.SessionSeconds) * time.Second
}

// ReconcileGrace returns how old an orphan must be before it is swept.
func (c *AppConfig) ReconcileGrace() time.Duration {
	return time.Duration(c.Reconcile.GraceMinutes) * time.Minute
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/todoplus/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "todoplus", "config.yaml")
}

// DefaultDBPath returns ~/.config/todoplus/todoplus.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "todoplus.db"
	}
	return filepath.Join(home, ".config", "todoplus", "todoplus.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":3001")
	v.SetDefault("server.body_limit_mb", 16)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.expose_errors", true)
	v.SetDefault("database.path", DefaultDBPath())
	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("productivity.session_seconds", DefaultSessionSeconds)
	v.SetDefault("productivity.timezone", "")
	v.SetDefault("reconcile.grace_minutes", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// bindEnv maps TODOPLUS_* variables onto every key, plus the variable
// names the original deployment used.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("TODOPLUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	legacy := map[string]string{
		"auth.jwks_url": "JWKS_URI",
		"auth.audience": "JWT_AUDIENCE",
		"auth.issuer":   "JWT_ISSUER",
	}
	for key, env := range legacy {
		prefixed := "TODOPLUS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("binding env for %s: %w", key, err)
		}
	}
	return nil
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// then applies environment overrides. A missing file (or an empty path)
// yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			_, isPathErr := err.(*os.PathError)
			_, isNotFound := err.(viper.ConfigFileNotFoundError)
			if !isPathErr && !isNotFound {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if port := os.Getenv("PORT"); port != "" && !addrConfigured(v) {
		cfg.Server.Addr = ":" + port
	}
	if os.Getenv("NODE_ENV") == "dev" {
		cfg.Auth.Disabled = true
	}
	if cfg.Productivity.SessionSeconds <= 0 {
		cfg.Productivity.SessionSeconds = DefaultSessionSeconds
	}

	return cfg, nil
}

// addrConfigured reports whether server.addr came from the file or from
// TODOPLUS_SERVER_ADDR rather than from the defaults.
func addrConfigured(v *viper.Viper) bool {
	if _, ok := os.LookupEnv("TODOPLUS_SERVER_ADDR"); ok {
		return true
	}
	return v.InConfig("server.addr")
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("database", cfg.Database)
	v.Set("auth", cfg.Auth)
	v.Set("productivity", cfg.Productivity)
	v.Set("reconcile", cfg.Reconcile)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
