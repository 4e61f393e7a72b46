// Package config loads the single installation-wide configuration
// struct once at startup, the way internal/app/application.go's
// config.Load() call site does it: godotenv pre-loads a local .env
// for development, then viper binds environment variables and
// defaults onto a typed struct. No component reads the environment
// directly past this point (DESIGN NOTES: Global state).
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backend names a storage profile (spec.md 6.3).
type Backend string

const (
	BackendFilesystem Backend = "filesystem"
	BackendSQLite     Backend = "sqlite"
)

// IntegrityMode names an integrity-token scheme (spec.md 4.5).
type IntegrityMode string

const (
	IntegrityModeChain     IntegrityMode = "chain"
	IntegrityModeSignature IntegrityMode = "signature"
)

// Config is the resolved configuration for one installation.
type Config struct {
	// StorageRoot is the filesystem directory datasets are rooted
	// under, for both the filesystem backend's own trees and the
	// sqlite backend's per-dataset database files.
	StorageRoot string `mapstructure:"storage_root"`
	// Backend selects the persistence profile (spec.md 6.3).
	Backend Backend `mapstructure:"backend"`
	// IntegrityMode selects the per-event integrity scheme
	// (spec.md 4.5).
	IntegrityMode IntegrityMode `mapstructure:"integrity_mode"`
	// KeyringPath points at the Ed25519 key material file consulted
	// when IntegrityMode is "signature". Unused in chain mode.
	KeyringPath string `mapstructure:"keyring_path"`
	// DefaultPageSize is the page size used when a list request
	// supplies none (SUPPLEMENTED FEATURES; spec.md 6.1 requires
	// >= 32).
	DefaultPageSize int `mapstructure:"default_page_size"`
	// HTTPAddr is the bind address for the HTTP server.
	HTTPAddr string `mapstructure:"http_addr"`
	// LogLevel and Environment configure pkg/logger.
	LogLevel    string `mapstructure:"log_level"`
	Environment string `mapstructure:"environment"`
	// APIKeysPath points at a file mapping API keys to author
	// identifiers, consulted by the authentication middleware.
	APIKeysPath string `mapstructure:"api_keys_path"`
	// IntegritySweepCron is the cron schedule for the background
	// integrity-verification worker (SUPPLEMENTED FEATURES).
	IntegritySweepCron string `mapstructure:"integrity_sweep_cron"`
}

// Load reads .env (if present), then environment variables prefixed
// GONK_, applying defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("gonk")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage_root", "./data")
	v.SetDefault("backend", string(BackendFilesystem))
	v.SetDefault("integrity_mode", string(IntegrityModeChain))
	v.SetDefault("keyring_path", "")
	v.SetDefault("default_page_size", 50)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "production")
	v.SetDefault("api_keys_path", "./apikeys.json")
	v.SetDefault("integrity_sweep_cron", "0 */6 * * *")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendFilesystem, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	switch c.IntegrityMode {
	case IntegrityModeChain, IntegrityModeSignature:
	default:
		return fmt.Errorf("config: unknown integrity_mode %q", c.IntegrityMode)
	}
	if c.IntegrityMode == IntegrityModeSignature && c.KeyringPath == "" {
		return fmt.Errorf("config: keyring_path is required in signature integrity mode")
	}
	if c.DefaultPageSize < 32 {
		return fmt.Errorf("config: default_page_size must be >= 32, got %d", c.DefaultPageSize)
	}
	return nil
}
