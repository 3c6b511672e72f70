// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Meridian components.
//
// Configuration is loaded from a single file specified by:
//   - MERIDIAN_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Meridian.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Store configures the persistent key store.
	Store StoreConfig `yaml:"store"`

	// Verification configures request signature verification.
	Verification VerificationConfig `yaml:"verification"`

	// Rotation configures key rotation handling.
	Rotation RotationConfig `yaml:"rotation"`

	// Snapshot configures keyring export and import.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Store        *StoreConfig        `yaml:"store,omitempty"`
	Verification *VerificationConfig `yaml:"verification,omitempty"`
	Rotation     *RotationConfig     `yaml:"rotation,omitempty"`
	Snapshot     *SnapshotConfig     `yaml:"snapshot,omitempty"`
	Logging      *LoggingConfig      `yaml:"logging,omitempty"`
}

// StoreConfig configures the persistent key store.
type StoreConfig struct {
	// Path is the SQLite database file holding key records.
	// Default: ${HOME}/.local/share/meridian/keys.db
	Path string `yaml:"path"`

	// PoolSize is the number of SQLite connections kept open.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// VerificationConfig configures request signature verification.
type VerificationConfig struct {
	// DefaultPolicy is the policy applied when a caller names none.
	// Default: standard
	DefaultPolicy string `yaml:"default_policy"`

	// PolicyFile is an optional JSONC file of additional policies.
	// Loaded at startup; builtin policy names cannot be shadowed.
	PolicyFile string `yaml:"policy_file"`

	// ClockSkew is the tolerated forward clock drift for signature
	// timestamps, as a Go duration string.
	// Default: 30s
	ClockSkew string `yaml:"clock_skew"`
}

// RotationConfig configures key rotation handling.
type RotationConfig struct {
	// MaxRequestAge is how long a signed rotation request stays
	// acceptable after it was created, as a Go duration string.
	// Default: 5m
	MaxRequestAge string `yaml:"max_request_age"`
}

// SnapshotConfig configures keyring export and import.
type SnapshotConfig struct {
	// Compression selects the snapshot payload compression.
	// Values: "none", "lz4", "zstd"
	// Default: zstd
	Compression string `yaml:"compression"`

	// SecretFile is the path to the file holding the snapshot
	// encryption secret. Required for export and import.
	SecretFile string `yaml:"secret_file"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: info (development), warn (production)
	Level string `yaml:"level"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultStore := filepath.Join(homeDir, ".local", "share", "meridian", "keys.db")

	return &Config{
		Environment: Development,
		Store: StoreConfig{
			Path:     defaultStore,
			PoolSize: 4,
		},
		Verification: VerificationConfig{
			DefaultPolicy: "standard",
			ClockSkew:     "30s",
		},
		Rotation: RotationConfig{
			MaxRequestAge: "5m",
		},
		Snapshot: SnapshotConfig{
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the MERIDIAN_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if MERIDIAN_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("MERIDIAN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("MERIDIAN_CONFIG environment variable not set; " +
			"set it to the path of your meridian.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: quieter logs unless the file says otherwise.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Store != nil {
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}

	if overrides.Verification != nil {
		if overrides.Verification.DefaultPolicy != "" {
			c.Verification.DefaultPolicy = overrides.Verification.DefaultPolicy
		}
		if overrides.Verification.PolicyFile != "" {
			c.Verification.PolicyFile = overrides.Verification.PolicyFile
		}
		if overrides.Verification.ClockSkew != "" {
			c.Verification.ClockSkew = overrides.Verification.ClockSkew
		}
	}

	if overrides.Rotation != nil {
		if overrides.Rotation.MaxRequestAge != "" {
			c.Rotation.MaxRequestAge = overrides.Rotation.MaxRequestAge
		}
	}

	if overrides.Snapshot != nil {
		if overrides.Snapshot.Compression != "" {
			c.Snapshot.Compression = overrides.Snapshot.Compression
		}
		if overrides.Snapshot.SecretFile != "" {
			c.Snapshot.SecretFile = overrides.Snapshot.SecretFile
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
	}
}

// pathVariable matches ${VAR} references in path values.
var pathVariable = regexp.MustCompile(`\$\{(\w+)\}`)

// expandVariables expands ${HOME} and similar references in path fields.
func (c *Config) expandVariables() {
	c.Store.Path = expandPath(c.Store.Path)
	c.Verification.PolicyFile = expandPath(c.Verification.PolicyFile)
	c.Snapshot.SecretFile = expandPath(c.Snapshot.SecretFile)
}

func expandPath(value string) string {
	return pathVariable.ReplaceAllStringFunc(value, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// validate rejects values that would fail later in confusing ways.
func (c *Config) validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.Store.PoolSize < 1 {
		return fmt.Errorf("store.pool_size must be at least 1, got %d", c.Store.PoolSize)
	}

	if _, err := time.ParseDuration(c.Verification.ClockSkew); err != nil {
		return fmt.Errorf("verification.clock_skew: %w", err)
	}
	if _, err := time.ParseDuration(c.Rotation.MaxRequestAge); err != nil {
		return fmt.Errorf("rotation.max_request_age: %w", err)
	}

	switch c.Snapshot.Compression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("unknown snapshot.compression %q", c.Snapshot.Compression)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}

	return nil
}

// VerificationClockSkew returns the parsed clock skew duration.
// Call only after a successful load; the value is validated there.
func (c *Config) VerificationClockSkew() time.Duration {
	d, _ := time.ParseDuration(c.Verification.ClockSkew)
	return d
}

// RotationMaxRequestAge returns the parsed rotation request age window.
// Call only after a successful load; the value is validated there.
func (c *Config) RotationMaxRequestAge() time.Duration {
	d, _ := time.ParseDuration(c.Rotation.MaxRequestAge)
	return d
}
