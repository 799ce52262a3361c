// Package config loads, defaults and validates the dittostore configuration,
// and builds configured store backends.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dittostore configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOSTORE_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// Each backend defines its own configuration type. The Chunks and Metadata
// sections carry a Type selector plus one map per backend; only the section
// matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Store contains engine-level settings
	Store StoreConfig `mapstructure:"store"`

	// Chunks specifies the chunk store type and type-specific configuration
	Chunks ChunkStoreConfig `mapstructure:"chunks"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataStoreConfig `mapstructure:"metadata"`

	// GC controls the background garbage collector
	GC GCConfig `mapstructure:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// StoreConfig contains engine-level settings.
type StoreConfig struct {
	// ChunkSizeBytes is the fixed chunk size. Part of the on-disk layout:
	// changing it on an existing store breaks seek arithmetic.
	ChunkSizeBytes int `mapstructure:"chunk_size_bytes" validate:"required,gt=0"`
}

// ChunkStoreConfig specifies chunk store configuration.
type ChunkStoreConfig struct {
	// Type specifies which chunk store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// MetadataStoreConfig specifies metadata store configuration.
type MetadataStoreConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// GCConfig controls the background garbage collector.
type GCConfig struct {
	// Enabled starts the background sweeper
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to sweep
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`

	// BatchSize is how many orphaned chunks to delete per batch
	BatchSize int `mapstructure:"batch_size" validate:"gte=0"`

	// DryRun logs what would be deleted without deleting
	DryRun bool `mapstructure:"dry_run"`

	// GracePeriod is the minimum age before an unreferenced hash row is
	// treated as orphaned
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"gte=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DITTOSTORE_ prefix with underscores.
	// Example: DITTOSTORE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is acceptable: defaults apply.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittostore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittostore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
