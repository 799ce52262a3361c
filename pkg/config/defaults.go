package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittostore/pkg/store"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved. Backend-specific defaults are handled by the backend
// implementations themselves.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyChunkDefaults(&cfg.Chunks)
	applyMetadataDefaults(&cfg.Metadata)
	applyGCDefaults(&cfg.GC)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.ChunkSizeBytes == 0 {
		cfg.ChunkSizeBytes = store.DefaultChunkSize
	}
}

func applyChunkDefaults(cfg *ChunkStoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
}

func applyMetadataDefaults(cfg *MetadataStoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = time.Hour
	}
}
