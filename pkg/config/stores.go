package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittostore/pkg/chunk"
	chunkfs "github.com/marmos91/dittostore/pkg/chunk/fs"
	chunkmemory "github.com/marmos91/dittostore/pkg/chunk/memory"
	chunks3 "github.com/marmos91/dittostore/pkg/chunk/s3"
	"github.com/marmos91/dittostore/pkg/meta"
	metabadger "github.com/marmos91/dittostore/pkg/meta/badger"
	metamemory "github.com/marmos91/dittostore/pkg/meta/memory"
	"github.com/marmos91/dittostore/pkg/store"
)

// s3YAMLConfig represents S3 configuration loaded from YAML files.
type s3YAMLConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// NewStore builds a fully wired engine from configuration: both backends
// are created, initialized and composed into a store.Store.
func NewStore(ctx context.Context, cfg *Config) (*store.Store, error) {
	chunkStore, err := CreateChunkStore(ctx, cfg.Chunks)
	if err != nil {
		return nil, err
	}

	metaStore, err := CreateMetadataStore(ctx, cfg.Metadata)
	if err != nil {
		return nil, err
	}

	return store.New(chunkStore, metaStore, store.Options{
		ChunkSize: cfg.Store.ChunkSizeBytes,
	})
}

// CreateChunkStore creates and initializes a chunk store instance.
func CreateChunkStore(ctx context.Context, cfg ChunkStoreConfig) (chunk.Store, error) {
	var (
		s   chunk.Store
		err error
	)

	switch cfg.Type {
	case "memory":
		s = chunkmemory.NewMemoryChunkStore()
	case "filesystem":
		s, err = createFSChunkStore(cfg)
	case "s3":
		s, err = createS3ChunkStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown chunk store type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s chunk store: %w", cfg.Type, err)
	}
	return s, nil
}

// createFSChunkStore creates a filesystem-backed chunk store.
func createFSChunkStore(cfg ChunkStoreConfig) (chunk.Store, error) {
	var fsCfg struct {
		Path string `mapstructure:"path"`
	}
	if err := mapstructure.Decode(cfg.Filesystem, &fsCfg); err != nil {
		return nil, fmt.Errorf("invalid filesystem config: %w", err)
	}
	if fsCfg.Path == "" {
		return nil, fmt.Errorf("filesystem path is required")
	}

	return chunkfs.NewFSChunkStore(fsCfg.Path), nil
}

// createS3ChunkStore creates an S3-backed chunk store.
func createS3ChunkStore(ctx context.Context, cfg ChunkStoreConfig) (chunk.Store, error) {
	var yamlCfg s3YAMLConfig
	if err := mapstructure.Decode(cfg.S3, &yamlCfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}

	if yamlCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if yamlCfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	client, err := chunks3.NewS3Client(ctx, chunks3.ClientConfig{
		Endpoint:        yamlCfg.Endpoint,
		Region:          yamlCfg.Region,
		AccessKeyID:     yamlCfg.AccessKeyID,
		SecretAccessKey: yamlCfg.SecretAccessKey,
		ForcePathStyle:  yamlCfg.ForcePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return chunks3.NewS3ChunkStore(chunks3.Config{
		Client:    client,
		Bucket:    yamlCfg.Bucket,
		KeyPrefix: yamlCfg.KeyPrefix,
	})
}

// CreateMetadataStore creates and initializes a metadata store instance.
func CreateMetadataStore(ctx context.Context, cfg MetadataStoreConfig) (meta.Store, error) {
	switch cfg.Type {
	case "memory":
		s := metamemory.NewMemoryMetadataStore()
		if err := s.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize memory metadata store: %w", err)
		}
		return s, nil

	case "badger":
		var badgerCfg metabadger.Config
		if err := mapstructure.Decode(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}

		s, err := metabadger.NewBadgerMetadataStore(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger database: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}
