// Package config loads and validates the workspacex configuration: yaml
// file, then WORKSPACEX_* environment overrides on top of defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/workspacex/workspacex/internal/chunking"
	"github.com/workspacex/workspacex/internal/embed"
	"github.com/workspacex/workspacex/internal/logging"
	"github.com/workspacex/workspacex/internal/repository"
	"github.com/workspacex/workspacex/internal/rerank"
	"github.com/workspacex/workspacex/internal/vector"
)

// Storage backend names.
const (
	BackendLocal  = "local"
	BackendObject = "s3"
)

// Config is the complete workspacex configuration.
type Config struct {
	WorkspaceID string `yaml:"workspace_id" json:"workspace_id"`
	Name        string `yaml:"name" json:"name"`

	Storage    StorageConfig   `yaml:"storage" json:"storage"`
	Chunking   chunking.Config `yaml:"chunking" json:"chunking"`
	Embeddings embed.Config    `yaml:"embeddings" json:"embeddings"`
	Vector     vector.Config   `yaml:"vector" json:"vector"`
	Rerank     rerank.Config   `yaml:"rerank" json:"rerank"`
	Hybrid     HybridConfig    `yaml:"hybrid_search" json:"hybrid_search"`
	Logging    logging.Config  `yaml:"logging" json:"logging"`
}

// StorageConfig selects and configures the repository backend.
type StorageConfig struct {
	Backend   string                  `yaml:"backend" json:"backend"`
	LocalPath string                  `yaml:"local_path" json:"local_path"`
	Object    repository.ObjectConfig `yaml:"object" json:"object"`
}

// HybridConfig tunes the hybrid retrieval pipeline.
type HybridConfig struct {
	// Enabled gates retrieval: disabled hybrid search returns empty
	// results rather than an error.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// RerankEnabled hands candidates to the configured reranker.
	RerankEnabled bool `yaml:"rerank_enabled" json:"rerank_enabled"`

	// Threshold and Limit default search parameters.
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Limit     int     `yaml:"limit" json:"limit"`

	// PreN/NextN default chunk window sizes.
	PreN  int `yaml:"pre_n" json:"pre_n"`
	NextN int `yaml:"next_n" json:"next_n"`

	// MaxConcurrentEmbeds bounds in-flight chunk embedding calls.
	MaxConcurrentEmbeds int `yaml:"max_concurrent_embeds" json:"max_concurrent_embeds"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:   BackendLocal,
			LocalPath: "./workspace_data",
		},
		Chunking:   chunking.DefaultConfig(),
		Embeddings: embed.DefaultConfig(),
		Vector:     vector.DefaultConfig(),
		Rerank:     rerank.DefaultConfig(),
		Hybrid: HybridConfig{
			Enabled:             true,
			Threshold:           0.8,
			Limit:               10,
			PreN:                3,
			NextN:               3,
			MaxConcurrentEmbeds: 4,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load builds a config from defaults, an optional yaml file, and
// environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies WORKSPACEX_* environment variables, which take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WORKSPACEX_WORKSPACE_ID"); v != "" {
		c.WorkspaceID = v
	}
	if v := os.Getenv("WORKSPACEX_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("WORKSPACEX_STORAGE_PATH"); v != "" {
		c.Storage.LocalPath = v
	}
	if v := os.Getenv("WORKSPACEX_S3_ENDPOINT"); v != "" {
		c.Storage.Object.Endpoint = v
	}
	if v := os.Getenv("WORKSPACEX_S3_ACCESS_KEY"); v != "" {
		c.Storage.Object.AccessKeyID = v
	}
	if v := os.Getenv("WORKSPACEX_S3_SECRET_KEY"); v != "" {
		c.Storage.Object.SecretAccessKey = v
	}
	if v := os.Getenv("WORKSPACEX_S3_BUCKET"); v != "" {
		c.Storage.Object.Bucket = v
	}
	if v := os.Getenv("WORKSPACEX_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("WORKSPACEX_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("WORKSPACEX_EMBEDDINGS_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv("WORKSPACEX_EMBEDDINGS_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("WORKSPACEX_RERANK_PROVIDER"); v != "" {
		c.Rerank.Provider = v
	}
	if v := os.Getenv("WORKSPACEX_RERANK_BASE_URL"); v != "" {
		c.Rerank.BaseURL = v
	}
	if v := os.Getenv("WORKSPACEX_HYBRID_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Hybrid.Enabled = b
		}
	}
	if v := os.Getenv("WORKSPACEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate fails eagerly on configuration errors.
func (c *Config) Validate() error {
	if c.WorkspaceID == "" {
		return errors.New("config: workspace_id is required")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.LocalPath == "" {
			return errors.New("config: storage.local_path is required for local backend")
		}
	case BackendObject:
		if err := c.Storage.Object.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if c.Hybrid.Threshold < 0 || c.Hybrid.Threshold > 1 {
		return fmt.Errorf("config: hybrid threshold %v outside [0,1]", c.Hybrid.Threshold)
	}
	if c.Hybrid.MaxConcurrentEmbeds <= 0 {
		c.Hybrid.MaxConcurrentEmbeds = 4
	}
	return nil
}
