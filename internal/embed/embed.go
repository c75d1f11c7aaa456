// Package embed provides embedding providers behind a single Embedder
// interface: HTTP clients for Ollama and OpenAI-compatible services, an LRU
// caching wrapper, and a deterministic hash-based embedder for tests.
package embed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Defaults applied when the config leaves fields zero.
const (
	DefaultBatchSize  = 32
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3
	DefaultCacheSize  = 1000
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config selects and tunes an embedding provider.
type Config struct {
	Provider   string        `yaml:"provider" json:"provider"`
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	APIKey     string        `yaml:"api_key" json:"api_key"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
}

// DefaultConfig returns the default embedding configuration.
func DefaultConfig() Config {
	return Config{
		Provider:   "ollama",
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		CacheSize:  DefaultCacheSize,
	}
}

// Constructor builds an embedder from a config.
type Constructor func(cfg Config) (Embedder, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register adds a provider constructor. Later registrations win, which lets
// tests swap in fakes.
func Register(provider string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[provider] = ctor
}

// New resolves cfg.Provider against the registry and wraps the result in an
// LRU cache unless caching is disabled with a negative CacheSize.
func New(cfg Config) (Embedder, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("embed: unknown provider %q (have %v)", cfg.Provider, Providers())
	}
	e, err := ctor(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize < 0 {
		return e, nil
	}
	return NewCachedEmbedder(e, cfg.CacheSize), nil
}

// Providers lists the registered provider names, sorted.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("ollama", func(cfg Config) (Embedder, error) { return NewOllamaEmbedder(cfg) })
	Register("openai", func(cfg Config) (Embedder, error) { return NewOpenAIEmbedder(cfg) })
	Register("static", func(cfg Config) (Embedder, error) { return NewStaticEmbedder(cfg.Dimensions), nil })
}
