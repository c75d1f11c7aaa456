// Package rerank provides second-stage scorers applied to an already-narrowed
// candidate set: a from-scratch BM25 implementation, a client for external
// HTTP rerank services, and a pass-through.
package rerank

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Result references a document by its position in the candidate slice.
type Result struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Reranker scores candidate documents against a query. Results below
// threshold are excluded, the rest sorted by descending score and truncated
// to topN (topN <= 0 means no truncation).
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, threshold float64, topN int) ([]Result, error)
}

// Config selects and tunes a rerank provider.
type Config struct {
	Provider string        `yaml:"provider" json:"provider"`
	BaseURL  string        `yaml:"base_url" json:"base_url"`
	APIKey   string        `yaml:"api_key" json:"api_key"`
	Model    string        `yaml:"model" json:"model"`
	K1       float64       `yaml:"k1" json:"k1"`
	B        float64       `yaml:"b" json:"b"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns the default rerank configuration.
func DefaultConfig() Config {
	return Config{Provider: "bm25", K1: DefaultK1, B: DefaultB, Timeout: 30 * time.Second}
}

// Constructor builds a reranker from a config.
type Constructor func(cfg Config) (Reranker, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register adds a provider constructor.
func Register(provider string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[provider] = ctor
}

// New resolves cfg.Provider against the registry.
func New(cfg Config) (Reranker, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("rerank: unknown provider %q (have %v)", cfg.Provider, Providers())
	}
	return ctor(cfg)
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
	Register("bm25", func(cfg Config) (Reranker, error) { return NewBM25(cfg), nil })
	Register("http", func(cfg Config) (Reranker, error) { return NewHTTP(cfg) })
	Register("none", func(cfg Config) (Reranker, error) { return NoOp{}, nil })
}

// NoOp keeps the incoming order and scores everything 1.
type NoOp struct{}

func (NoOp) Rerank(ctx context.Context, query string, documents []string, threshold float64, topN int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(documents))
	for i := range documents {
		if topN > 0 && len(results) >= topN {
			break
		}
		results = append(results, Result{Index: i, Score: 1})
	}
	return results, nil
}

var _ Reranker = NoOp{}
