// Package chunking splits artifact content into ordered, overlapping chunk
// sequences. Implementations differ only in how they pick split points; all
// assign dense chunk indices starting at 0 and stamp owner identity into
// each chunk's metadata.
package chunking

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/workspacex/workspacex/internal/artifact"
)

// Defaults for chunking configuration.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	DefaultSeparator    = "\n"
)

// Config configures a chunker. Overlap must be strictly smaller than
// ChunkSize; constructors validate this.
type Config struct {
	Provider     string `yaml:"provider" json:"provider"`
	ChunkSize    int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" json:"chunk_overlap"`
	Separator    string `yaml:"separator" json:"separator"`
}

// DefaultConfig returns the default character-chunker configuration.
func DefaultConfig() Config {
	return Config{
		Provider:     "character",
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separator:    DefaultSeparator,
	}
}

// Validate checks configuration invariants shared by all providers.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunker produces an ordered chunk sequence from an artifact's content.
// Chunking is idempotent for identical content and configuration.
type Chunker interface {
	Chunk(ctx context.Context, a *artifact.Artifact) ([]*artifact.Chunk, error)
}

// Constructor builds a chunker from configuration.
type Constructor func(cfg Config) (Chunker, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register adds a chunker constructor under a provider name. Registration
// happens once at startup; later registrations for the same name replace
// the earlier one.
func Register(provider string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[provider] = ctor
}

// New resolves cfg.Provider against the registry and builds the chunker.
// Unknown providers are a configuration error, fatal at construction time.
func New(cfg Config) (Chunker, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported chunker provider %q (known: %v)", cfg.Provider, Providers())
	}
	return ctor(cfg)
}

// Providers lists registered provider names, sorted for stable error output.
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
	Register("character", func(cfg Config) (Chunker, error) { return NewCharacterChunker(cfg) })
	Register("sentence", func(cfg Config) (Chunker, error) { return NewSentenceChunker(cfg) })
	Register("markdown", func(cfg Config) (Chunker, error) { return NewMarkdownChunker(cfg) })
}

// buildChunks wraps split texts into Chunk values with dense indices and
// owner identity stamped into metadata.
func buildChunks(texts []string, a *artifact.Artifact, overlap int) []*artifact.Chunk {
	chunks := make([]*artifact.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, artifact.NewChunk(a, i, text, overlap))
	}
	return chunks
}
