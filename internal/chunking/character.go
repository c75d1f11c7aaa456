package chunking

import (
	"context"
	"strings"

	"github.com/workspacex/workspacex/internal/artifact"
)

// CharacterChunker splits content into fixed-size windows with character
// overlap. Split points prefer the configured separator when one falls
// inside the tail of a window, so lines are not cut mid-way when avoidable.
type CharacterChunker struct {
	cfg Config
}

// NewCharacterChunker validates cfg and builds a character chunker.
func NewCharacterChunker(cfg Config) (*CharacterChunker, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Separator == "" {
		cfg.Separator = DefaultSeparator
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CharacterChunker{cfg: cfg}, nil
}

// Chunk splits the artifact's content into overlapping windows.
func (c *CharacterChunker) Chunk(ctx context.Context, a *artifact.Artifact) ([]*artifact.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	texts := c.split(a.Content)
	return buildChunks(texts, a, c.cfg.ChunkOverlap), nil
}

// split produces the window texts. The window advances by size-overlap each
// step; when a separator occurs in the last quarter of a window the cut is
// moved back to it.
func (c *CharacterChunker) split(content string) []string {
	if content == "" {
		return nil
	}
	size := c.cfg.ChunkSize
	if len(content) <= size {
		return []string{content}
	}

	step := size - c.cfg.ChunkOverlap
	var texts []string
	for start := 0; start < len(content); start += step {
		end := start + size
		if end >= len(content) {
			texts = append(texts, content[start:])
			break
		}
		// Prefer cutting at a separator near the window end, as long as
		// the shortened window still advances past the overlap.
		if idx := strings.LastIndex(content[start:end], c.cfg.Separator); idx > size*3/4 && idx+len(c.cfg.Separator) > c.cfg.ChunkOverlap {
			end = start + idx + len(c.cfg.Separator)
		}
		texts = append(texts, content[start:end])
		step = end - start - c.cfg.ChunkOverlap
	}
	return texts
}

var _ Chunker = (*CharacterChunker)(nil)
