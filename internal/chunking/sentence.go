package chunking

import (
	"context"
	"strings"
	"unicode"

	"github.com/workspacex/workspacex/internal/artifact"
)

// SentenceChunker packs whole sentences into chunks up to the configured
// size, carrying the trailing sentences of each chunk into the next one as
// overlap. Sentences longer than the chunk size become chunks of their own.
type SentenceChunker struct {
	cfg Config
}

// NewSentenceChunker validates cfg and builds a sentence chunker.
func NewSentenceChunker(cfg Config) (*SentenceChunker, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SentenceChunker{cfg: cfg}, nil
}

// Chunk splits the artifact's content on sentence boundaries.
func (c *SentenceChunker) Chunk(ctx context.Context, a *artifact.Artifact) ([]*artifact.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sentences := splitSentences(a.Content)
	if len(sentences) == 0 {
		return nil, nil
	}

	var texts []string
	var current []string
	currentLen := 0
	for _, s := range sentences {
		if currentLen > 0 && currentLen+len(s) > c.cfg.ChunkSize {
			texts = append(texts, strings.Join(current, " "))
			current, currentLen = c.carryOverlap(current)
		}
		current = append(current, s)
		currentLen += len(s)
	}
	if len(current) > 0 {
		texts = append(texts, strings.Join(current, " "))
	}

	return buildChunks(texts, a, c.cfg.ChunkOverlap), nil
}

// carryOverlap returns the trailing sentences of the finished chunk that fit
// inside the overlap budget, seeding the next chunk.
func (c *SentenceChunker) carryOverlap(sentences []string) ([]string, int) {
	if c.cfg.ChunkOverlap == 0 {
		return nil, 0
	}
	var kept []string
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		if total+len(sentences[i]) > c.cfg.ChunkOverlap {
			break
		}
		total += len(sentences[i])
		kept = append([]string{sentences[i]}, kept...)
	}
	return kept, total
}

// splitSentences breaks text on sentence-terminating punctuation followed by
// whitespace. Newlines also terminate a sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
		if isSentenceEnd(r) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

var _ Chunker = (*SentenceChunker)(nil)
