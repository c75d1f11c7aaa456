package chunking

import (
	"context"
	"strings"

	"github.com/workspacex/workspacex/internal/artifact"
)

// MarkdownChunker splits markdown content on level 1-3 headings. Each chunk
// carries the heading path of its section as a prefix, so the retrieval unit
// keeps enough context to stand alone. Oversized sections fall back to the
// character chunker.
type MarkdownChunker struct {
	cfg      Config
	fallback *CharacterChunker
}

// NewMarkdownChunker validates cfg and builds a markdown chunker.
func NewMarkdownChunker(cfg Config) (*MarkdownChunker, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fallback, err := NewCharacterChunker(cfg)
	if err != nil {
		return nil, err
	}
	return &MarkdownChunker{cfg: cfg, fallback: fallback}, nil
}

// section is a heading-delimited region of the document.
type section struct {
	headings [3]string // active H1/H2/H3 titles
	body     []string
}

func (s *section) prefix() string {
	var b strings.Builder
	for level, h := range s.headings {
		if h == "" {
			continue
		}
		b.WriteString(strings.Repeat("#", level+1))
		b.WriteString(" ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}

// Chunk splits the artifact's markdown content by headers.
func (c *MarkdownChunker) Chunk(ctx context.Context, a *artifact.Artifact) ([]*artifact.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sections := splitSections(a.Content)
	var texts []string
	for _, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.body, "\n"))
		if body == "" {
			continue
		}
		text := sec.prefix() + body
		if len(text) <= c.cfg.ChunkSize {
			texts = append(texts, text)
			continue
		}
		// Oversized section: split the body, repeating the heading prefix.
		for _, part := range c.fallback.split(body) {
			texts = append(texts, sec.prefix()+part)
		}
	}

	return buildChunks(texts, a, c.cfg.ChunkOverlap), nil
}

// splitSections walks the document line by line, starting a new section at
// every H1-H3 heading. Deeper headings stay inside their section body.
func splitSections(content string) []section {
	var sections []section
	current := section{}

	flush := func() {
		if len(current.body) > 0 {
			sections = append(sections, current)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		level, title, ok := parseHeading(line)
		if !ok || level > 3 {
			current.body = append(current.body, line)
			continue
		}
		flush()
		headings := current.headings
		headings[level-1] = title
		for l := level; l < 3; l++ {
			headings[l] = ""
		}
		current = section{headings: headings}
	}
	flush()
	return sections
}

// parseHeading returns the level and title of an ATX heading line.
func parseHeading(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(trimmed) || trimmed[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(trimmed[level:]), true
}

var _ Chunker = (*MarkdownChunker)(nil)
