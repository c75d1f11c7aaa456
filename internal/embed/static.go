package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"
)

// StaticDimensions is the default dimension of the hash-based embedder.
const StaticDimensions = 256

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates deterministic hash-based embeddings with no
// network or model dependency. Semantic quality is poor; it exists for
// tests and offline operation.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder creates a static embedder. dims <= 0 selects the
// default dimension.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, context.Canceled
	}

	vec := make([]float32, e.dims)
	tokens := tokenRegex.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dims] += 1.0
	}
	normalizeInPlace(vec)
	return vec, nil
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *StaticEmbedder) Dimensions() int { return e.dims }

func (e *StaticEmbedder) ModelName() string { return "static-hash" }

func (e *StaticEmbedder) Available(ctx context.Context) bool { return true }

func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
