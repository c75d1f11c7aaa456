package artifact

import "errors"

// Default search parameters, applied when a query leaves them zero.
const (
	DefaultSearchLimit     = 10
	DefaultSearchThreshold = 0.8
	DefaultWindowSize      = 3
)

// ErrEmptyQuery is returned when a search query carries no query text.
// Malformed queries are rejected before any backend call is issued.
var ErrEmptyQuery = errors.New("query text is required")

// ChunkSearchQuery asks for chunks relevant to Query, each expanded into a
// window of PreN preceding and NextN following chunks.
type ChunkSearchQuery struct {
	Query     string            `json:"query"`
	Filters   map[string]string `json:"filters,omitempty"`
	Threshold float64           `json:"threshold"`
	Limit     int               `json:"limit"`
	PreN      int               `json:"pre_n"`
	NextN     int               `json:"next_n"`
}

// Validate rejects malformed queries and fills in defaults.
func (q *ChunkSearchQuery) Validate() error {
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Threshold <= 0 {
		q.Threshold = DefaultSearchThreshold
	}
	if q.PreN <= 0 {
		q.PreN = DefaultWindowSize
	}
	if q.NextN <= 0 {
		q.NextN = DefaultWindowSize
	}
	return nil
}

// ChunkSearchResult is one ranked hit: the matched chunk, its surrounding
// window (possibly shorter than requested at sequence boundaries), and score.
type ChunkSearchResult struct {
	Chunk      *Chunk   `json:"chunk"`
	PreNChunks []*Chunk `json:"pre_n_chunks"`
	NextChunks []*Chunk `json:"next_n_chunks"`
	Score      float64  `json:"score"`
}

// HybridSearchQuery asks for whole artifacts relevant to Query.
type HybridSearchQuery struct {
	Query       string  `json:"query"`
	FilterTypes []Type  `json:"filter_types,omitempty"`
	Threshold   float64 `json:"threshold"`
	Limit       int     `json:"limit"`
}

// Validate rejects malformed queries and fills in defaults.
func (q *HybridSearchQuery) Validate() error {
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Threshold <= 0 {
		q.Threshold = DefaultSearchThreshold
	}
	return nil
}

// HybridSearchResult is one ranked artifact-level hit.
type HybridSearchResult struct {
	Artifact *Artifact `json:"artifact"`
	Score    float64   `json:"score"`
}
