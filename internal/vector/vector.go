// Package vector wraps a similarity-search backend behind a collection API.
// The backend's native distance metric is normalized into a bounded [0,1]
// similarity score where 1 is best.
package vector

import (
	"context"
	"fmt"
)

// Record is one stored vector with its source content and identity metadata.
type Record struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
}

// SearchResult is a record with its normalized similarity score.
type SearchResult struct {
	Record *Record `json:"record"`
	Score  float64 `json:"score"`
}

// Store is the vector storage contract. A missing collection is not an
// error: reads return (nil, nil) and deletes are no-ops.
type Store interface {
	// Insert adds records, failing on duplicate IDs.
	Insert(ctx context.Context, collection string, records []*Record) error

	// Upsert adds records, replacing any with the same ID.
	Upsert(ctx context.Context, collection string, records []*Record) error

	// Search returns records similar to the query vectors, scored in
	// [0,1] with 1 best. Results below threshold are excluded; at most
	// limit results are returned, sorted by descending score. Filter
	// entries must all match a record's metadata for it to qualify.
	Search(ctx context.Context, collection string, vectors [][]float32, filter map[string]string, limit int, threshold float64) ([]*SearchResult, error)

	// Query returns records matching the metadata filter, up to limit.
	Query(ctx context.Context, collection string, filter map[string]string, limit int) ([]*Record, error)

	// Get returns every record in the collection.
	Get(ctx context.Context, collection string) ([]*Record, error)

	// Delete removes records by ID.
	Delete(ctx context.Context, collection string, ids []string) error

	// Reset drops all collections.
	Reset(ctx context.Context) error

	// HasCollection reports whether the collection exists.
	HasCollection(ctx context.Context, collection string) (bool, error)

	// DeleteCollection drops one collection.
	DeleteCollection(ctx context.Context, collection string) error
}

// ErrDimensionMismatch is returned when a vector's dimensionality does not
// match the collection's.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
