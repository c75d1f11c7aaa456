package vector

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/coder/hnsw"
)

// Config tunes the HNSW graphs backing the store. Path, when set, is the
// directory used to persist collections across restarts.
type Config struct {
	M        int    `yaml:"m" json:"m"`
	EfSearch int    `yaml:"ef_search" json:"ef_search"`
	Path     string `yaml:"path" json:"path"`
}

// DefaultConfig returns the recommended HNSW parameters.
func DefaultConfig() Config {
	return Config{M: 16, EfSearch: 20}
}

// HNSWStore implements Store with one in-process HNSW graph per collection,
// using cosine distance. Cosine distance ranges 0 (identical) to 2
// (opposite) and is normalized to similarity = 1 - distance/2.
type HNSWStore struct {
	mu          sync.RWMutex
	cfg         Config
	collections map[string]*collection
	closed      bool
}

// collection holds one graph plus the string-ID bookkeeping around it.
// Deletion is lazy: removed records just lose their ID mapping, the graph
// node stays behind and is skipped in results.
type collection struct {
	graph      *hnsw.Graph[uint64]
	records    map[string]*Record
	idMap      map[string]uint64
	keyMap     map[uint64]string
	nextKey    uint64
	dimensions int
}

// collectionState is the gob wire form for persistence.
type collectionState struct {
	Records    map[string]*Record
	IDMap      map[string]uint64
	NextKey    uint64
	Dimensions int
}

// NewHNSWStore creates an empty store.
func NewHNSWStore(cfg Config) *HNSWStore {
	def := DefaultConfig()
	if cfg.M == 0 {
		cfg.M = def.M
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = def.EfSearch
	}
	return &HNSWStore{cfg: cfg, collections: make(map[string]*collection)}
}

func (s *HNSWStore) newCollection() *collection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = s.cfg.M
	graph.EfSearch = s.cfg.EfSearch
	graph.Ml = 0.25
	return &collection{
		graph:   graph,
		records: make(map[string]*Record),
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
	}
}

func (s *HNSWStore) Insert(ctx context.Context, name string, records []*Record) error {
	return s.add(ctx, name, records, false)
}

func (s *HNSWStore) Upsert(ctx context.Context, name string, records []*Record) error {
	return s.add(ctx, name, records, true)
}

func (s *HNSWStore) add(ctx context.Context, name string, records []*Record, replace bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	col, ok := s.collections[name]
	if !ok {
		col = s.newCollection()
		s.collections[name] = col
	}
	if col.dimensions == 0 {
		col.dimensions = len(records[0].Embedding)
	}

	for _, rec := range records {
		if len(rec.Embedding) != col.dimensions {
			return ErrDimensionMismatch{Expected: col.dimensions, Got: len(rec.Embedding)}
		}
		if key, exists := col.idMap[rec.ID]; exists {
			if !replace {
				return fmt.Errorf("vector store: record %q already exists in collection %q", rec.ID, name)
			}
			// Lazy deletion: orphan the old graph node.
			delete(col.keyMap, key)
			delete(col.idMap, rec.ID)
		}

		vec := make([]float32, len(rec.Embedding))
		copy(vec, rec.Embedding)
		normalizeInPlace(vec)

		key := col.nextKey
		col.nextKey++
		col.graph.Add(hnsw.MakeNode(key, vec))
		col.idMap[rec.ID] = key
		col.keyMap[key] = rec.ID
		col.records[rec.ID] = rec
	}
	return nil
}

func (s *HNSWStore) Search(ctx context.Context, name string, vectors [][]float32, filter map[string]string, limit int, threshold float64) ([]*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	col, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	// Deduplicate hits across query vectors, keeping the best score.
	best := make(map[string]float64)
	for _, query := range vectors {
		if len(query) != col.dimensions {
			return nil, ErrDimensionMismatch{Expected: col.dimensions, Got: len(query)}
		}
		q := make([]float32, len(query))
		copy(q, query)
		normalizeInPlace(q)

		// Over-fetch to compensate for lazily deleted nodes and
		// filtered-out records.
		k := limit + col.graph.Len() - len(col.idMap)
		for _, node := range col.graph.Search(q, k) {
			id, live := col.keyMap[node.Key]
			if !live {
				continue
			}
			rec := col.records[id]
			if !matchesFilter(rec, filter) {
				continue
			}
			distance := col.graph.Distance(q, node.Value)
			score := 1.0 - float64(distance)/2.0
			if score < threshold {
				continue
			}
			if prev, seen := best[id]; !seen || score > prev {
				best[id] = score
			}
		}
	}

	results := make([]*SearchResult, 0, len(best))
	for id, score := range best {
		results = append(results, &SearchResult{Record: col.records[id], Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *HNSWStore) Query(ctx context.Context, name string, filter map[string]string, limit int) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	var out []*Record
	for _, rec := range col.records {
		if _, live := col.idMap[rec.ID]; !live {
			continue
		}
		if !matchesFilter(rec, filter) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *HNSWStore) Get(ctx context.Context, name string) ([]*Record, error) {
	return s.Query(ctx, name, nil, 0)
}

func (s *HNSWStore) Delete(ctx context.Context, name string, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[name]
	if !ok {
		return nil
	}
	for _, id := range ids {
		if key, exists := col.idMap[id]; exists {
			delete(col.keyMap, key)
			delete(col.idMap, id)
			delete(col.records, id)
		}
	}
	return nil
}

func (s *HNSWStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]*collection)
	return nil
}

func (s *HNSWStore) HasCollection(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *HNSWStore) DeleteCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Close marks the store closed. Further writes and searches fail.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Save persists every collection under dir, one graph file plus one gob
// state file per collection. Files are written to temp paths and renamed.
func (s *HNSWStore) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vector store: create save dir: %w", err)
	}
	for name, col := range s.collections {
		base := filepath.Join(dir, name)
		if err := saveGraph(base+".hnsw", col); err != nil {
			return fmt.Errorf("vector store: save collection %q: %w", name, err)
		}
		if err := saveState(base+".gob", col); err != nil {
			return fmt.Errorf("vector store: save collection state %q: %w", name, err)
		}
	}
	return nil
}

// Load restores collections previously written by Save.
func (s *HNSWStore) Load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("vector store: read save dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".hnsw") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".hnsw")
		col := s.newCollection()
		if err := loadGraph(filepath.Join(dir, e.Name()), col); err != nil {
			return fmt.Errorf("vector store: load collection %q: %w", name, err)
		}
		if err := loadState(filepath.Join(dir, name+".gob"), col); err != nil {
			return fmt.Errorf("vector store: load collection state %q: %w", name, err)
		}
		s.collections[name] = col
	}
	return nil
}

func saveGraph(path string, col *collection) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := col.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func loadGraph(path string, col *collection) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	// coder/hnsw Import needs an io.ByteReader.
	return col.graph.Import(bufio.NewReader(f))
}

func saveState(path string, col *collection) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	state := collectionState{
		Records:    col.records,
		IDMap:      col.idMap,
		NextKey:    col.nextKey,
		Dimensions: col.dimensions,
	}
	if err := gob.NewEncoder(f).Encode(state); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func loadState(path string, col *collection) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var state collectionState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return err
	}
	col.records = state.Records
	col.idMap = state.IDMap
	col.nextKey = state.NextKey
	col.dimensions = state.Dimensions
	col.keyMap = make(map[uint64]string, len(state.IDMap))
	for id, key := range state.IDMap {
		col.keyMap[key] = id
	}
	return nil
}

func matchesFilter(rec *Record, filter map[string]string) bool {
	for k, v := range filter {
		if rec.Metadata[k] != v {
			return false
		}
	}
	return true
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

var _ Store = (*HNSWStore)(nil)
