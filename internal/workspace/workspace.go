// Package workspace ties the pieces together: artifact lifecycle backed by a
// repository, and hybrid chunk retrieval backed by an embedder, a vector
// store, and an optional reranker.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/workspacex/workspacex/internal/artifact"
	"github.com/workspacex/workspacex/internal/chunking"
	"github.com/workspacex/workspacex/internal/config"
	"github.com/workspacex/workspacex/internal/embed"
	"github.com/workspacex/workspacex/internal/repository"
	"github.com/workspacex/workspacex/internal/rerank"
	"github.com/workspacex/workspacex/internal/vector"
)

var (
	// ErrDuplicateArtifact is returned when an artifact ID already exists.
	ErrDuplicateArtifact = errors.New("workspace: artifact already exists")

	// ErrNilDependency is returned when a required component is missing.
	ErrNilDependency = errors.New("workspace: nil dependency")
)

// EventType classifies workspace lifecycle events.
type EventType string

const (
	EventArtifactCreated  EventType = "artifact_created"
	EventArtifactUpdated  EventType = "artifact_updated"
	EventArtifactArchived EventType = "artifact_archived"
	EventArtifactIndexed  EventType = "artifact_indexed"
	EventWorkspaceSaved   EventType = "workspace_saved"
)

// Event is delivered to callbacks registered with OnEvent.
type Event struct {
	Type       EventType `json:"type"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Workspace is an artifact collection with one vector collection per
// workspace. All exported methods are safe for concurrent use.
type Workspace struct {
	id   string
	name string
	cfg  *config.Config

	repo     repository.Repository
	embedder embed.Embedder
	vectors  vector.Store
	chunker  chunking.Chunker
	reranker rerank.Reranker
	logger   *slog.Logger

	mu        sync.RWMutex
	artifacts map[string]*artifact.Artifact

	cbMu      sync.RWMutex
	callbacks []func(Event)
}

// Option overrides a component built from the config, mainly for tests.
type Option func(*Workspace)

// WithRepository replaces the storage backend.
func WithRepository(r repository.Repository) Option {
	return func(w *Workspace) { w.repo = r }
}

// WithEmbedder replaces the embedding provider.
func WithEmbedder(e embed.Embedder) Option {
	return func(w *Workspace) { w.embedder = e }
}

// WithVectorStore replaces the vector store.
func WithVectorStore(s vector.Store) Option {
	return func(w *Workspace) { w.vectors = s }
}

// WithChunker replaces the chunker.
func WithChunker(c chunking.Chunker) Option {
	return func(w *Workspace) { w.chunker = c }
}

// WithReranker replaces the reranker.
func WithReranker(r rerank.Reranker) Option {
	return func(w *Workspace) { w.reranker = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.logger = l }
}

// Open builds a workspace from cfg and loads any previously saved state.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Workspace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Workspace{
		id:        cfg.WorkspaceID,
		name:      cfg.Name,
		cfg:       cfg,
		artifacts: make(map[string]*artifact.Artifact),
		logger:    slog.Default().With(slog.String("component", "workspace"), slog.String("workspace_id", cfg.WorkspaceID)),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.buildComponents(); err != nil {
		return nil, err
	}
	if err := w.load(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// buildComponents fills in every component not supplied by an Option.
func (w *Workspace) buildComponents() error {
	var err error
	if w.repo == nil {
		switch w.cfg.Storage.Backend {
		case config.BackendLocal:
			w.repo, err = repository.NewLocal(w.cfg.Storage.LocalPath)
		case config.BackendObject:
			w.repo, err = repository.NewObject(w.cfg.Storage.Object)
		default:
			err = fmt.Errorf("workspace: unknown storage backend %q", w.cfg.Storage.Backend)
		}
		if err != nil {
			return err
		}
	}
	if w.chunker == nil {
		if w.chunker, err = chunking.New(w.cfg.Chunking); err != nil {
			return err
		}
	}
	if w.embedder == nil {
		if w.embedder, err = embed.New(w.cfg.Embeddings); err != nil {
			return err
		}
	}
	if w.reranker == nil {
		if w.reranker, err = rerank.New(w.cfg.Rerank); err != nil {
			return err
		}
	}
	if w.vectors == nil {
		store := vector.NewHNSWStore(w.cfg.Vector)
		if w.cfg.Vector.Path != "" {
			if err := store.Load(w.cfg.Vector.Path); err != nil {
				return fmt.Errorf("workspace: load vector store: %w", err)
			}
		}
		w.vectors = store
	}
	if w.repo == nil || w.chunker == nil || w.embedder == nil || w.reranker == nil || w.vectors == nil {
		return ErrNilDependency
	}
	return nil
}

// load rehydrates artifacts listed in the workspace index.
func (w *Workspace) load(ctx context.Context) error {
	index, err := w.repo.LoadIndex(ctx)
	if err != nil {
		return err
	}
	if index == nil {
		return nil
	}
	meta, ok := index["workspace"].(map[string]any)
	if !ok {
		return nil
	}
	if name, ok := meta["name"].(string); ok && w.name == "" {
		w.name = name
	}
	ids, _ := meta["artifact_ids"].([]any)
	for _, raw := range ids {
		id, ok := raw.(string)
		if !ok {
			continue
		}
		a, err := w.repo.RetrieveArtifact(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			w.logger.Warn("indexed artifact missing from storage", slog.String("artifact_id", id))
			continue
		}
		w.artifacts[a.ID] = a
	}
	w.logger.Info("workspace loaded", slog.Int("artifacts", len(w.artifacts)))
	return nil
}

// Save persists the workspace index: identity, artifact IDs, and timestamps.
func (w *Workspace) Save(ctx context.Context) error {
	w.mu.RLock()
	ids := make([]string, 0, len(w.artifacts))
	for id := range w.artifacts {
		ids = append(ids, id)
	}
	w.mu.RUnlock()

	data := map[string]any{
		"workspace_id": w.id,
		"name":         w.name,
		"artifact_ids": ids,
		"updated_at":   time.Now().Format(time.RFC3339),
	}
	if err := w.repo.StoreIndex(ctx, data); err != nil {
		return err
	}
	w.emit(Event{Type: EventWorkspaceSaved, Timestamp: time.Now()})
	return nil
}

// Close saves the vector store when a persistence path is configured and
// releases the embedder.
func (w *Workspace) Close() error {
	if w.cfg.Vector.Path != "" {
		if s, ok := w.vectors.(*vector.HNSWStore); ok {
			if err := s.Save(w.cfg.Vector.Path); err != nil {
				return err
			}
		}
	}
	return w.embedder.Close()
}

// ID returns the workspace identifier, which doubles as the vector
// collection name.
func (w *Workspace) ID() string { return w.id }

// Name returns the human-readable workspace name.
func (w *Workspace) Name() string { return w.name }

// OnEvent registers a callback for lifecycle events. Callbacks run
// synchronously in registration order and must not block.
func (w *Workspace) OnEvent(fn func(Event)) {
	if fn == nil {
		return
	}
	w.cbMu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.cbMu.Unlock()
}

func (w *Workspace) emit(ev Event) {
	w.cbMu.RLock()
	cbs := make([]func(Event), len(w.callbacks))
	copy(cbs, w.callbacks)
	w.cbMu.RUnlock()
	for _, fn := range cbs {
		fn(ev)
	}
}

// TreeNode is one node in the workspace artifact tree, used for display.
type TreeNode struct {
	ID       string          `json:"id"`
	Type     artifact.Type   `json:"type"`
	Status   artifact.Status `json:"status"`
	Chunks   int             `json:"chunks"`
	Children []*TreeNode     `json:"children,omitempty"`
}

// Tree renders the workspace as a list of root artifact nodes with their
// sub-artifacts as children, sorted by creation time.
func (w *Workspace) Tree() []*TreeNode {
	w.mu.RLock()
	roots := make([]*artifact.Artifact, 0, len(w.artifacts))
	for _, a := range w.artifacts {
		roots = append(roots, a)
	}
	w.mu.RUnlock()

	sortArtifacts(roots)
	nodes := make([]*TreeNode, 0, len(roots))
	for _, a := range roots {
		nodes = append(nodes, treeNode(a))
	}
	return nodes
}

func treeNode(a *artifact.Artifact) *TreeNode {
	n := &TreeNode{ID: a.ID, Type: a.Type, Status: a.Status, Chunks: len(a.ChunkList)}
	for _, sub := range a.Sublist {
		n.Children = append(n.Children, treeNode(sub))
	}
	return n
}

func sortArtifacts(as []*artifact.Artifact) {
	sort.Slice(as, func(i, j int) bool { return as[i].CreatedAt.Before(as[j].CreatedAt) })
}
