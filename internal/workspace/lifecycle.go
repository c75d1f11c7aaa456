package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/workspacex/workspacex/internal/artifact"
	"github.com/workspacex/workspacex/internal/vector"
)

// CreateArtifact builds a new artifact and adds it to the workspace. An
// empty id gets a generated UUID; an existing id is rejected.
func (w *Workspace) CreateArtifact(ctx context.Context, id string, typ artifact.Type, content string, metadata map[string]any) (*artifact.Artifact, error) {
	a := artifact.New(id, typ, content, metadata)
	if err := w.AddArtifact(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddArtifact stores a, indexes its content and the content of its
// sub-artifacts, and saves the workspace index.
func (w *Workspace) AddArtifact(ctx context.Context, a *artifact.Artifact) error {
	w.mu.Lock()
	if _, exists := w.artifacts[a.ID]; exists {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateArtifact, a.ID)
	}
	w.artifacts[a.ID] = a
	w.mu.Unlock()

	if err := w.repo.StoreArtifact(ctx, a, true); err != nil {
		return err
	}
	if err := w.storeAttachments(ctx, a); err != nil {
		return err
	}
	if err := w.indexArtifact(ctx, a); err != nil {
		return err
	}
	w.emit(Event{Type: EventArtifactCreated, ArtifactID: a.ID, Timestamp: time.Now()})
	return w.Save(ctx)
}

// UpdateArtifact replaces the artifact's content, records a version, and
// re-indexes it. Returns the updated artifact, or nil if the id is unknown.
func (w *Workspace) UpdateArtifact(ctx context.Context, id, content, description string) (*artifact.Artifact, error) {
	w.mu.RLock()
	a := w.artifacts[id]
	w.mu.RUnlock()
	if a == nil {
		return nil, nil
	}

	a.UpdateContent(content, description)
	if err := w.repo.StoreArtifact(ctx, a, true); err != nil {
		return nil, err
	}
	if err := w.indexArtifact(ctx, a); err != nil {
		return nil, err
	}
	w.emit(Event{Type: EventArtifactUpdated, ArtifactID: id, Timestamp: time.Now()})
	return a, w.Save(ctx)
}

// DeleteArtifact archives the artifact and withdraws it from retrieval. The
// stored data stays on disk; archival is a soft delete.
func (w *Workspace) DeleteArtifact(ctx context.Context, id string) error {
	w.mu.RLock()
	a := w.artifacts[id]
	w.mu.RUnlock()
	if a == nil {
		return nil
	}

	a.Archive()
	if err := w.repo.StoreArtifact(ctx, a, false); err != nil {
		return err
	}
	if err := w.removeVectors(ctx, a); err != nil {
		return err
	}
	w.emit(Event{Type: EventArtifactArchived, ArtifactID: id, Timestamp: time.Now()})
	return w.Save(ctx)
}

// GetArtifact returns the artifact by id, loading externalized sub-artifact
// content on demand. A missing id returns (nil, nil).
func (w *Workspace) GetArtifact(ctx context.Context, id string) (*artifact.Artifact, error) {
	w.mu.RLock()
	a := w.artifacts[id]
	w.mu.RUnlock()
	if a == nil {
		var err error
		if a, err = w.repo.RetrieveArtifact(ctx, id); err != nil || a == nil {
			return nil, err
		}
		w.mu.Lock()
		w.artifacts[a.ID] = a
		w.mu.Unlock()
	}

	for _, sub := range a.Sublist {
		if sub.Content != "" {
			continue
		}
		content, err := w.repo.GetSubArtifactContent(ctx, sub.ID, a.ID)
		if err != nil {
			return nil, err
		}
		sub.Content = content
	}
	return a, nil
}

// ListArtifacts returns the workspace's artifacts, optionally filtered by
// type. Archived artifacts are excluded.
func (w *Workspace) ListArtifacts(types ...artifact.Type) []*artifact.Artifact {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]*artifact.Artifact, 0, len(w.artifacts))
	for _, a := range w.artifacts {
		if a.Status == artifact.StatusArchived {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, a.Type) {
			continue
		}
		out = append(out, a)
	}
	sortArtifacts(out)
	return out
}

// RebuildIndex drops the workspace's vector collection and re-chunks and
// re-embeds every live artifact. It is safe to run repeatedly and is the
// recovery path after a model change or interrupted indexing.
func (w *Workspace) RebuildIndex(ctx context.Context) error {
	if err := w.vectors.DeleteCollection(ctx, w.id); err != nil {
		return err
	}
	for _, a := range w.ListArtifacts() {
		if err := w.indexArtifact(ctx, a); err != nil {
			return fmt.Errorf("rebuild %s: %w", a.ID, err)
		}
	}
	w.logger.Info("index rebuilt", slog.Int("artifacts", len(w.ListArtifacts())))
	return nil
}

// indexArtifact chunks the artifact and its sub-artifacts, persists the
// chunks, and upserts their embeddings into the workspace collection.
func (w *Workspace) indexArtifact(ctx context.Context, a *artifact.Artifact) error {
	targets := []*artifact.Artifact{a}
	for _, sub := range a.Sublist {
		if sub.Content == "" {
			// Externalized sub content is loaded back before chunking.
			content, err := w.repo.GetSubArtifactContent(ctx, sub.ID, a.ID)
			if err != nil {
				return err
			}
			sub.Content = content
		}
		targets = append(targets, sub)
	}

	for _, t := range targets {
		if t.EmbeddingText() == "" {
			continue
		}
		if err := w.indexContent(ctx, t); err != nil {
			return err
		}
	}
	w.emit(Event{Type: EventArtifactIndexed, ArtifactID: a.ID, Timestamp: time.Now()})
	return nil
}

func (w *Workspace) indexContent(ctx context.Context, a *artifact.Artifact) error {
	chunks, err := w.chunker.Chunk(ctx, a)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", a.ID, err)
	}
	a.ChunkList = chunks

	// Chunks are written before embeddings so a failed or interrupted
	// embed pass can be retried from stored chunks. Re-chunking replaces
	// the whole chunk set atomically.
	if err := w.repo.StoreArtifactChunks(ctx, a, chunks); err != nil {
		return err
	}
	if err := w.removeVectors(ctx, a); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	embeddings := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Hybrid.MaxConcurrentEmbeds)
	for i, ch := range chunks {
		g.Go(func() error {
			vec, err := w.embedder.Embed(gctx, ch.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", ch.ID, err)
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	records := make([]*vector.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = &vector.Record{
			ID:        ch.ID,
			Embedding: embeddings[i],
			Content:   ch.Content,
			Metadata: map[string]string{
				"artifact_id":        ch.Metadata.ArtifactID,
				"parent_artifact_id": ch.Metadata.ParentArtifactID,
				"artifact_type":      ch.Metadata.ArtifactType,
				"chunk_index":        strconv.Itoa(ch.Metadata.ChunkIndex),
				"model":              w.embedder.ModelName(),
				"created_at":         now,
			},
		}
	}
	if err := w.vectors.Upsert(ctx, w.id, records); err != nil {
		return err
	}
	w.logger.Debug("artifact indexed",
		slog.String("artifact_id", a.ID),
		slog.Int("chunks", len(chunks)))
	return nil
}

// removeVectors deletes every vector record belonging to a and its subs, so
// shrinking chunk sets leave no stale entries behind.
func (w *Workspace) removeVectors(ctx context.Context, a *artifact.Artifact) error {
	ids := []string{a.ID}
	for _, sub := range a.Sublist {
		ids = append(ids, sub.ID)
	}
	for _, id := range ids {
		records, err := w.vectors.Query(ctx, w.id, map[string]string{"artifact_id": id}, 0)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}
		recordIDs := make([]string, len(records))
		for i, rec := range records {
			recordIDs[i] = rec.ID
		}
		if err := w.vectors.Delete(ctx, w.id, recordIDs); err != nil {
			return err
		}
	}
	return nil
}

// storeAttachments copies the artifact's attachment files into the
// repository.
func (w *Workspace) storeAttachments(ctx context.Context, a *artifact.Artifact) error {
	for name, src := range a.AttachmentFiles {
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("attachment %s: %w", name, err)
		}
		err = w.repo.StoreAttachmentFile(ctx, a.ID, name, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
