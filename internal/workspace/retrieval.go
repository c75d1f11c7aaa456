package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"

	"github.com/workspacex/workspacex/internal/artifact"
)

// RetrieveChunks runs the hybrid chunk retrieval pipeline: embed the query,
// search the workspace collection, expand each hit into its chunk window,
// and optionally rerank. Parameters left unset on the query fall back to the
// workspace's hybrid search configuration. With hybrid search disabled it
// returns no results and no error.
func (w *Workspace) RetrieveChunks(ctx context.Context, q artifact.ChunkSearchQuery) ([]*artifact.ChunkSearchResult, error) {
	if q.Threshold <= 0 {
		q.Threshold = w.cfg.Hybrid.Threshold
	}
	if q.Limit <= 0 {
		q.Limit = w.cfg.Hybrid.Limit
	}
	if q.PreN <= 0 {
		q.PreN = w.cfg.Hybrid.PreN
	}
	if q.NextN <= 0 {
		q.NextN = w.cfg.Hybrid.NextN
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !w.cfg.Hybrid.Enabled {
		return nil, nil
	}

	queryVec, err := w.embedder.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := w.vectors.Search(ctx, w.id, [][]float32{queryVec}, q.Filters, q.Limit, q.Threshold)
	if err != nil {
		return nil, err
	}

	results := make([]*artifact.ChunkSearchResult, 0, len(hits))
	for _, hit := range hits {
		res, err := w.resolveHit(ctx, hit.Record.Metadata, hit.Score, q.PreN, q.NextN)
		if err != nil {
			return nil, err
		}
		if res == nil {
			w.logger.Warn("search hit no longer resolvable, skipping",
				slog.String("record_id", hit.Record.ID))
			continue
		}
		results = append(results, res)
	}

	if w.cfg.Hybrid.RerankEnabled && len(results) > 0 {
		if results, err = w.rerankChunks(ctx, q, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// resolveHit maps a vector record back to its stored chunk window. Returns
// nil when the chunk no longer exists, e.g. after a concurrent re-chunk.
func (w *Workspace) resolveHit(ctx context.Context, meta map[string]string, score float64, preN, nextN int) (*artifact.ChunkSearchResult, error) {
	artifactID := meta["artifact_id"]
	parentID := meta["parent_artifact_id"]
	index, err := strconv.Atoi(meta["chunk_index"])
	if err != nil || artifactID == "" {
		return nil, nil
	}

	window, err := w.repo.GetChunkWindow(ctx, artifactID, parentID, index, preN, nextN)
	if err != nil {
		return nil, err
	}
	if window == nil {
		return nil, nil
	}
	return &artifact.ChunkSearchResult{
		Chunk:      window.Target,
		PreNChunks: window.Pre,
		NextChunks: window.Next,
		Score:      score,
	}, nil
}

// rerankChunks rescores the candidate chunks and reorders results
// accordingly. Candidates the reranker drops are dropped here too.
func (w *Workspace) rerankChunks(ctx context.Context, q artifact.ChunkSearchQuery, results []*artifact.ChunkSearchResult) ([]*artifact.ChunkSearchResult, error) {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Chunk.Content
	}
	ranked, err := w.reranker.Rerank(ctx, q.Query, docs, 0, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	out := make([]*artifact.ChunkSearchResult, 0, len(ranked))
	for _, r := range ranked {
		res := results[r.Index]
		res.Score = r.Score
		out = append(out, res)
	}
	return out, nil
}

/// RetrieveArtifacts runs artifact-level hybrid search: chunk hits are
// deduplicated to their owning artifacts, each artifact keeping its best
// chunk score, then optionally reranked on the artifacts' own text.
// Threshold and limit left unset fall back to the workspace's hybrid search
// configuration. With hybrid search disabled it returns no results and no
// error.
func (w *Workspace) RetrieveArtifacts(ctx context.Context, q artifact.HybridSearchQuery) ([]*artifact.HybridSearchResult, error) {
	if q.Threshold <= 0 {
		q.Threshold = w.cfg.Hybrid.Threshold
	}
	if q.Limit <= 0 {
		q.Limit = w.cfg.Hybrid.Limit
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !w.cfg.Hybrid.Enabled {
		return nil, nil
	}

	queryVec, err := w.embedder.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	// Over-fetch so deduplication by artifact still fills the limit.
	hits, err := w.vectors.Search(ctx, w.id, [][]float32{queryVec}, nil, q.Limit*4, q.Threshold)
	if err != nil {
		return nil, err
	}

	// Sub-artifact hits surface their root artifact; each artifact keeps
	// its best chunk score.
	best := make(map[string]float64)
	for _, hit := range hits {
		id := hit.Record.Metadata["parent_artifact_id"]
		if id == "" {
			id = hit.Record.Metadata["artifact_id"]
		}
		if id == "" {
			continue
		}
		if score, ok := best[id]; !ok || hit.Score > score {
			best[id] = hit.Score
		}
	}

	results := make([]*artifact.HybridSearchResult, 0, len(best))
	for id, score := range best {
		a, err := w.GetArtifact(ctx, id)
		if err != nil {
			return nil, err
		}
		if a == nil || a.Status == artifact.StatusArchived {
			continue
		}
		if len(q.FilterTypes) > 0 && !slices.Contains(q.FilterTypes, a.Type) {
			continue
		}
		results = append(results, &artifact.HybridSearchResult{Artifact: a, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if w.cfg.Hybrid.RerankEnabled && len(results) > 0 {
		return w.rerankArtifacts(ctx, q, results)
	}
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// rerankArtifacts rescores candidate artifacts on their rerank text and
// reorders results accordingly. Candidates the reranker drops are dropped
// here too.
func (w *Workspace) rerankArtifacts(ctx context.Context, q artifact.HybridSearchQuery, results []*artifact.HybridSearchResult) ([]*artifact.HybridSearchResult, error) {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Artifact.RerankText()
	}
	ranked, err := w.reranker.Rerank(ctx, q.Query, docs, 0, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	out := make([]*artifact.HybridSearchResult, 0, len(ranked))
	for _, r := range ranked {
		res := results[r.Index]
		res.Score = r.Score
		out = append(out, res)
	}
	return out, nil
}
