package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/workspacex/workspacex/internal/artifact"
)

// LocalRepository stores artifacts and chunks on the local filesystem.
type LocalRepository struct {
	root   string
	logger *slog.Logger
}

// LocalOption configures a LocalRepository.
type LocalOption func(*localOptions)

type localOptions struct {
	logger        *slog.Logger
	clearExisting bool
}

// WithLocalLogger sets the logger used by the repository.
func WithLocalLogger(l *slog.Logger) LocalOption {
	return func(o *localOptions) { o.logger = l }
}

// WithClearExisting wipes any existing data under the storage path at
// construction time.
func WithClearExisting() LocalOption {
	return func(o *localOptions) { o.clearExisting = true }
}

// NewLocal creates a filesystem repository rooted at storagePath.
func NewLocal(storagePath string, opts ...LocalOption) (*LocalRepository, error) {
	if storagePath == "" {
		return nil, errors.New("repository: storage path is required")
	}
	o := localOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clearExisting {
		if err := os.RemoveAll(storagePath); err != nil {
			return nil, fmt.Errorf("repository: clear existing data: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(storagePath, versionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("repository: create storage path: %w", err)
	}
	return &LocalRepository{root: storagePath, logger: o.logger}, nil
}

// abs converts a slash-separated grammar path to an absolute OS path.
func (r *LocalRepository) abs(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

func (r *LocalRepository) StoreIndex(ctx context.Context, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	index, err := r.LoadIndex(ctx)
	if err != nil {
		return err
	}
	if index == nil {
		index = make(map[string]any)
	}
	index["workspace"] = data

	// Keep the previous index as an append-only history copy. Two writers
	// racing here means last writer wins; only the prior version is
	// protected.
	indexPath := r.abs(indexFileName)
	if _, err := os.Stat(indexPath); err == nil {
		histPath := r.abs(indexHistoryPath(time.Now().Unix()))
		if err := os.Rename(indexPath, histPath); err != nil {
			return fmt.Errorf("repository: version previous index: %w", err)
		}
	}
	return r.writeJSON(indexFileName, index)
}

func (r *LocalRepository) LoadIndex(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(r.abs(indexFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: read index: %w", err)
	}
	var index map[string]any
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("repository: decode index: %w", err)
	}
	return index, nil
}

func (r *LocalRepository) StoreArtifact(ctx context.Context, a *artifact.Artifact, saveSublistContent bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if saveSublistContent {
		for _, sub := range a.Sublist {
			if sub.Content == "" {
				continue
			}
			p := subArtifactContentPath(a.ID, sub.ID, contentExt(sub.Type))
			if err := r.writeFile(p, []byte(sub.Content)); err != nil {
				return fmt.Errorf("repository: store sub-artifact content %s: %w", sub.ID, err)
			}
		}
	}
	doc := descriptorForStorage(a, saveSublistContent)
	r.logger.Debug("storing artifact",
		slog.String("artifact_id", a.ID),
		slog.Int("sublist", len(a.Sublist)))
	return r.writeJSON(artifactIndexPath(a.ID), doc)
}

func (r *LocalRepository) RetrieveArtifact(ctx context.Context, artifactID string) (*artifact.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(r.abs(artifactIndexPath(artifactID)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: read artifact %s: %w", artifactID, err)
	}
	var a artifact.Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("repository: decode artifact %s: %w", artifactID, err)
	}
	return &a, nil
}

// StoreArtifactChunks replaces the chunk directory. The new set is written
// to a temporary sibling directory first and renamed into place, so a failed
// or cancelled write never leaves a partially-written chunk directory.
// Callers must serialize rewrites per artifact.
func (r *LocalRepository) StoreArtifactChunks(ctx context.Context, a *artifact.Artifact, chunks []*artifact.Chunk) error {
	dir := r.abs(chunkDir(a.ID, a.ParentID))
	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("repository: clear temp chunk dir: %w", err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("repository: create temp chunk dir: %w", err)
	}
	cleanup := func(err error) error {
		os.RemoveAll(tmp)
		return err
	}
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return cleanup(err)
		}
		raw, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return cleanup(fmt.Errorf("repository: encode chunk %s: %w", c.ID, err))
		}
		if err := os.WriteFile(filepath.Join(tmp, c.FileName()), raw, 0o644); err != nil {
			return cleanup(fmt.Errorf("repository: write chunk %s: %w", c.ID, err))
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return cleanup(fmt.Errorf("repository: remove previous chunk dir: %w", err))
	}
	if err := os.Rename(tmp, dir); err != nil {
		return cleanup(fmt.Errorf("repository: swap chunk dir: %w", err))
	}
	r.logger.Debug("stored chunk set",
		slog.String("artifact_id", a.ID),
		slog.Int("chunks", len(chunks)))
	return nil
}

func (r *LocalRepository) GetChunks(ctx context.Context, artifactID, parentID string) ([]*artifact.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := r.abs(chunkDir(artifactID, parentID))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: list chunks for %s: %w", artifactID, err)
	}
	var chunks []*artifact.Chunk
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		c, err := r.readChunkFile(filepath.Join(dir, e.Name()))
		if err != nil {
			r.logger.Warn("skipping unreadable chunk file",
				slog.String("file", e.Name()), slog.Any("error", err))
			continue
		}
		if c != nil {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

func (r *LocalRepository) GetChunkWindow(ctx context.Context, artifactID, parentID string, chunkIndex, preN, nextN int) (*ChunkWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fetch := func(idx int) (*artifact.Chunk, error) {
		return r.readChunk(artifactID, parentID, idx)
	}
	return buildWindow(fetch, chunkIndex, preN, nextN)
}

func (r *LocalRepository) readChunk(artifactID, parentID string, chunkIndex int) (*artifact.Chunk, error) {
	return r.readChunkFile(r.abs(chunkPath(artifactID, parentID, chunkIndex)))
}

func (r *LocalRepository) readChunkFile(absPath string) (*artifact.Chunk, error) {
	raw, err := os.ReadFile(absPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: read chunk file: %w", err)
	}
	var c artifact.Chunk
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("repository: decode chunk file %s: %w", filepath.Base(absPath), err)
	}
	return &c, nil
}

func (r *LocalRepository) GetSubArtifactContent(ctx context.Context, artifactID, parentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(r.abs(subArtifactDir(parentID, artifactID)), originBaseName+".*"))
	if err != nil || len(matches) == 0 {
		return "", nil
	}
	raw, err := os.ReadFile(matches[0])
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("repository: read sub-artifact content %s: %w", artifactID, err)
	}
	return string(raw), nil
}

func (r *LocalRepository) StoreAttachmentFile(ctx context.Context, artifactID, fileName string, src io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := r.abs(attachmentPath(artifactID, fileName))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("repository: create attachment dir: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("repository: create attachment %s: %w", fileName, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return fmt.Errorf("repository: write attachment %s: %w", fileName, err)
	}
	return nil
}

func (r *LocalRepository) GetAttachmentFile(ctx context.Context, artifactID, fileName string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(r.abs(attachmentPath(artifactID, fileName)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: read attachment %s: %w", fileName, err)
	}
	return raw, nil
}

func (r *LocalRepository) writeJSON(rel string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("repository: encode %s: %w", rel, err)
	}
	return r.writeFile(rel, raw)
}

func (r *LocalRepository) writeFile(rel string, data []byte) error {
	p := r.abs(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("repository: create dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("repository: write %s: %w", rel, err)
	}
	return nil
}

var _ Repository = (*LocalRepository)(nil)
