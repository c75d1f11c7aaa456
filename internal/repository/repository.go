// Package repository persists artifact trees and chunk sequences. Two
// backends implement the same contract over an identical path grammar, so
// stored data is portable between the local filesystem and object storage.
package repository

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/workspacex/workspacex/internal/artifact"
)

// Repository is the storage contract shared by all backends.
//
// Not-found is never an error: reads of missing artifacts, chunks, or index
// data return zero values with a nil error. StoreArtifactChunks destructively
// replaces the artifact's whole chunk set; callers must serialize chunk
// rewrites per artifact — the repository does not lock across writers.
type Repository interface {
	// StoreIndex persists workspace-level metadata under the "workspace"
	// key of the index file, moving the previous index into the versions
	// directory first.
	StoreIndex(ctx context.Context, data map[string]any) error

	// LoadIndex returns the full index document, or (nil, nil) if none
	// has been written yet.
	LoadIndex(ctx context.Context) (map[string]any, error)

	// StoreArtifact writes the artifact descriptor. When saveSublistContent
	// is true, each sub-artifact's raw content is written to its own origin
	// file and cleared from the embedded descriptor, so content is stored
	// once rather than duplicated in the parent's document.
	StoreArtifact(ctx context.Context, a *artifact.Artifact, saveSublistContent bool) error

	// RetrieveArtifact reads an artifact descriptor by ID, or (nil, nil)
	// on miss.
	RetrieveArtifact(ctx context.Context, artifactID string) (*artifact.Artifact, error)

	// StoreArtifactChunks replaces the artifact's entire chunk directory
	// with the given set. The previous chunk files are gone afterwards.
	StoreArtifactChunks(ctx context.Context, a *artifact.Artifact, chunks []*artifact.Chunk) error

	// GetChunks reads every chunk of the artifact, in no particular order.
	// Callers sort by chunk index when order matters. (nil, nil) when the
	// artifact has no chunk directory.
	GetChunks(ctx context.Context, artifactID, parentID string) ([]*artifact.Chunk, error)

	// GetChunkWindow reads the chunk at chunkIndex plus up to preN
	// preceding and nextN following chunks. Each direction stops at the
	// first missing index, truncating the window at sequence boundaries.
	// A missing target chunk yields (nil, nil).
	GetChunkWindow(ctx context.Context, artifactID, parentID string, chunkIndex, preN, nextN int) (*ChunkWindow, error)

	// GetSubArtifactContent reads the origin content file of a
	// sub-artifact, or ("", nil) on miss.
	GetSubArtifactContent(ctx context.Context, artifactID, parentID string) (string, error)

	// StoreAttachmentFile writes an attachment under the artifact.
	StoreAttachmentFile(ctx context.Context, artifactID, fileName string, r io.Reader) error

	// GetAttachmentFile reads an attachment, or (nil, nil) on miss.
	GetAttachmentFile(ctx context.Context, artifactID, fileName string) ([]byte, error)
}

// ChunkWindow is a target chunk with its sequence-adjacent neighbors.
// Pre holds the preceding chunks nearest-first (index target-1, target-2,
// ...); Next holds the following chunks in ascending index order. Either
// side may be shorter than requested when the sequence boundary is reached.
type ChunkWindow struct {
	Pre    []*artifact.Chunk
	Target *artifact.Chunk
	Next   []*artifact.Chunk
}

// Chunks flattens the window into sequence order: pre, target, next.
func (w *ChunkWindow) Chunks() []*artifact.Chunk {
	if w == nil || w.Target == nil {
		return nil
	}
	out := make([]*artifact.Chunk, 0, len(w.Pre)+1+len(w.Next))
	for i := len(w.Pre) - 1; i >= 0; i-- {
		out = append(out, w.Pre[i])
	}
	out = append(out, w.Target)
	return append(out, w.Next...)
}

// buildWindow assembles a chunk window around chunkIndex using fetch, which
// returns (nil, nil) for a missing index. Both directions stop at the first
// missing index so the window truncates cleanly at sequence boundaries.
func buildWindow(fetch func(int) (*artifact.Chunk, error), chunkIndex, preN, nextN int) (*ChunkWindow, error) {
	target, err := fetch(chunkIndex)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, nil
	}
	w := &ChunkWindow{Target: target}
	for i := 1; i <= preN; i++ {
		idx := chunkIndex - i
		if idx < 0 {
			break
		}
		c, err := fetch(idx)
		if err != nil {
			return nil, err
		}
		if c == nil {
			break
		}
		w.Pre = append(w.Pre, c)
	}
	for i := 1; i <= nextN; i++ {
		c, err := fetch(chunkIndex + i)
		if err != nil {
			return nil, err
		}
		if c == nil {
			break
		}
		w.Next = append(w.Next, c)
	}
	return w, nil
}

// Path grammar. Relative paths are slash-separated on every backend; the
// local backend converts to OS separators at the filesystem boundary. The
// grammar is a stored-data format: both backends must produce identical
// bytes so artifacts are portable between them.
const (
	indexFileName  = "index.json"
	versionsDir    = "versions"
	originBaseName = "origin"
)

func artifactDir(artifactID string) string {
	return path.Join("artifacts", artifactID)
}

func artifactIndexPath(artifactID string) string {
	return path.Join(artifactDir(artifactID), indexFileName)
}

func subArtifactDir(parentID, subID string) string {
	return path.Join(artifactDir(parentID), "sublist", subID)
}

func subArtifactContentPath(parentID, subID, ext string) string {
	return path.Join(subArtifactDir(parentID, subID), originBaseName+"."+ext)
}

// chunkDir locates the chunk set for an artifact. Root artifacts keep their
// chunks under their own directory; a sub-artifact's chunks live under its
// parent's sublist entry, which is why chunk metadata carries the parent ID.
func chunkDir(artifactID, parentID string) string {
	if parentID == "" {
		return path.Join(artifactDir(artifactID), "chunks")
	}
	return path.Join(subArtifactDir(parentID, artifactID), "chunks")
}

func chunkPath(artifactID, parentID string, chunkIndex int) string {
	return path.Join(chunkDir(artifactID, parentID), artifact.ChunkFileName(artifactID, chunkIndex))
}

func attachmentPath(artifactID, fileName string) string {
	return path.Join(artifactDir(artifactID), "attachment_files", fileName)
}

func indexHistoryPath(unixSeconds int64) string {
	return path.Join(versionsDir, fmt.Sprintf("index_his_%d.json", unixSeconds))
}

// contentExt picks the origin-file extension for an artifact type.
func contentExt(t artifact.Type) string {
	switch t {
	case artifact.TypeMarkdown, artifact.TypeNovel:
		return "md"
	case artifact.TypeHTML, artifact.TypeWebPages:
		return "html"
	case artifact.TypeJSON:
		return "json"
	case artifact.TypeCSV:
		return "csv"
	default:
		return "txt"
	}
}

// guessContentType maps a file name to a MIME type for object storage.
func guessContentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// descriptorForStorage builds the wire form of an artifact: a shallow copy
// whose sub-artifacts have their content cleared (when it was externalized
// to origin files) and their version history dropped to bound payload size.
func descriptorForStorage(a *artifact.Artifact, contentExternalized bool) *artifact.Artifact {
	doc := *a
	if len(a.Sublist) == 0 {
		return &doc
	}
	doc.Sublist = make([]*artifact.Artifact, len(a.Sublist))
	for i, sub := range a.Sublist {
		s := *sub
		s.VersionHistory = nil
		if contentExternalized {
			s.Content = ""
		}
		doc.Sublist[i] = &s
	}
	return &doc
}
