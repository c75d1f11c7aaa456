package artifact

import "fmt"

// ChunkMetadata carries the identity and addressing fields of a chunk.
// ChunkIndex is the addressing key: for a fixed (artifact, parent) pair the
// indices form a dense sequence starting at 0, so a chunk's storage identity
// is fully determined by (ArtifactID, ChunkIndex) with no secondary index.
type ChunkMetadata struct {
	ChunkIndex       int    `json:"chunk_index"`
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	ArtifactID       string `json:"artifact_id"`
	ArtifactType     string `json:"artifact_type"`
	ParentArtifactID string `json:"parent_artifact_id"`
}

// Chunk is a contiguous, index-addressed segment of an artifact's content.
// Chunks are immutable once written; re-chunking replaces the whole set.
type Chunk struct {
	ID       string        `json:"chunk_id"`
	Metadata ChunkMetadata `json:"chunk_metadata"`
	Content  string        `json:"content"`
}

// NewChunk builds a chunk for the given owner with a deterministic ID.
func NewChunk(owner *Artifact, index int, content string, overlap int) *Chunk {
	return &Chunk{
		ID:      fmt.Sprintf("%s_chunk_%d", owner.ID, index),
		Content: content,
		Metadata: ChunkMetadata{
			ChunkIndex:       index,
			ChunkSize:        len(content),
			ChunkOverlap:     overlap,
			ArtifactID:       owner.ID,
			ArtifactType:     string(owner.Type),
			ParentArtifactID: owner.ParentID,
		},
	}
}

// FileName returns the deterministic storage file name for this chunk.
func (c *Chunk) FileName() string {
	return ChunkFileName(c.Metadata.ArtifactID, c.Metadata.ChunkIndex)
}

// ChunkFileName builds the storage file name for a chunk by (artifact, index).
// Both repository backends rely on this exact form.
func ChunkFileName(artifactID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d.json", artifactID, index)
}
