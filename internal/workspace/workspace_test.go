package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspacex/workspacex/internal/artifact"
	"github.com/workspacex/workspacex/internal/config"
	"github.com/workspacex/workspacex/internal/embed"
)

// Three 20-char segments with disjoint vocabularies, so each chunk embeds to
// an orthogonal vector under the static hash embedder.
const (
	segRed  = "red red red red red "
	segBlue = "blue blue blue blue "
	segWolf = "wolf wolf wolf wolf "
)

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.WorkspaceID = "ws-test"
	cfg.Name = "test workspace"
	cfg.Storage.LocalPath = dir
	cfg.Chunking.Provider = "character"
	cfg.Chunking.ChunkSize = 20
	cfg.Chunking.ChunkOverlap = 0
	cfg.Hybrid.Threshold = 0.6
	cfg.Hybrid.PreN = 1
	cfg.Hybrid.NextN = 1
	return cfg
}

func newTestWorkspace(t *testing.T, dir string) *Workspace {
	t.Helper()
	w, err := Open(context.Background(), testConfig(t, dir), WithEmbedder(embed.NewStaticEmbedder(64)))
	require.NoError(t, err)
	return w
}

func TestCreateAndRetrieveChunkWindow(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	a, err := w.CreateArtifact(ctx, "doc1", artifact.TypeText, segRed+segBlue+segWolf, nil)
	require.NoError(t, err)
	require.Len(t, a.ChunkList, 3)

	results, err := w.RetrieveChunks(ctx, artifact.ChunkSearchQuery{Query: "blue", PreN: 1, NextN: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)

	hit := results[0]
	assert.Equal(t, 1, hit.Chunk.Metadata.ChunkIndex)
	assert.Equal(t, segBlue, hit.Chunk.Content)
	assert.InDelta(t, 1.0, hit.Score, 1e-6)

	require.Len(t, hit.PreNChunks, 1)
	assert.Equal(t, segRed, hit.PreNChunks[0].Content)
	require.Len(t, hit.NextChunks, 1)
	assert.Equal(t, segWolf, hit.NextChunks[0].Content)
}

func TestDuplicateArtifactRejected(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	_, err := w.CreateArtifact(ctx, "doc1", artifact.TypeText, segRed, nil)
	require.NoError(t, err)

	_, err = w.CreateArtifact(ctx, "doc1", artifact.TypeText, segBlue, nil)
	assert.ErrorIs(t, err, ErrDuplicateArtifact)
}

func TestCreateArtifactGeneratesID(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	a, err := w.CreateArtifact(ctx, "", artifact.TypeText, segRed, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, artifact.StatusDraft, a.Status)
}

func TestMalformedQueryRejectedBeforeBackends(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	_, err := w.RetrieveChunks(ctx, artifact.ChunkSearchQuery{})
	assert.ErrorIs(t, err, artifact.ErrEmptyQuery)

	_, err = w.RetrieveArtifacts(ctx, artifact.HybridSearchQuery{})
	assert.ErrorIs(t, err, artifact.ErrEmptyQuery)
}

func TestHybridDisabledReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, t.TempDir())
	cfg.Hybrid.Enabled = false

	w, err := Open(ctx, cfg, WithEmbedder(embed.NewStaticEmbedder(64)))
	require.NoError(t, err)

	_, err = w.CreateArtifact(ctx, "doc1", artifact.TypeText, segBlue, nil)
	require.NoError(t, err)

	results, err := w.RetrieveChunks(ctx, artifact.ChunkSearchQuery{Query: "blue"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpdateArtifactReindexes(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	_, err := w.CreateArtifact(ctx, "doc1", artifact.TypeText, segBlue, nil)
	require.NoError(t, err)

	updated, err := w.UpdateArtifact(ctx, "doc1", segWolf, "swap content")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, artifact.StatusEdited, updated.Status)
	assert.GreaterOrEqual(t, len(updated.VersionHistory), 2)

	results, err := w.RetrieveChunks(ctx, artifact.ChunkSearchQuery{Query: "blue"})
	require.NoError(t, err)
	assert.Empty(t, results, "stale vectors must not survive an update")

	results, err = w.RetrieveChunks(ctx, artifact.ChunkSearchQuery{Query: "wolf"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, segWolf, results[0].Chunk.Content)
}

func TestUpdateUnknownArtifact(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	a, err := w.UpdateArtifact(ctx, "nope", segRed, "")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestDeleteArtifactIsSoftDelete(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	_, err := w.CreateArtifact(ctx, "doc1", artifact.TypeText, segBlue, nil)
	require.NoError(t, err)
	require.NoError(t, w.DeleteArtifact(ctx, "doc1"))

	results, err := w.RetrieveChunks(ctx, artifact.ChunkSearchQuery{Query: "blue"})
	require.NoError(t, err)
	assert.Empty(t, results)

	a, err := w.GetArtifact(ctx, "doc1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, artifact.StatusArchived, a.Status)

	assert.Empty(t, w.ListArtifacts())
}

func TestListArtifactsFiltersByType(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	_, err := w.CreateArtifact(ctx, "doc1", artifact.TypeText, segRed, nil)
	require.NoError(t, err)
	_, err = w.CreateArtifact(ctx, "doc2", artifact.TypeMarkdown, segBlue, nil)
	require.NoError(t, err)

	all := w.ListArtifacts()
	assert.Len(t, all, 2)

	md := w.ListArtifacts(artifact.TypeMarkdown)
	require.Len(t, md, 1)
	assert.Equal(t, "doc2", md[0].ID)
}

func TestRebuildIndexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	_, err := w.CreateArtifact(ctx, "doc1", artifact.TypeText, segRed+segBlue+segWolf, nil)
	require.NoError(t, err)

	require.NoError(t, w.RebuildIndex(ctx))
	require.NoError(t, w.RebuildIndex(ctx))

	results, err := w.RetrieveChunks(ctx, artifact.ChunkSearchQuery{Query: "blue"})
	require.NoError(t, err)
	require.Len(t, results, 1, "rebuild must not duplicate records")
	assert.Equal(t, segBlue, results[0].Chunk.Content)
}

func TestWorkspacePersistenceAcrossOpens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w1 := newTestWorkspace(t, dir)
	_, err := w1.CreateArtifact(ctx, "doc1", artifact.TypeText, segRed+segBlue+segWolf, nil)
	require.NoError(t, err)

	w2 := newTestWorkspace(t, dir)
	a, err := w2.GetArtifact(ctx, "doc1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, segRed+segBlue+segWolf, a.Content)

	// The fresh vector store is empty until the index is rebuilt.
	require.NoError(t, w2.RebuildIndex(ctx))
	results, err := w2.RetrieveChunks(ctx, artifact.ChunkSearchQuery{Query: "wolf"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, segWolf, results[0].Chunk.Content)
}

func TestSubArtifactContentResolution(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w1 := newTestWorkspace(t, dir)
	root := artifact.New("book1", artifact.TypeNovel, "", nil)
	root.AddSubArtifact(artifact.New("ch1", artifact.TypeMarkdown, segBlue, nil))
	require.NoError(t, w1.AddArtifact(ctx, root))

	// A fresh open rehydrates the descriptor with sub content externalized.
	w2 := newTestWorkspace(t, dir)
	got, err := w2.GetArtifact(ctx, "book1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Sublist, 1)
	assert.Equal(t, segBlue, got.Sublist[0].Content)

	// Sub-artifact chunks are searchable under the parent's sublist.
	require.NoError(t, w2.RebuildIndex(ctx))
	results, err := w2.RetrieveChunks(ctx, artifact.ChunkSearchQuery{Query: "blue"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ch1", results[0].Chunk.Metadata.ArtifactID)
	assert.Equal(t, "book1", results[0].Chunk.Metadata.ParentArtifactID)
}

func TestOnEventCallbacks(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	var events []EventType
	w.OnEvent(func(ev Event) { events = append(events, ev.Type) })

	_, err := w.CreateArtifact(ctx, "doc1", artifact.TypeText, segRed, nil)
	require.NoError(t, err)

	assert.Contains(t, events, EventArtifactIndexed)
	assert.Contains(t, events, EventArtifactCreated)
	assert.Contains(t, events, EventWorkspaceSaved)
}

func TestTreeRendering(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t, t.TempDir())

	root := artifact.New("book1", artifact.TypeNovel, "", nil)
	root.AddSubArtifact(artifact.New("ch1", artifact.TypeMarkdown, segRed, nil))
	root.AddSubArtifact(artifact.New("ch2", artifact.TypeMarkdown, segBlue, nil))
	require.NoError(t, w.AddArtifact(ctx, root))

	tree := w.Tree()
	require.Len(t, tree, 1)
	assert.Equal(t, "book1", tree[0].ID)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "ch1", tree[0].Children[0].ID)
	assert.Equal(t, "ch2", tree[0].Children[1].ID)
}
