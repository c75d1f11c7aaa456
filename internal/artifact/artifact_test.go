package artifact

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesIDAndInitialVersion(t *testing.T) {
	a := New("", TypeText, "hello", nil)

	require.NotEmpty(t, a.ID)
	assert.Equal(t, StatusDraft, a.Status)
	require.Len(t, a.VersionHistory, 1)
	assert.Equal(t, "Initial version", a.VersionHistory[0].Description)
	assert.Equal(t, "hello", a.VersionHistory[0].Content)
}

func TestNew_KeepsExplicitID(t *testing.T) {
	a := New("doc1", TypeMarkdown, "# title", nil)
	assert.Equal(t, "doc1", a.ID)
}

func TestUpdateContent_TransitionsToEditedAndAppendsHistory(t *testing.T) {
	a := New("doc1", TypeText, "v1", nil)

	a.UpdateContent("v2", "second draft")

	assert.Equal(t, StatusEdited, a.Status)
	assert.Equal(t, "v2", a.Content)
	require.Len(t, a.VersionHistory, 2)
	assert.Equal(t, "second draft", a.VersionHistory[1].Description)
}

func TestMarkCompleteAndArchive_AppendHistory(t *testing.T) {
	a := New("doc1", TypeText, "v1", nil)

	a.MarkComplete()
	assert.Equal(t, StatusComplete, a.Status)

	a.Archive()
	assert.Equal(t, StatusArchived, a.Status)
	assert.Len(t, a.VersionHistory, 3)
}

func TestRevertToVersion_RestoresSnapshotAndGrowsHistory(t *testing.T) {
	a := New("doc1", TypeText, "v1", nil)
	a.UpdateContent("v2", "")
	a.UpdateContent("v3", "")
	require.Len(t, a.VersionHistory, 3)

	ok := a.RevertToVersion(0)

	require.True(t, ok)
	assert.Equal(t, "v1", a.Content)
	assert.Equal(t, StatusDraft, a.Status)
	// History never shrinks: revert appends a new record.
	require.Len(t, a.VersionHistory, 4)
	assert.Equal(t, "Reverted to version 0", a.VersionHistory[3].Description)
}

func TestRevertToVersion_OutOfRange(t *testing.T) {
	a := New("doc1", TypeText, "v1", nil)

	assert.False(t, a.RevertToVersion(-1))
	assert.False(t, a.RevertToVersion(5))
	assert.Len(t, a.VersionHistory, 1)
}

func TestAddSubArtifact_StampsParentID(t *testing.T) {
	parent := New("parent", TypeNovel, "", nil)
	child := New("child", TypeText, "chapter one", nil)

	parent.AddSubArtifact(child)

	require.Len(t, parent.Sublist, 1)
	assert.Equal(t, "parent", parent.Sublist[0].ParentID)
}

func TestArtifact_JSONRoundTrip(t *testing.T) {
	parent := New("parent", TypeNovel, "book", map[string]any{"author": "nobody"})
	child := New("child", TypeText, "chapter one", nil)
	parent.AddSubArtifact(child)
	parent.MarkComplete()

	data, err := json.Marshal(parent)
	require.NoError(t, err)

	var got Artifact
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, parent.ID, got.ID)
	assert.Equal(t, parent.Type, got.Type)
	assert.Equal(t, parent.Content, got.Content)
	assert.Equal(t, parent.Status, got.Status)
	assert.Equal(t, "nobody", got.Metadata["author"])
	require.Len(t, got.Sublist, 1)
	assert.Equal(t, "child", got.Sublist[0].ID)
	assert.Equal(t, "parent", got.Sublist[0].ParentID)
}

func TestParseType_RejectsUnknown(t *testing.T) {
	_, err := ParseType("SPREADSHEET")
	require.Error(t, err)

	typ, err := ParseType("MARKDOWN")
	require.NoError(t, err)
	assert.Equal(t, TypeMarkdown, typ)
}

func TestChunkFileName_Deterministic(t *testing.T) {
	owner := New("doc1", TypeText, "content", nil)
	c := NewChunk(owner, 4, "part", 16)

	assert.Equal(t, "doc1_chunk_4.json", c.FileName())
	assert.Equal(t, "doc1_chunk_4", c.ID)
	assert.Equal(t, 4, c.Metadata.ChunkIndex)
	assert.Equal(t, len("part"), c.Metadata.ChunkSize)
	assert.Equal(t, "doc1", c.Metadata.ArtifactID)
}

func TestChunkSearchQuery_Validate(t *testing.T) {
	q := &ChunkSearchQuery{}
	assert.ErrorIs(t, q.Validate(), ErrEmptyQuery)

	q = &ChunkSearchQuery{Query: "alpha"}
	require.NoError(t, q.Validate())
	assert.Equal(t, DefaultSearchLimit, q.Limit)
	assert.InDelta(t, DefaultSearchThreshold, q.Threshold, 1e-9)
	assert.Equal(t, DefaultWindowSize, q.PreN)
	assert.Equal(t, DefaultWindowSize, q.NextN)
}
