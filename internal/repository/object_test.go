package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspacex/workspacex/internal/artifact"
)

// fakeObjectStore is an in-memory objectStore. It honors context
// cancellation like a real client and can fail a chosen Put call.
type fakeObjectStore struct {
	objects   map[string][]byte
	puts      int
	failPutAt int          // fail the Nth Put call (1-based) when non-zero
	onPut     func(n int)  // invoked after each successful Put
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.puts++
	if f.failPutAt != 0 && f.puts == f.failPutAt {
		return fmt.Errorf("injected put failure on %s", key)
	}
	f.objects[key] = append([]byte(nil), data...)
	if f.onPut != nil {
		f.onPut(f.puts)
	}
	return nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeObjectStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeObjectStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, ok := f.objects[srcKey]
	if !ok {
		return fmt.Errorf("copy source %s does not exist", srcKey)
	}
	f.objects[dstKey] = append([]byte(nil), src...)
	return nil
}

func (f *fakeObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := f.objects[key]
	return ok, nil
}

var _ objectStore = (*fakeObjectStore)(nil)

func newObjectTestRepo(t *testing.T) (*ObjectRepository, *fakeObjectStore) {
	t.Helper()
	fake := &fakeObjectStore{objects: make(map[string][]byte)}
	repo := &ObjectRepository{store: fake, prefix: "ws", logger: slog.Default()}
	return repo, fake
}

func TestObjectConfig_Validate(t *testing.T) {
	cfg := ObjectConfig{
		Endpoint:        "localhost:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "workspaces",
	}
	require.NoError(t, cfg.Validate())

	for name, mutate := range map[string]func(*ObjectConfig){
		"endpoint": func(c *ObjectConfig) { c.Endpoint = "" },
		"bucket":   func(c *ObjectConfig) { c.Bucket = "" },
		"key":      func(c *ObjectConfig) { c.AccessKeyID = "" },
		"secret":   func(c *ObjectConfig) { c.SecretAccessKey = "" },
	} {
		bad := cfg
		mutate(&bad)
		assert.Error(t, bad.Validate(), name)
	}
}

func TestObjectStoreArtifactChunks_RoundTrip(t *testing.T) {
	repo, _ := newObjectTestRepo(t)
	ctx := context.Background()

	a := artifact.New("doc1", artifact.TypeText, "content", nil)
	written := makeChunks(a, 5)
	require.NoError(t, repo.StoreArtifactChunks(ctx, a, written))

	got, err := repo.GetChunks(ctx, a.ID, a.ParentID)
	require.NoError(t, err)
	require.Len(t, got, 5)
	sort.Slice(got, func(i, j int) bool {
		return got[i].Metadata.ChunkIndex < got[j].Metadata.ChunkIndex
	})
	for i, c := range got {
		assert.Equal(t, i, c.Metadata.ChunkIndex)
		assert.Equal(t, written[i].Content, c.Content)
	}

	// A rewrite with fewer chunks leaves no stale objects behind.
	require.NoError(t, repo.StoreArtifactChunks(ctx, a, makeChunks(a, 2)))
	got, err = repo.GetChunks(ctx, a.ID, a.ParentID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestObjectStoreArtifactChunks_FailedWriteLeavesNoPartialSet(t *testing.T) {
	repo, fake := newObjectTestRepo(t)
	ctx := context.Background()

	a := artifact.New("doc1", artifact.TypeText, "content", nil)
	require.NoError(t, repo.StoreArtifactChunks(ctx, a, makeChunks(a, 3)))

	// The third chunk of the rewrite fails after two were already written.
	fake.failPutAt = fake.puts + 3
	err := repo.StoreArtifactChunks(ctx, a, makeChunks(a, 5))
	require.Error(t, err)

	// The objects written before the failure are rolled back, so a reader
	// never sees a half-written chunk set.
	got, err := repo.GetChunks(ctx, a.ID, a.ParentID)
	require.NoError(t, err)
	assert.Empty(t, got)
	for key := range fake.objects {
		assert.NotContains(t, key, "/chunks/")
	}
}

func TestObjectStoreArtifactChunks_RollbackSurvivesCancelledContext(t *testing.T) {
	repo, fake := newObjectTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := artifact.New("doc1", artifact.TypeText, "content", nil)

	// Cancel after the first chunk lands; the second write then fails and
	// the rollback must still be able to remove the first object.
	fake.onPut = func(int) { cancel() }
	err := repo.StoreArtifactChunks(ctx, a, makeChunks(a, 3))
	require.ErrorIs(t, err, context.Canceled)

	for key := range fake.objects {
		assert.NotContains(t, key, "/chunks/")
	}
}

func TestObjectStoreIndex_VersionsPreviousCopy(t *testing.T) {
	repo, fake := newObjectTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreIndex(ctx, map[string]any{"workspace_id": "ws1"}))
	require.NoError(t, repo.StoreIndex(ctx, map[string]any{"workspace_id": "ws1", "name": "renamed"}))

	index, err := repo.LoadIndex(ctx)
	require.NoError(t, err)
	require.NotNil(t, index)
	ws, ok := index["workspace"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "renamed", ws["name"])

	var versioned int
	for key := range fake.objects {
		if strings.HasPrefix(key, "ws/versions/index_his_") {
			versioned++
		}
	}
	assert.Equal(t, 1, versioned, "previous index must be copied into versions/")
}

func TestObjectStoreArtifact_SublistContentExternalized(t *testing.T) {
	repo, _ := newObjectTestRepo(t)
	ctx := context.Background()

	parent := artifact.New("book1", artifact.TypeNovel, "", nil)
	sub := artifact.New("ch1", artifact.TypeText, "chapter one text", nil)
	parent.AddSubArtifact(sub)

	require.NoError(t, repo.StoreArtifact(ctx, parent, true))

	content, err := repo.GetSubArtifactContent(ctx, sub.ID, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "chapter one text", content)

	stored, err := repo.RetrieveArtifact(ctx, parent.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Sublist, 1)
	assert.Empty(t, stored.Sublist[0].Content)
}

func TestObjectGetChunkWindow_BoundaryTruncation(t *testing.T) {
	repo, _ := newObjectTestRepo(t)
	ctx := context.Background()

	a := artifact.New("doc1", artifact.TypeText, "content", nil)
	require.NoError(t, repo.StoreArtifactChunks(ctx, a, makeChunks(a, 4)))

	w, err := repo.GetChunkWindow(ctx, a.ID, a.ParentID, 3, 2, 2)
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Len(t, w.Pre, 2)
	assert.Equal(t, 2, w.Pre[0].Metadata.ChunkIndex)
	assert.Equal(t, 3, w.Target.Metadata.ChunkIndex)
	assert.Empty(t, w.Next)

	w, err = repo.GetChunkWindow(ctx, a.ID, a.ParentID, 9, 1, 1)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestObjectAttachmentFiles_RoundTrip(t *testing.T) {
	repo, _ := newObjectTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreAttachmentFile(ctx, "doc1", "notes.txt", strings.NewReader("attachment bytes")))

	got, err := repo.GetAttachmentFile(ctx, "doc1", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("attachment bytes"), got)

	missing, err := repo.GetAttachmentFile(ctx, "doc1", "ghost.txt")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestObjectMissingReads(t *testing.T) {
	repo, _ := newObjectTestRepo(t)
	ctx := context.Background()

	a, err := repo.RetrieveArtifact(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, a)

	index, err := repo.LoadIndex(ctx)
	require.NoError(t, err)
	assert.Nil(t, index)

	chunks, err := repo.GetChunks(ctx, "ghost", "")
	require.NoError(t, err)
	assert.Nil(t, chunks)

	content, err := repo.GetSubArtifactContent(ctx, "ghost", "book1")
	require.NoError(t, err)
	assert.Empty(t, content)
}
