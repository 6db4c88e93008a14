package store_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/resumatch/pkg/llm"
	"github.com/xhad/resumatch/pkg/store"
)

func resumeChunks() []schema.Document {
	return []schema.Document{
		{PageContent: "Jane Doe, backend engineer", Metadata: map[string]any{"Header 1": "Jane Doe"}},
		{PageContent: "Operated Kubernetes clusters and wrote Go services", Metadata: map[string]any{"Header 1": "Jane Doe", "Header 2": "Experience"}},
		{PageContent: "Watercolour painting and hiking", Metadata: map[string]any{"Header 1": "Jane Doe", "Header 2": "Hobbies"}},
	}
}

func newDisk(t *testing.T) (*store.Disk, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "vector_db")
	s, err := store.NewDisk(dir, llm.NewHashEmbedder(64))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, dir
}

func TestDisk_AddAndQuery(t *testing.T) {
	ctx := context.Background()
	s, dir := newDisk(t)

	n, err := s.Add(ctx, "sess-1_abc123abc123", "jane.pdf", resumeChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.FileExists(t, filepath.Join(dir, "sess-1_abc123abc123.json"))

	docs, err := s.Query(ctx, "sess-1_abc123abc123", "kubernetes go", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].PageContent, "Kubernetes")
	assert.GreaterOrEqual(t, docs[0].Score, docs[1].Score)
	assert.Equal(t, "jane.pdf", docs[0].Metadata[store.SourceKey])
	assert.Equal(t, "Experience", docs[0].Metadata["Header 2"])
}

func TestDisk_QueryReturnsAtMostAvailable(t *testing.T) {
	ctx := context.Background()
	s, _ := newDisk(t)

	_, err := s.Add(ctx, "c1", "jane.pdf", resumeChunks())
	require.NoError(t, err)

	docs, err := s.Query(ctx, "c1", "anything", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestDisk_MissingCollectionIsEmpty(t *testing.T) {
	s, _ := newDisk(t)

	docs, err := s.Query(context.Background(), "never_created", "go", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDisk_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, _ := newDisk(t)

	_, err := s.Add(ctx, "a_000000000001", "a.md", []schema.Document{{PageContent: "Rust embedded firmware"}})
	require.NoError(t, err)
	_, err = s.Add(ctx, "b_000000000002", "b.md", []schema.Document{{PageContent: "Go distributed systems"}})
	require.NoError(t, err)

	docs, err := s.Query(ctx, "a_000000000001", "go distributed systems", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Rust embedded firmware", docs[0].PageContent)
}

func TestDisk_DuplicateSourceRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newDisk(t)

	_, err := s.Add(ctx, "c1", "jane.pdf", resumeChunks())
	require.NoError(t, err)

	_, err = s.Add(ctx, "c1", "jane.pdf", resumeChunks())
	assert.ErrorIs(t, err, store.ErrDuplicateSource)

	docs, err := s.Query(ctx, "c1", "jane", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestDisk_InvalidCollection(t *testing.T) {
	ctx := context.Background()
	s, _ := newDisk(t)

	_, err := s.Add(ctx, "../escape", "x.md", resumeChunks())
	assert.ErrorIs(t, err, store.ErrInvalidCollection)

	_, err = s.Query(ctx, "", "x", 1)
	assert.ErrorIs(t, err, store.ErrInvalidCollection)
}

func TestDisk_ReopenReadsPersistedData(t *testing.T) {
	ctx := context.Background()
	s, dir := newDisk(t)

	_, err := s.Add(ctx, "c1", "jane.pdf", resumeChunks())
	require.NoError(t, err)

	reopened, err := store.NewDisk(dir, llm.NewHashEmbedder(64))
	require.NoError(t, err)

	docs, err := reopened.Query(ctx, "c1", "watercolour", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "Watercolour")
}

func TestDisk_Reset(t *testing.T) {
	ctx := context.Background()
	s, dir := newDisk(t)

	_, err := s.Add(ctx, "c1", "jane.pdf", resumeChunks())
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	docs, err := s.Query(ctx, "c1", "jane", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDisk_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s, _ := newDisk(t)

	sources := []string{"a.md", "b.md", "c.md", "d.md"}
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			_, err := s.Add(ctx, "shared", src, []schema.Document{{PageContent: "chunk from " + src}})
			assert.NoError(t, err)
		}(src)
	}
	wg.Wait()

	docs, err := s.Query(ctx, "shared", "chunk", 10)
	require.NoError(t, err)
	assert.Len(t, docs, len(sources))
}
