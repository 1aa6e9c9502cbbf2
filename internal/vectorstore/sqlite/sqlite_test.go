package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbench/internal/domain"
	"ragbench/internal/vectorstore"
)

func sampleChunks() ([]domain.Chunk, [][]float64) {
	chunks := []domain.Chunk{
		{DocumentID: "d1", ChunkID: "d1:0", Index: 0, Text: "alpha", Metadata: map[string]string{domain.MetaSource: "a.pdf", domain.MetaPage: "0"}},
		{DocumentID: "d1", ChunkID: "d1:1", Index: 1, Text: "beta", Metadata: map[string]string{domain.MetaSource: "a.pdf", domain.MetaPage: "1"}},
		{DocumentID: "d2", ChunkID: "d2:0", Index: 0, Text: "gamma", Metadata: map[string]string{domain.MetaSource: "b.txt"}},
	}
	vectors := [][]float64{{1, 0, 0}, {0, 1, 0}, {0.5, 0.5, 0}}
	return chunks, vectors
}

func TestStoragePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vectordb")

	s := NewStorage(dir)
	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Init(ctx, 3))
	chunks, vectors := sampleChunks()
	require.NoError(t, s.Upsert(ctx, chunks, vectors))
	require.NoError(t, s.Close())

	reopened := NewStorage(dir)
	ok, err = reopened.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := reopened.Search(ctx, []float64{1, 0.2, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "d1:0", res[0].Chunk.ChunkID)
	assert.Equal(t, "d2:0", res[1].Chunk.ChunkID)
	assert.Equal(t, chunks[0], res[0].Chunk)
	assert.InDelta(t, 0.98, res[0].Score, 0.01)

	assert.ErrorIs(t, reopened.Init(ctx, 4), vectorstore.ErrDimensionMismatch)
	require.NoError(t, reopened.Close())
}

func TestStorageUpsertReplacesByChunkID(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(t.TempDir())
	defer s.Close()
	require.NoError(t, s.Init(ctx, 3))
	chunks, vectors := sampleChunks()
	require.NoError(t, s.Upsert(ctx, chunks, vectors))
	require.NoError(t, s.Upsert(ctx, chunks[:1], vectors[:1]))

	res, err := s.Search(ctx, []float64{1, 1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}

func TestStorageSearchWithoutDatabase(t *testing.T) {
	s := NewStorage(filepath.Join(t.TempDir(), "missing"))
	res, err := s.Search(context.Background(), []float64{1}, 4)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStorageResetRemovesLocation(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vectordb")
	s := NewStorage(dir)
	require.NoError(t, s.Init(ctx, 3))
	chunks, vectors := sampleChunks()
	require.NoError(t, s.Upsert(ctx, chunks, vectors))

	require.NoError(t, s.Reset(ctx))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, s.Upsert(ctx, chunks, vectors), vectorstore.ErrNotInitialized)
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Close())
}

func TestVectorEncoding(t *testing.T) {
	v := []float64{0.5, -1.25, 3}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
