package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

func sampleCheckpoint() *domain.Checkpoint {
	return &domain.Checkpoint{
		Filename: "admin guide.pdf",
		Chunks:   []string{"first chunk", "second chunk", "third chunk"},
		Metadata: []domain.ChunkMeta{
			{Filename: "admin guide.pdf", PageNumber: 1},
			{Filename: "admin guide.pdf", PageNumber: 1},
			{Filename: "admin guide.pdf", PageNumber: 2},
		},
		Vectors: [][]float32{{0.25, -0.5}, {1, 0}},
	}
}

func TestCheckpointStore_RoundTrip(t *testing.T) {
	store, err := NewCheckpointStore(filepath.Join(t.TempDir(), "checkpoints"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleCheckpoint()))

	loaded, err := store.Load(ctx, "admin guide.pdf")
	require.NoError(t, err)
	assert.Equal(t, sampleCheckpoint(), loaded)
	assert.Equal(t, 2, loaded.Cursor())
}

func TestCheckpointStore_LoadMissing(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "none.pdf")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointStore_SaveOverwrites(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	cp := sampleCheckpoint()
	require.NoError(t, store.Save(ctx, cp))

	cp.Vectors = append(cp.Vectors, []float32{0, 1})
	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, cp.Filename)
	require.NoError(t, err)
	assert.True(t, loaded.Complete())

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestCheckpointStore_RejectsBadInput(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	err = store.Save(ctx, &domain.Checkpoint{Filename: "../escape.pdf"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = store.Save(ctx, &domain.Checkpoint{Filename: "a.pdf", Chunks: []string{"x"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Load(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckpointStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCheckpointStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.pdf"+checkpointSuffix), []byte("{"), 0o600))

	_, err = store.Load(context.Background(), "bad.pdf")

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointStore_ListAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCheckpointStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"b.pdf", "a.pdf"} {
		require.NoError(t, store.Save(ctx, &domain.Checkpoint{Filename: name}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, names)

	require.NoError(t, store.Delete(ctx, "a.pdf"))
	require.NoError(t, store.Delete(ctx, "a.pdf"))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf"}, names)
}
