package sqlite

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testCheckpoint(n int) *domain.Checkpoint {
	cp := &domain.Checkpoint{Filename: "manual.pdf"}
	for i := range n {
		cp.Chunks = append(cp.Chunks, string(rune('a'+i)))
		cp.Metadata = append(cp.Metadata, domain.ChunkMeta{Filename: "manual.pdf", PageNumber: i/2 + 1})
	}
	return cp
}

func TestNewStore_RecordsMigrations(t *testing.T) {
	store := setupTestStore(t)

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	// Re-running is a no-op.
	require.NoError(t, store.migrate(fstest.MapFS{
		"001_checkpoints.up.sql": {Data: []byte("CREATE TABLE should_not_run (x INTEGER);")},
	}))
}

func TestStore_Migrate_AppliesNewVersions(t *testing.T) {
	store := setupTestStore(t)

	err := store.migrate(fstest.MapFS{
		"002_extra.up.sql":   {Data: []byte("CREATE TABLE extra (x INTEGER);")},
		"002_extra.down.sql": {Data: []byte("DROP TABLE extra;")},
		"README.md":          {Data: []byte("ignored")},
	})
	require.NoError(t, err)

	_, err = store.db.Exec("INSERT INTO extra (x) VALUES (1)")
	assert.NoError(t, err)
}

func TestCheckpointStore_LoadMissing(t *testing.T) {
	cps := setupTestStore(t).CheckpointStore()

	_, err := cps.Load(context.Background(), "missing.pdf")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckpointStore_SaveProgressively(t *testing.T) {
	store := setupTestStore(t)
	cps := store.CheckpointStore()
	ctx := context.Background()
	cp := testCheckpoint(4)

	require.NoError(t, cps.Save(ctx, cp))

	cp.Vectors = append(cp.Vectors, []float32{0.5, -1.25}, []float32{3, 4})
	require.NoError(t, cps.Save(ctx, cp))

	loaded, err := cps.Load(ctx, "manual.pdf")
	require.NoError(t, err)
	assert.Equal(t, cp.Chunks, loaded.Chunks)
	assert.Equal(t, cp.Metadata, loaded.Metadata)
	assert.Equal(t, cp.Vectors, loaded.Vectors)
	assert.Equal(t, 2, loaded.Cursor())

	cp.Vectors = append(cp.Vectors, []float32{5, 6}, []float32{7, 8})
	require.NoError(t, cps.Save(ctx, cp))

	loaded, err = cps.Load(ctx, "manual.pdf")
	require.NoError(t, err)
	assert.True(t, loaded.Complete())
	assert.Equal(t, []float32{7, 8}, loaded.Vectors[3])
}

func TestCheckpointStore_SaveRewritesOnChange(t *testing.T) {
	cps := setupTestStore(t).CheckpointStore()
	ctx := context.Background()

	first := testCheckpoint(3)
	first.Vectors = [][]float32{{1}, {2}}
	require.NoError(t, cps.Save(ctx, first))

	// Same chunk count, fewer vectors: embedding restarted.
	restarted := testCheckpoint(3)
	require.NoError(t, cps.Save(ctx, restarted))
	loaded, err := cps.Load(ctx, "manual.pdf")
	require.NoError(t, err)
	assert.Zero(t, loaded.Cursor())

	// Different chunk count: rechunked.
	require.NoError(t, cps.Save(ctx, testCheckpoint(5)))
	loaded, err = cps.Load(ctx, "manual.pdf")
	require.NoError(t, err)
	assert.Len(t, loaded.Chunks, 5)
}

func TestCheckpointStore_SaveRejectsInvalid(t *testing.T) {
	cps := setupTestStore(t).CheckpointStore()

	err := cps.Save(context.Background(), &domain.Checkpoint{Filename: "x.pdf", Chunks: []string{"a"}})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCheckpointStore_ListAndDelete(t *testing.T) {
	store := setupTestStore(t)
	cps := store.CheckpointStore()
	ctx := context.Background()

	for _, name := range []string{"b.pdf", "a.pdf"} {
		cp := testCheckpoint(2)
		cp.Filename = name
		require.NoError(t, cps.Save(ctx, cp))
	}

	names, err := cps.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, names)

	require.NoError(t, cps.Delete(ctx, "a.pdf"))
	require.NoError(t, cps.Delete(ctx, "a.pdf"))

	names, err = cps.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf"}, names)

	var orphans int
	require.NoError(t, store.db.QueryRow(
		"SELECT COUNT(*) FROM checkpoint_chunks WHERE filename = 'a.pdf'").Scan(&orphans))
	assert.Zero(t, orphans, "chunks cascade with their checkpoint")
}

func TestFloat32Blob(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}

	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Len(t, float32SliceToBytes(in), 16)
}
