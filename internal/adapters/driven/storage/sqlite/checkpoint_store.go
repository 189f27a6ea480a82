package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// CheckpointStore returns a driven.CheckpointStore backed by this store.
func (s *Store) CheckpointStore() driven.CheckpointStore {
	return &checkpointStore{store: s}
}

// checkpointStore implements driven.CheckpointStore.
type checkpointStore struct {
	store *Store
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

// Load reads a checkpoint. Vectors are the leading run of embedded rows.
func (c *checkpointStore) Load(ctx context.Context, filename string) (*domain.Checkpoint, error) {
	var total int
	err := c.store.db.QueryRowContext(ctx,
		"SELECT total FROM checkpoints WHERE filename = ?", filename).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}

	rows, err := c.store.db.QueryContext(ctx, `
		SELECT content, page_number, embedding
		FROM checkpoint_chunks
		WHERE filename = ?
		ORDER BY position
	`, filename)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint chunks: %w", err)
	}
	defer rows.Close()

	cp := &domain.Checkpoint{
		Filename: filename,
		Chunks:   make([]string, 0, total),
		Metadata: make([]domain.ChunkMeta, 0, total),
	}
	for rows.Next() {
		var (
			content string
			page    int
			blob    []byte
		)
		if err := rows.Scan(&content, &page, &blob); err != nil {
			return nil, fmt.Errorf("scan checkpoint chunk: %w", err)
		}
		cp.Chunks = append(cp.Chunks, content)
		cp.Metadata = append(cp.Metadata, domain.ChunkMeta{Filename: filename, PageNumber: page})
		if blob != nil && len(cp.Vectors) == len(cp.Chunks)-1 {
			cp.Vectors = append(cp.Vectors, bytesToFloat32Slice(blob))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint chunks: %w", err)
	}
	if len(cp.Chunks) != total {
		return nil, fmt.Errorf("checkpoint %s has %d of %d chunks", filename, len(cp.Chunks), total)
	}

	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return cp, nil
}

// Save writes the checkpoint in one transaction. When the stored chunk list
// matches, only rows without an embedding are updated.
func (c *checkpointStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored int
	err = tx.QueryRowContext(ctx, "SELECT total FROM checkpoints WHERE filename = ?", cp.Filename).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		stored = -1
	case err != nil:
		return fmt.Errorf("query checkpoint: %w", err)
	}

	if stored != len(cp.Chunks) {
		if err := c.rewrite(ctx, tx, cp); err != nil {
			return err
		}
	} else if err := c.fillVectors(ctx, tx, cp); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

func (c *checkpointStore) rewrite(ctx context.Context, tx *sql.Tx, cp *domain.Checkpoint) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM checkpoints WHERE filename = ?", cp.Filename); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO checkpoints (filename, total) VALUES (?, ?)", cp.Filename, len(cp.Chunks)); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO checkpoint_chunks (filename, position, content, page_number, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range cp.Chunks {
		var blob []byte
		if i < len(cp.Vectors) {
			blob = float32SliceToBytes(cp.Vectors[i])
		}
		if _, err := stmt.ExecContext(ctx, cp.Filename, i, chunk, cp.Metadata[i].PageNumber, blob); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return nil
}

func (c *checkpointStore) fillVectors(ctx context.Context, tx *sql.Tx, cp *domain.Checkpoint) error {
	var embedded int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM checkpoint_chunks WHERE filename = ? AND embedding IS NOT NULL",
		cp.Filename).Scan(&embedded)
	if err != nil {
		return fmt.Errorf("count embedded chunks: %w", err)
	}
	if embedded > len(cp.Vectors) {
		// Fewer vectors than stored: the caller restarted embedding.
		return c.rewrite(ctx, tx, cp)
	}

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE checkpoint_chunks SET embedding = ? WHERE filename = ? AND position = ?")
	if err != nil {
		return fmt.Errorf("prepare vector update: %w", err)
	}
	defer stmt.Close()

	for i := embedded; i < len(cp.Vectors); i++ {
		if _, err := stmt.ExecContext(ctx, float32SliceToBytes(cp.Vectors[i]), cp.Filename, i); err != nil {
			return fmt.Errorf("update vector %d: %w", i, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE checkpoints SET updated_at = CURRENT_TIMESTAMP WHERE filename = ?", cp.Filename); err != nil {
		return fmt.Errorf("touch checkpoint: %w", err)
	}
	return nil
}

// Delete removes a checkpoint and its chunks. Missing is not an error.
func (c *checkpointStore) Delete(ctx context.Context, filename string) error {
	if _, err := c.store.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE filename = ?", filename); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// List returns filenames with a checkpoint, sorted.
func (c *checkpointStore) List(ctx context.Context) ([]string, error) {
	rows, err := c.store.db.QueryContext(ctx, "SELECT filename FROM checkpoints ORDER BY filename")
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan checkpoint name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
