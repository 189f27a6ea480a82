package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// Exists reports whether any chunk is stored for filename.
func (s *Store) Exists(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM doc_chunks WHERE filename = $1)", filename,
	).Scan(&exists)
	if err != nil {
		return false, storeError("check existing document", err)
	}
	return exists, nil
}

// copyColumns is the COPY column order used by BulkLoad.
var copyColumns = []string{"content", "embedding", "filename", "page_number"}

// BulkLoad streams rows with COPY inside one transaction.
func (s *Store) BulkLoad(ctx context.Context, rows []domain.StoredChunk) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, r := range rows {
		if len(r.Embedding) != s.cfg.Dimensions {
			return 0, fmt.Errorf("%w: row %d of %s has %d dimensions, table has %d",
				domain.ErrStore, i, r.Filename, len(r.Embedding), s.cfg.Dimensions)
		}
	}

	var n int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		n, err = tx.CopyFrom(ctx, pgx.Identifier{"doc_chunks"}, copyColumns, copySource(rows))
		return err
	})
	if err != nil {
		return 0, storeError("bulk load", err)
	}
	return n, nil
}

func copySource(rows []domain.StoredChunk) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{r.Content, pgvector.NewVector(r.Embedding), r.Filename, r.PageNumber}, nil
	})
}

// HybridSearch fuses the lexical score with cosine similarity. A chunk
// qualifies by matching the query text or by lying within the distance
// threshold of the query vector.
func (s *Store) HybridSearch(
	ctx context.Context,
	query string,
	vector []float32,
	opts domain.RetrievalOptions,
) ([]domain.Candidate, error) {
	if opts.Lexical == "" {
		opts.Lexical = s.cfg.Lexical
	}
	sql, err := buildHybridQuery(opts.Lexical)
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	rows, err := s.pool.Query(ctx, sql, query, pgvector.NewVector(vector), opts.DistanceThreshold, opts.Limit)
	if err != nil {
		return nil, storeError("hybrid search", err)
	}

	candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Candidate, error) {
		var c domain.Candidate
		err := row.Scan(&c.ID, &c.Content, &c.Filename, &c.PageNumber, &c.Score)
		return c, err
	})
	if err != nil {
		return nil, storeError("scan candidates", err)
	}
	if candidates == nil {
		candidates = []domain.Candidate{}
	}
	return candidates, nil
}

// lexicalCTE returns the per-backend CTE yielding (id, score) for chunks
// matching $1.
func lexicalCTE(backend domain.LexicalBackend) (string, error) {
	switch backend {
	case domain.LexicalTSVector:
		return `SELECT id, ts_rank(to_tsvector('english', content), plainto_tsquery('english', $1)) AS score
        FROM doc_chunks
        WHERE to_tsvector('english', content) @@ plainto_tsquery('english', $1)`, nil
	case domain.LexicalParadeDB:
		return `SELECT id, paradedb.score(id) AS score
        FROM doc_chunks
        WHERE id @@@ paradedb.match('content', $1)`, nil
	default:
		return "", fmt.Errorf("%w: unknown lexical backend %q", domain.ErrInvalidInput, backend)
	}
}

// buildHybridQuery returns the retrieval SQL. Parameters: $1 query text,
// $2 query vector, $3 distance threshold, $4 limit.
func buildHybridQuery(backend domain.LexicalBackend) (string, error) {
	cte, err := lexicalCTE(backend)
	if err != nil {
		return "", err
	}
	return `WITH lexical AS (
        ` + cte + `
)
SELECT c.id, c.content, c.filename, c.page_number,
       (COALESCE(l.score, 0) + (1.0 - (c.embedding <=> $2)))::float8 AS combined_score
FROM doc_chunks c
LEFT JOIN lexical l ON l.id = c.id
WHERE l.id IS NOT NULL OR (c.embedding <=> $2) < $3
ORDER BY combined_score DESC
LIMIT $4`, nil
}

// Delete removes every chunk for filename.
func (s *Store) Delete(ctx context.Context, filename string) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM doc_chunks WHERE filename = $1", filename)
	if err != nil {
		return 0, storeError("delete document", err)
	}
	return tag.RowsAffected(), nil
}

// List summarises stored documents ordered by filename.
func (s *Store) List(ctx context.Context) ([]domain.DocumentInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT filename, COUNT(*), COUNT(DISTINCT page_number)
		FROM doc_chunks
		GROUP BY filename
		ORDER BY filename
	`)
	if err != nil {
		return nil, storeError("list documents", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DocumentInfo, error) {
		var d domain.DocumentInfo
		err := row.Scan(&d.Filename, &d.Chunks, &d.Pages)
		return d, err
	})
	if err != nil {
		return nil, storeError("scan documents", err)
	}
	return docs, nil
}
