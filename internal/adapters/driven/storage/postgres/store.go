package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"text/template"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.ChunkStore = (*Store)(nil)

// DefaultDimensions matches voyage-code-3.
const DefaultDimensions = 1024

// Config configures the chunk store.
type Config struct {
	// ConnString is a postgres:// URL or key=value DSN.
	ConnString string

	// Dimensions is the embedding width used when creating the table.
	Dimensions int

	// Lexical selects the full-text backend; paradedb also creates a BM25 index.
	Lexical domain.LexicalBackend

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
}

// Store is a pgxpool-backed driven.ChunkStore.
type Store struct {
	pool *pgxpool.Pool
	cfg  Config
}

// New connects to PostgreSQL. The vector extension is created on a single
// connection first because the pool registers pgvector types on connect,
// which needs the type to exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Lexical == "" {
		cfg.Lexical = domain.LexicalTSVector
	}
	if !cfg.Lexical.IsValid() {
		return nil, fmt.Errorf("%w: unknown lexical backend %q", domain.ErrInvalidInput, cfg.Lexical)
	}

	if err := ensureExtensions(ctx, cfg); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection string: %w", domain.ErrStore, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %w", domain.ErrStore, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", domain.ErrStore, err)
	}

	logger.Debug("Connected to postgres (%s lexical backend)", cfg.Lexical)
	return &Store{pool: pool, cfg: cfg}, nil
}

func ensureExtensions(ctx context.Context, cfg Config) error {
	conn, err := pgx.Connect(ctx, cfg.ConnString)
	if err != nil {
		return fmt.Errorf("%w: connect: %w", domain.ErrStore, err)
	}
	defer conn.Close(ctx)

	for _, stmt := range extensionStatements(cfg.Lexical) {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrStore, stmt, err)
		}
	}
	return nil
}

func extensionStatements(lexical domain.LexicalBackend) []string {
	stmts := []string{"CREATE EXTENSION IF NOT EXISTS vector"}
	if lexical == domain.LexicalParadeDB {
		stmts = append(stmts, "CREATE EXTENSION IF NOT EXISTS pg_search")
	}
	return stmts
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// EnsureSchema applies pending migrations and, for paradedb, the BM25 index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	if s.cfg.Lexical == domain.LexicalParadeDB {
		if _, err := s.pool.Exec(ctx, bm25IndexSQL); err != nil {
			return fmt.Errorf("%w: create bm25 index: %w", domain.ErrStore, err)
		}
	}
	return nil
}

const bm25IndexSQL = `CREATE INDEX IF NOT EXISTS doc_chunks_bm25_idx
    ON doc_chunks USING bm25 (id, content) WITH (key_field = 'id')`

// migrate runs every NNN_*.up.sql newer than the recorded version, each in
// its own transaction together with its schema_migrations row.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	pending, err := pendingMigrations(fsys, current)
	if err != nil {
		return err
	}

	for _, m := range pending {
		sql, err := renderMigration(fsys, m.name, s.cfg.Dimensions)
		if err != nil {
			return err
		}
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, sql); err != nil {
				return fmt.Errorf("executing migration %s: %w", m.name, err)
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version)
			return err
		})
		if err != nil {
			return err
		}
		logger.Info("Applied migration %s", m.name)
	}
	return nil
}

type migration struct {
	version int
	name    string
}

func pendingMigrations(fsys fs.FS, current int) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version > current {
			out = append(out, migration{version: version, name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func renderMigration(fsys fs.FS, name string, dimensions int) (string, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", fmt.Errorf("reading migration %s: %w", name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parsing migration %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Dimensions int }{dimensions}); err != nil {
		return "", fmt.Errorf("rendering migration %s: %w", name, err)
	}
	return buf.String(), nil
}

// storeError wraps err with domain.ErrStore unless it is a context error.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}
