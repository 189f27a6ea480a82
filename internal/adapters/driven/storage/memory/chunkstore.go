package memory

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore is an in-memory driven.ChunkStore. HybridSearch mirrors the
// postgres policy: a row qualifies on a lexical match or a cosine distance
// under the threshold, and ranks by lexical score plus vector similarity.
type ChunkStore struct {
	mu     sync.RWMutex
	rows   []storedRow
	nextID int64
	err    error
}

type storedRow struct {
	id int64
	domain.StoredChunk
}

// NewChunkStore creates an empty in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{nextID: 1}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *ChunkStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// EnsureSchema is a no-op.
func (s *ChunkStore) EnsureSchema(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Exists reports whether any chunk belongs to filename.
func (s *ChunkStore) Exists(_ context.Context, filename string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, s.err
	}
	return slices.ContainsFunc(s.rows, func(r storedRow) bool { return r.Filename == filename }), nil
}

// BulkLoad appends rows. Nothing is stored when the store is failing.
func (s *ChunkStore) BulkLoad(_ context.Context, chunks []domain.StoredChunk) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	for _, c := range chunks {
		c.Embedding = slices.Clone(c.Embedding)
		s.rows = append(s.rows, storedRow{id: s.nextID, StoredChunk: c})
		s.nextID++
	}
	return int64(len(chunks)), nil
}

// HybridSearch scores every row against query and vector.
func (s *ChunkStore) HybridSearch(
	_ context.Context,
	query string,
	vector []float32,
	opts domain.RetrievalOptions,
) ([]domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}

	terms := tokenize(query)
	var out []domain.Candidate
	for _, r := range s.rows {
		lexical := lexicalScore(terms, r.Content)
		distance := CosineDistance(vector, r.Embedding)
		if lexical == 0 && distance >= opts.DistanceThreshold {
			continue
		}
		out = append(out, domain.Candidate{
			ID:         r.id,
			Content:    r.Content,
			Filename:   r.Filename,
			PageNumber: r.PageNumber,
			Score:      lexical + (1 - distance),
		})
	}

	slices.SortStableFunc(out, func(a, b domain.Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	if out == nil {
		out = []domain.Candidate{}
	}
	return out, nil
}

// Delete removes every chunk of filename.
func (s *ChunkStore) Delete(_ context.Context, filename string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	before := len(s.rows)
	s.rows = slices.DeleteFunc(s.rows, func(r storedRow) bool { return r.Filename == filename })
	return int64(before - len(s.rows)), nil
}

// List summarises stored documents by filename.
func (s *ChunkStore) List(_ context.Context) ([]domain.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}

	byName := make(map[string]*domain.DocumentInfo)
	pages := make(map[string]map[int]struct{})
	for _, r := range s.rows {
		info, ok := byName[r.Filename]
		if !ok {
			info = &domain.DocumentInfo{Filename: r.Filename}
			byName[r.Filename] = info
			pages[r.Filename] = make(map[int]struct{})
		}
		info.Chunks++
		pages[r.Filename][r.PageNumber] = struct{}{}
	}

	out := make([]domain.DocumentInfo, 0, len(byName))
	for name, info := range byName {
		info.Pages = len(pages[name])
		out = append(out, *info)
	}
	slices.SortFunc(out, func(a, b domain.DocumentInfo) int { return strings.Compare(a.Filename, b.Filename) })
	return out, nil
}

// Len returns the number of stored chunks.
func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Close is a no-op.
func (s *ChunkStore) Close() error {
	return nil
}

// CosineDistance returns 1 - cos(a, b), matching pgvector's <=> operator.
// Mismatched or zero-length vectors are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// lexicalScore is the share of content tokens that match a query term, or 0
// unless every query term occurs (plainto_tsquery ANDs its terms).
func lexicalScore(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	words := tokenize(content)
	if len(words) == 0 {
		return 0
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	hits := 0
	for _, t := range terms {
		if counts[t] == 0 {
			return 0
		}
		hits += counts[t]
	}
	return float64(hits) / float64(len(words))
}
