package domain

// QueryState tracks a question through the query pipeline.
type QueryState string

// Query states. Empty, Done and Failed are terminal.
const (
	QueryEmbedding  QueryState = "embedding"
	QueryRetrieving QueryState = "retrieving"
	QueryReranking  QueryState = "reranking"
	QueryGenerating QueryState = "generating"
	QueryEmpty      QueryState = "empty"
	QueryDone       QueryState = "done"
	QueryFailed     QueryState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s QueryState) Terminal() bool {
	return s == QueryEmpty || s == QueryDone || s == QueryFailed
}

// String returns the string representation.
func (s QueryState) String() string {
	return string(s)
}

// NoDocumentsMessage is shown when retrieval finds nothing for a question.
const NoDocumentsMessage = "No relevant documents found."

// NotFoundSentinel is the exact answer the model is told to give when the
// context does not contain the answer.
const NotFoundSentinel = "Information not found in provided documents."

// LexicalBackend selects how the retriever scores keyword relevance.
type LexicalBackend string

// Lexical backends.
const (
	// LexicalTSVector uses PostgreSQL built-in full text search.
	LexicalTSVector LexicalBackend = "tsvector"

	// LexicalParadeDB uses the pg_search BM25 index.
	LexicalParadeDB LexicalBackend = "paradedb"
)

// IsValid returns true if the backend is recognised.
func (b LexicalBackend) IsValid() bool {
	return b == LexicalTSVector || b == LexicalParadeDB
}

// RetrievalOptions tunes the hybrid retriever.
type RetrievalOptions struct {
	// Limit caps the number of candidates returned.
	Limit int

	// DistanceThreshold admits chunks whose cosine distance is below it
	// even without a lexical match.
	DistanceThreshold float64

	// Lexical selects the keyword scoring backend.
	Lexical LexicalBackend
}

// GenerationRequest is a single streaming completion request.
type GenerationRequest struct {
	Model  string
	Prompt string
	NumCtx int
}
