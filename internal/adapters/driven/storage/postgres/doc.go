// Package postgres implements the chunk store on PostgreSQL with pgvector.
//
// Rows live in doc_chunks (content, embedding, filename, page_number).
// Bulk loads use the COPY protocol inside a single transaction, so a
// document is either fully present or absent. HybridSearch fuses a lexical
// score with cosine similarity; the lexical side is either built-in
// full-text search (tsvector) or ParadeDB's BM25 (paradedb).
package postgres
