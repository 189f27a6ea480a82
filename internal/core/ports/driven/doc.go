// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Extractor: Renders a PDF into per-page text
//   - EmbeddingService: Generates vector embeddings in batches
//   - ChunkStore: Chunk persistence and hybrid retrieval (PostgreSQL)
//   - CheckpointStore: Durable embedding progress per file
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Reranker: Cross-encoder scoring. Without it, retriever order is kept.
//   - Generator: Streaming language model. Without it, only search is available.
//   - PromptStore: User-editable prompts. Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
