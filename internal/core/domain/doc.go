// Package domain defines the core business entities for pdfrag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Page: Rendered text of one PDF page
//   - Checkpoint: Durable embedding progress for one file
//   - StoredChunk: A chunk with its embedding, as persisted
//   - Candidate: A retrieved and scored chunk
//   - AppSettings: Resolved configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
