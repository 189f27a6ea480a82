// Package sqlite stores embedding checkpoints in a local SQLite database.
//
// It uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. A checkpoint is one row in checkpoints plus one row per chunk in
// checkpoint_chunks; vectors are little-endian float32 blobs filled in as
// embedding progresses, so a save only writes the newly embedded rows.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory (NNN_name.up.sql).
//
// # Data Location
//
// The database lives at <dir>/checkpoints.db, where dir defaults to the
// ingest checkpoint directory.
package sqlite
