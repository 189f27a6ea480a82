// Package file provides filesystem-backed implementations of driven ports.
//
// Adapters:
//   - ConfigStore: TOML configuration at ~/.pdfrag/config.toml
//   - PromptStore: user-editable prompt files under ~/.pdfrag/prompts
//   - CheckpointStore: one JSON file per in-progress document
package file
