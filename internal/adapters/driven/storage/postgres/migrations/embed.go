// Package migrations embeds SQL migration templates for the postgres chunk store.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
// Files are text/template sources; {{.Dimensions}} is the vector width.
//
//go:embed *.sql
var FS embed.FS
