// Package migrations holds the SQL schema for the relational backends. The
// files are embedded so the server and the migrate CLI need no copy on disk.
package migrations

import "embed"

// FS contains every NNNNNN_name.{up,down}.sql pair in this directory.
//
//go:embed *.sql
var FS embed.FS
