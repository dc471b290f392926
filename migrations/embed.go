// Package migrations embeds the SQL schema applied by `wastectl migrate up`.
package migrations

import "embed"

// Files holds the ordered *.sql migrations.
//
//go:embed *.sql
var Files embed.FS
