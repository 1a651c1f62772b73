// Package migrations embeds the schema files applied at startup so the
// binary carries its own schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
