// Package migrations embeds the SQL migration files into the binary so the
// migrate command does not need them on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
