// Package migrations embeds the goose SQL migrations so the binary
// can migrate regardless of its working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
