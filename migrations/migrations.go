// Package migrations bundles the registry's SQL schema so the server binary
// can migrate a database without shipping the .sql files alongside it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
