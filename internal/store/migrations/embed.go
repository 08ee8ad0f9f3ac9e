// Package migrations holds the schema for the per-session wppcrm.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
