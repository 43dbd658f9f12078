package migrations

import "embed"

// Migrations holds the credential store schema, applied by the sqlite driver.
//
//go:embed *.sql
var Migrations embed.FS
