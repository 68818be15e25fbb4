// Package migrations embebe los archivos SQL de migración.
package migrations

import "embed"

// PostgresFS contiene las migraciones del schema de firmas y multisig.
//
//go:embed schema/*.sql
var PostgresFS embed.FS

// PostgresDir es el directorio dentro de PostgresFS.
const PostgresDir = "schema"
