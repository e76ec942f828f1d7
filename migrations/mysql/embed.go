// Package mysql embebe las migraciones SQL de MySQL.
package mysql

import "embed"

// FS contiene las migraciones del schema de tokens para MySQL 8.0+.
//
//go:embed sql/*.sql
var FS embed.FS

// Dir es el directorio dentro de FS donde viven las migraciones.
const Dir = "sql"
