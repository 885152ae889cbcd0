// Package migrations embeds the goose migrations for each supported
// database, one directory per dialect.
package migrations

import "embed"

const (
	DirPostgres = "postgres"
	DirSQLite   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS
