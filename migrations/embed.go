// Package migrations embeds SQL migration files into the binary.
//
// Importing this package for its side effect registers the schema with
// the database package, so meshgate can migrate without the SQL files
// present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/meshgate-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
