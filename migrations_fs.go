package dispatcher

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the dispatcher schema: descriptor catalog, generic
// entities and the call log, with sqlite alternatives under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
