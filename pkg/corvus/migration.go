package corvus

import "github.com/corvusdb/corvus/internal/migration"

// Migrator returns a migration.Manager wired to this Database as its
// Runtime and store, targeting schemaVersion. Callers Register their
// Migrations on it and call Migrate once at startup, before any other
// collection access.
func (db *Database) Migrator(schemaVersion uint32) *migration.Manager {
	return migration.NewManager(db.store, db, schemaVersion)
}
