package migration

import "github.com/corvusdb/corvus/internal/collection"

// Runtime is the database-level surface a migration step needs: access
// to a named collection (opened if not already) and the two operations
// that act above a single collection's own API.
type Runtime interface {
	Collection(name string) (*collection.Collection, error)
	DropCollection(name string) error
	RenameCollection(oldName, newName string) error
}
