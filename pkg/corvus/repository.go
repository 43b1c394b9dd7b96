package corvus

import "github.com/corvusdb/corvus/internal/repository"

// OpenRepository returns a typed Repository[T] over the named
// collection, opening it first if needed. Go forbids generic methods,
// so this lives as a package-level function rather than Database.Repository.
func OpenRepository[T any](db *Database, collectionName string) (*repository.Repository[T], error) {
	coll, err := db.Collection(collectionName)
	if err != nil {
		return nil, err
	}
	return repository.New[T](coll)
}
