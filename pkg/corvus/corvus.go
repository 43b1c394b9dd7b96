// Package corvus is the public, embeddable surface of the database: open
// a Database, get named Collections or typed Repositories off of it, and
// run migrations and transactions against it. Everything else
// (internal/*) is the machine behind this facade.
package corvus

import (
	"sync"

	"github.com/corvusdb/corvus/internal/clog"
	"github.com/corvusdb/corvus/internal/collection"
	"github.com/corvusdb/corvus/internal/config"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/store/memstore"
	"github.com/corvusdb/corvus/internal/store/sqlitestore"
	"github.com/corvusdb/corvus/internal/txn"
)

// Database is the embeddable root handle: one storage backend, every
// collection opened against it, and the shared lock registry
// transactions serialize through.
type Database struct {
	mu          sync.RWMutex
	cfg         *config.Config
	store       store.Store
	collections map[string]*collection.Collection
	registry    *txn.LockRegistry
	log         *clog.Logger
}

// Open creates a Database over the backend named by cfg (memory or
// sqlite, per cfg.Backend); a nil cfg uses config.Default().
func Open(cfg *config.Config) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	log := clog.Default()
	if !cfg.Logging.Verbose {
		log.SetLevel(clog.LevelWarn)
	}

	var st store.Store
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlitestore.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		st = s
	default:
		st = memstore.NewStore()
	}

	db := &Database{
		cfg:         cfg,
		store:       st,
		collections: make(map[string]*collection.Collection),
		registry:    txn.NewLockRegistry(),
		log:         log,
	}

	names, err := st.LoadCatalog()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, err := db.openCollectionLocked(name); err != nil {
			return nil, err
		}
	}

	return db, nil
}

func (db *Database) collectionOptions() collection.Options {
	return collection.Options{
		PlanCacheSize:    db.cfg.Planner.PlanCacheSize,
		BuildConcurrency: db.cfg.Catalog.BuildConcurrency,
		StopWords:        db.cfg.Text.StopWords,
		Logger:           db.log,
	}
}

func (db *Database) openCollectionLocked(name string) (*collection.Collection, error) {
	if c, ok := db.collections[name]; ok {
		return c, nil
	}
	m, err := db.store.OpenMap(name)
	if err != nil {
		return nil, err
	}
	c, err := collection.New(name, m, db.collectionOptions())
	if err != nil {
		return nil, err
	}
	db.collections[name] = c
	return c, db.persistCatalogLocked()
}

func (db *Database) persistCatalogLocked() error {
	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	return db.store.StoreCatalog(names)
}

// Collection opens (creating if absent) the named collection.
func (db *Database) Collection(name string) (*collection.Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.openCollectionLocked(name)
}

// HasCollection reports whether name has been opened in this Database.
func (db *Database) HasCollection(name string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.collections[name]
	return ok
}

// CollectionNames lists every collection opened in this Database.
func (db *Database) CollectionNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]string, 0, len(db.collections))
	for name := range db.collections {
		out = append(out, name)
	}
	return out
}

// DropCollection removes a collection and its backing storage entirely.
// It implements migration.Runtime.
func (db *Database) DropCollection(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.collections[name]
	if !ok {
		return dberrors.New(dberrors.CollectionNotFound, "Database.DropCollection", "no such collection: "+name)
	}
	c.Drop()
	delete(db.collections, name)
	if err := db.store.RemoveMap(name); err != nil {
		return err
	}
	return db.persistCatalogLocked()
}

// RenameCollection moves every document from oldName to a freshly
// created collection newName, preserving document ids, then drops
// oldName. It implements migration.Runtime. Indexes are not carried
// over; callers that need them recreate them against newName.
func (db *Database) RenameCollection(oldName, newName string) error {
	db.mu.Lock()
	old, ok := db.collections[oldName]
	if !ok {
		db.mu.Unlock()
		return dberrors.New(dberrors.CollectionNotFound, "Database.RenameCollection", "no such collection: "+oldName)
	}
	db.mu.Unlock()

	target, err := db.Collection(newName)
	if err != nil {
		return err
	}

	cur, err := old.Find(matchAll(), findAllOptions())
	if err != nil {
		return err
	}
	docs, err := cur.All()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, err := target.Insert(doc); err != nil {
			return err
		}
	}

	return db.DropCollection(oldName)
}

// Session starts a new transaction session bound to this Database's
// lock registry.
func (db *Database) Session() *txn.Session {
	return txn.NewSession(db.registry)
}

// Close flushes and releases the underlying store.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Close()
}
