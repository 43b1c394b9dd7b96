// Package sqlitestore is the persistent plug-in backend for store.Store,
// built on the pure-Go modernc.org/sqlite driver. It keeps an in-memory
// ordered index of keys for navigation (HigherKey/LowerKey/iteration) and
// persists (key,value) pairs as encoded blobs in one table per map.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/store"
)

// Store opens a single sqlite file and multiplexes every named OrderedMap
// onto its own table within it.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	maps   map[string]*Map
	closed bool
}

// Open creates or reopens the sqlite file at path and ensures the metadata
// tables exist.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.BackendError, "sqlitestore.Open", "open sqlite database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, dberrors.Wrap(dberrors.BackendError, "sqlitestore.Open", "enable WAL", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS corvus_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS corvus_catalog (
			name TEXT PRIMARY KEY
		);
	`); err != nil {
		_ = db.Close()
		return nil, dberrors.Wrap(dberrors.BackendError, "sqlitestore.Open", "create metadata tables", err)
	}

	s := &Store{db: db, path: path, maps: make(map[string]*Map)}

	names, err := s.LoadCatalog()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, name := range names {
		m, err := s.openMapLocked(name)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.maps[name] = m
	}
	return s, nil
}

func tableName(mapName string) string {
	return "corvus_map_" + strings.ReplaceAll(mapName, `"`, "")
}

func (s *Store) openMapLocked(name string) (*Map, error) {
	tbl := tableName(name)
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			k BLOB PRIMARY KEY,
			v BLOB NOT NULL
		)
	`, tbl))
	if err != nil {
		return nil, dberrors.Wrap(dberrors.BackendError, "sqlitestore.OpenMap", "create map table", err)
	}

	m := &Map{db: s.db, table: tbl, name: name}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) OpenMap(name string) (store.OrderedMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, dberrors.New(dberrors.StoreAlreadyClosed, "OpenMap", "store is closed")
	}
	if m, ok := s.maps[name]; ok {
		return m, nil
	}
	m, err := s.openMapLocked(name)
	if err != nil {
		return nil, err
	}
	s.maps[name] = m
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO corvus_catalog(name) VALUES (?)`, name); err != nil {
		return nil, dberrors.Wrap(dberrors.BackendError, "OpenMap", "record catalog entry", err)
	}
	return m, nil
}

func (s *Store) HasMap(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.maps[name]
	return ok
}

func (s *Store) CloseMap(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.maps[name]; ok {
		m.Dispose()
	}
	return nil
}

func (s *Store) RemoveMap(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.maps[name]
	if !ok {
		return nil
	}
	m.Dispose()
	delete(s.maps, name)
	if _, err := s.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, tableName(name))); err != nil {
		return dberrors.Wrap(dberrors.BackendError, "RemoveMap", "drop map table", err)
	}
	if _, err := s.db.Exec(`DELETE FROM corvus_catalog WHERE name = ?`, name); err != nil {
		return dberrors.Wrap(dberrors.BackendError, "RemoveMap", "remove catalog entry", err)
	}
	return nil
}

func (s *Store) StoreCatalog(names []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dberrors.Wrap(dberrors.BackendError, "StoreCatalog", "begin tx", err)
	}
	if _, err := tx.Exec(`DELETE FROM corvus_catalog`); err != nil {
		_ = tx.Rollback()
		return dberrors.Wrap(dberrors.BackendError, "StoreCatalog", "clear catalog", err)
	}
	for _, name := range names {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO corvus_catalog(name) VALUES (?)`, name); err != nil {
			_ = tx.Rollback()
			return dberrors.Wrap(dberrors.BackendError, "StoreCatalog", "insert catalog entry", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return dberrors.Wrap(dberrors.BackendError, "StoreCatalog", "commit tx", err)
	}
	return nil
}

func (s *Store) LoadCatalog() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM corvus_catalog ORDER BY name`)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.BackendError, "LoadCatalog", "query catalog", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, dberrors.Wrap(dberrors.BackendError, "LoadCatalog", "scan catalog row", err)
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) StoreVersion(v int) error {
	_, err := s.db.Exec(`INSERT INTO corvus_meta(key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprint(v))
	if err != nil {
		return dberrors.Wrap(dberrors.BackendError, "StoreVersion", "persist schema version", err)
	}
	return nil
}

func (s *Store) LoadVersion() (int, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM corvus_meta WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, dberrors.Wrap(dberrors.BackendError, "LoadVersion", "query schema version", err)
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, false, dberrors.Wrap(dberrors.EncodingError, "LoadVersion", "parse schema version", err)
	}
	return v, true, nil
}

func (s *Store) Commit() error { return nil }

func (s *Store) Compact() error {
	_, err := s.db.Exec(`VACUUM`)
	if err != nil {
		return dberrors.Wrap(dberrors.BackendError, "Compact", "vacuum database", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.maps {
		m.Dispose()
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return dberrors.Wrap(dberrors.BackendError, "Close", "close sqlite database", err)
	}
	return nil
}
