// Package config holds corvus's tunables: plan-cache sizing, index-build
// concurrency, tokenizer stop words, and the storage backend to open.
package config

import "time"

// Backend selects which OrderedMap implementation a Database opens its
// collections against.
type Backend int

const (
	// BackendMemory is the reference, in-memory OrderedMap (internal/store
	// memstore). It never persists across process restarts.
	BackendMemory Backend = iota
	// BackendSQLite is the plug-in persistent backend (internal/store
	// sqlitestore), a thin driver over modernc.org/sqlite.
	BackendSQLite
)

// Config is the top-level configuration holder passed to Open.
type Config struct {
	// Backend selects the storage driver; see Backend.
	Backend Backend
	// Path is the sqlite file path when Backend == BackendSQLite. Ignored
	// for BackendMemory.
	Path string

	Planner PlannerConfig
	Catalog CatalogConfig
	Text    TextIndexConfig
	Txn     TxnConfig
	Logging LoggingConfig
}

// PlannerConfig tunes the find-optimizer's plan cache.
type PlannerConfig struct {
	// PlanCacheSize bounds the number of cached plans; once the cache is
	// full, adding a plan evicts the least recently used one.
	PlanCacheSize int
}

// CatalogConfig tunes index build concurrency.
type CatalogConfig struct {
	// BuildConcurrency bounds the worker pool used by BuildIndex to fan the
	// data-map scan out across goroutines. 0 means "pick a small default".
	BuildConcurrency int
}

// TextIndexConfig configures the default English tokenizer.
type TextIndexConfig struct {
	StopWords []string
}

// TxnConfig tunes the transaction subsystem.
type TxnConfig struct {
	// LockTimeout is not read by the transaction layer: LockRegistry.Acquire
	// always waits until the per-collection lock is free, whatever this
	// field holds.
	LockTimeout time.Duration
}

// LoggingConfig configures the default logger's verbosity.
type LoggingConfig struct {
	Verbose bool
}

// Default returns corvus's default configuration: in-memory backend, a
// 100-entry plan cache, and English stop-word filtering for text indexes.
func Default() *Config {
	return &Config{
		Backend: BackendMemory,
		Planner: PlannerConfig{
			PlanCacheSize: 100,
		},
		Catalog: CatalogConfig{
			BuildConcurrency: 0,
		},
		Text: TextIndexConfig{
			StopWords: defaultEnglishStopWords,
		},
		Txn: TxnConfig{
			LockTimeout: 0,
		},
		Logging: LoggingConfig{
			Verbose: false,
		},
	}
}

var defaultEnglishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "if", "in", "into", "is", "it", "no", "not", "of",
	"on", "or", "such", "that", "the", "their", "then", "there",
	"these", "they", "this", "to", "was", "will", "with",
}
