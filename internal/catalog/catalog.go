// Package catalog implements corvus's L3 index catalogue: the registry of
// index descriptors per collection, concurrent index building over a
// worker pool, and the dirty/version tracking the planner's plan cache
// keys off of.
package catalog

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/corvusdb/corvus/internal/clog"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/value"
)

// Descriptor records the fields, type, and uniqueness of one index.
type Descriptor struct {
	Fields []string
	Type   index.Type
	Unique bool
}

// Name derives the catalogue key for a descriptor, matching the
// reference's "derive_index_map_name" convention of joining field names.
func (d Descriptor) Name() string {
	out := ""
	for i, f := range d.Fields {
		if i > 0 {
			out += "_"
		}
		out += f
	}
	return out
}

type entry struct {
	descriptor Descriptor
	idx        index.Index
	building   atomic.Bool
}

// Catalog owns every index built for one collection and the version
// counter the planner's plan cache validates against.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*entry
	version atomic.Uint64
	pool    *ants.Pool
	log     *clog.Logger
	tokenizer index.Tokenizer
}

// New creates a catalogue whose concurrent index builds run over an ants
// pool sized by concurrency (0 or less uses runtime.NumCPU()).
func New(concurrency int, tokenizer index.Tokenizer, log *clog.Logger) (*Catalog, error) {
	if log == nil {
		log = clog.Nop()
	}
	size := concurrency
	if size <= 0 {
		size = runtime.NumCPU()
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.InternalError, "catalog.New", "create worker pool", err)
	}
	return &Catalog{
		entries:   make(map[string]*entry),
		pool:      pool,
		log:       log,
		tokenizer: tokenizer,
	}, nil
}

// Version returns the monotonic catalogue version, bumped on every
// structural change (index create/drop), used by the planner to
// invalidate stale cached plans.
func (c *Catalog) Version() uint64 { return c.version.Load() }

func (c *Catalog) bumpVersion() { c.version.Add(1) }

// HasIndex reports whether an index over exactly these fields exists.
func (c *Catalog) HasIndex(fields []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[Descriptor{Fields: fields}.Name()]
	return ok
}

// Descriptors returns every registered index descriptor.
func (c *Catalog) Descriptors() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Descriptor, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.descriptor)
	}
	return out
}

// IndexFor returns the live index for a descriptor name, if registered.
func (c *Catalog) IndexFor(name string) (index.Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	return e.idx, true
}

// CreateIndex registers a descriptor with its (still empty) index and
// bumps the catalogue version. Filling the index from existing documents
// is a separate BuildIndex call.
func (c *Catalog) CreateIndex(desc Descriptor, idx index.Index) error {
	name := desc.Name()

	c.mu.Lock()
	if _, exists := c.entries[name]; exists {
		c.mu.Unlock()
		return dberrors.New(dberrors.IndexAlreadyExists, "CreateIndex", "index already exists on fields "+name)
	}
	e := &entry{descriptor: desc, idx: idx}
	c.entries[name] = e
	c.mu.Unlock()

	c.bumpVersion()
	return nil
}

// DropIndex removes a registered index.
func (c *Catalog) DropIndex(name string) error {
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		c.mu.Unlock()
		return dberrors.New(dberrors.IndexNotFound, "DropIndex", "no index on fields "+name)
	}
	if e.building.Load() {
		c.mu.Unlock()
		return dberrors.New(dberrors.IndexingInProgress, "DropIndex", "index build in progress for "+name)
	}
	delete(c.entries, name)
	c.mu.Unlock()

	e.idx.Clear()
	c.bumpVersion()
	return nil
}

// BuildTask is one piece of work handed to the worker pool: index docID
// using the already-extracted field values.
type BuildTask struct {
	DocID       uint64
	FieldValues []value.Value
}

// BuildIndex feeds tasks into the index's Write method using the
// catalogue's worker pool, running up to the pool's concurrency limit in
// parallel while holding the entry's building flag so a concurrent
// CreateIndex/DropIndex on the same descriptor is rejected mid-build.
func (c *Catalog) BuildIndex(name string, tasks []BuildTask) error {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return dberrors.New(dberrors.IndexNotFound, "BuildIndex", "no index on fields "+name)
	}

	if !e.building.CompareAndSwap(false, true) {
		return dberrors.New(dberrors.IndexingInProgress, "BuildIndex", "index build already in progress for "+name)
	}
	defer e.building.Store(false)

	var wg sync.WaitGroup
	errCh := make(chan error, len(tasks))
	for _, task := range tasks {
		task := task
		wg.Add(1)
		submitErr := c.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errCh <- dberrors.New(dberrors.IndexBuildFailed, "BuildIndex", "panic while indexing a document")
					c.log.Error("index build task panicked: %v", r)
				}
			}()
			if err := e.idx.Write(task.DocID, task.FieldValues); err != nil {
				errCh <- err
			}
		})
		if submitErr != nil {
			wg.Done()
			errCh <- dberrors.Wrap(dberrors.IndexBuildFailed, "BuildIndex", "submit build task", submitErr)
		}
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	c.bumpVersion()
	return nil
}

// Close releases the worker pool.
func (c *Catalog) Close() {
	c.pool.Release()
}
