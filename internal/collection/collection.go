// Package collection implements corvus's L5 collection operations: insert,
// update, remove, and find, each driving the L2 indexes and the L4
// find-optimizer, publishing events, and exposing a lazy cursor pipeline.
package collection

import (
	"sync"

	"github.com/corvusdb/corvus/internal/catalog"
	"github.com/corvusdb/corvus/internal/clog"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/store"
	"github.com/corvusdb/corvus/internal/store/memstore"
	"github.com/corvusdb/corvus/internal/txn"
	"github.com/corvusdb/corvus/internal/value"
)

// Collection owns a named set of documents, their indexes, and the
// optimizer used to plan reads against them.
type Collection struct {
	mu   sync.RWMutex
	name string

	data    store.OrderedMap // NitriteId(Value) -> Document(Value)
	idGen   *value.IDGenerator
	cat     *catalog.Catalog
	opt     *planner.Optimizer
	bus     *eventBus
	log     *clog.Logger
	tok     index.Tokenizer
	dropped bool

	// overlay is the copy-on-write view the *Tx methods read and write
	// through while a transaction is active on this collection; nil when
	// no transaction currently holds this collection's LockRegistry lock.
	overlay     *txn.TransactionalMap
	overlayTxID string
}

// Options configures a new Collection.
type Options struct {
	PlanCacheSize    int
	BuildConcurrency int
	StopWords        []string
	Logger           *clog.Logger
}

// New creates a collection named name backed by the given OrderedMap.
func New(name string, data store.OrderedMap, opts Options) (*Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = clog.Nop()
	}
	tok := index.NewTokenizer(opts.StopWords)
	cat, err := catalog.New(opts.BuildConcurrency, tok, opts.Logger)
	if err != nil {
		return nil, err
	}
	opt, err := planner.NewOptimizer(opts.PlanCacheSize)
	if err != nil {
		return nil, err
	}
	return &Collection{
		name:  name,
		data:  data,
		idGen: value.NewIDGenerator(),
		cat:   cat,
		opt:   opt,
		bus:   newEventBus(opts.Logger),
		log:   opts.Logger,
		tok:   tok,
	}, nil
}

func (c *Collection) Name() string { return c.name }

// Subscribe registers a listener invoked after every successful write.
func (c *Collection) Subscribe(l Listener) { c.bus.subscribe(l) }

func (c *Collection) requireLive(op string) error {
	if c.dropped {
		return dberrors.New(dberrors.CollectionNotFound, op, "collection "+c.name+" has been dropped")
	}
	return nil
}

// CreateIndex registers and synchronously builds an index over every
// document currently in the collection.
func (c *Collection) CreateIndex(fields []string, typ index.Type, unique bool) error {
	c.mu.Lock()
	if err := c.requireLive("CreateIndex"); err != nil {
		c.mu.Unlock()
		return err
	}
	desc := catalog.Descriptor{Fields: fields, Type: typ, Unique: unique}
	idx := c.newIndexFor(desc)
	if err := c.cat.CreateIndex(desc, idx); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	return c.buildIndexFromExistingDocs(desc.Name(), fields)
}

func (c *Collection) newIndexFor(desc catalog.Descriptor) index.Index {
	backingName := c.name + "." + desc.Name()
	switch desc.Type {
	case index.TypeUnique:
		return index.NewUniqueIndex(desc.Fields[0], memstore.New(backingName), c.log)
	case index.TypeCompound:
		return index.NewCompoundIndex(desc.Fields, desc.Unique, c.log)
	case index.TypeText:
		return index.NewTextIndex(desc.Fields[0], c.tok)
	case index.TypeSpatial:
		return index.NewSpatialIndex(desc.Fields[0])
	default:
		return index.NewNonUniqueIndex(desc.Fields[0], memstore.New(backingName), c.log)
	}
}

func (c *Collection) buildIndexFromExistingDocs(name string, fields []string) error {
	var tasks []catalog.BuildTask
	it := c.data.EntriesForward()
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		doc, ok := e.Value.AsDocument()
		if !ok {
			continue
		}
		docID, _ := e.Key.AsID()
		fvs := extractFieldValues(doc, fields)
		tasks = append(tasks, catalog.BuildTask{DocID: docID, FieldValues: fvs})
	}
	if len(tasks) == 0 {
		return nil
	}
	return c.cat.BuildIndex(name, tasks)
}

// DropIndex removes a registered index.
func (c *Collection) DropIndex(fields []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cat.DropIndex(catalog.Descriptor{Fields: fields}.Name())
}

func extractFieldValues(doc *value.Document, fields []string) []value.Value {
	out := make([]value.Value, len(fields))
	for i, f := range fields {
		v, ok := doc.GetPath(f)
		if !ok {
			v = value.Null
		}
		out[i] = v
	}
	return out
}

// Insert stamps a new NitriteId if the document has none, writes it into
// the data map, indexes it, and publishes an Insert event.
func (c *Collection) Insert(doc *value.Document) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("Insert"); err != nil {
		return 0, err
	}

	docID, err := c.insertLocked(doc)
	if err != nil {
		return 0, err
	}

	c.bus.publish(Event{Type: EventInsert, CollectionName: c.name, Document: doc})
	return docID, nil
}

// insertLocked performs the id-stamp/store/index-write sequence without
// publishing, so batch callers can insert many documents and publish a
// single aggregate event. Caller must hold c.mu.
func (c *Collection) insertLocked(doc *value.Document) (uint64, error) {
	var docID uint64
	if id, ok := doc.ID(); ok {
		if !value.ValidID(id) {
			return 0, dberrors.New(dberrors.InvalidId, "Insert", "document _id is not a valid NitriteId")
		}
		docID = id
	} else {
		docID = c.idGen.Next()
		doc.SetID(docID)
	}

	key := value.ID(docID)
	if _, exists, err := c.putIfAbsent(key, value.FromDocument(doc)); err != nil {
		return 0, err
	} else if exists {
		return 0, dberrors.New(dberrors.UniqueConstraintViolation, "Insert", "a document already exists with this _id")
	}

	if err := c.indexWrite(docID, doc); err != nil {
		c.data.Remove(key)
		return 0, err
	}

	return docID, nil
}

func (c *Collection) putIfAbsent(key, v value.Value) (value.Value, bool, error) {
	prior, existed := c.data.PutIfAbsent(key, v)
	return prior, existed, nil
}

// InsertMany inserts every document in docs, stopping at the first error.
// Documents already inserted before the failing one remain inserted. The
// whole batch publishes a single Insert event carrying every document
// that made it in, rather than one event per document.
func (c *Collection) InsertMany(docs []*value.Document) ([]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("InsertMany"); err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(docs))
	inserted := make([]*value.Document, 0, len(docs))
	for _, d := range docs {
		id, err := c.insertLocked(d)
		if err != nil {
			if len(inserted) > 0 {
				c.bus.publish(Event{Type: EventInsert, CollectionName: c.name, Documents: inserted})
			}
			return ids, err
		}
		ids = append(ids, id)
		inserted = append(inserted, d)
	}
	if len(inserted) > 0 {
		c.bus.publish(Event{Type: EventInsert, CollectionName: c.name, Documents: inserted})
	}
	return ids, nil
}

func (c *Collection) indexWrite(docID uint64, doc *value.Document) error {
	for _, desc := range c.cat.Descriptors() {
		idx, ok := c.cat.IndexFor(desc.Name())
		if !ok {
			continue
		}
		fvs := extractFieldValues(doc, desc.Fields)
		if err := idx.Write(docID, fvs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) indexRemove(docID uint64, doc *value.Document) {
	for _, desc := range c.cat.Descriptors() {
		idx, ok := c.cat.IndexFor(desc.Name())
		if !ok {
			continue
		}
		fvs := extractFieldValues(doc, desc.Fields)
		_ = idx.Remove(docID, fvs)
	}
}

// UpdateOptions configures UpdateWithOptions.
type UpdateOptions struct {
	JustOnce       bool
	InsertIfAbsent bool
}

// UpdateWithOptions merges doc's fields over every document matching
// filter (or just the first if JustOnce), preserving _id, rewriting
// indexes, and publishing Update events. If no document matches and
// InsertIfAbsent is set, doc is inserted instead.
func (c *Collection) UpdateWithOptions(filter planner.Filter, doc *value.Document, opts UpdateOptions) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("Update"); err != nil {
		return 0, err
	}

	ids, err := c.matchingIDsLocked(filter)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		if opts.InsertIfAbsent {
			c.mu.Unlock()
			_, err := c.Insert(doc)
			c.mu.Lock()
			if err != nil {
				return 0, err
			}
			return 1, nil
		}
		return 0, nil
	}
	if opts.JustOnce {
		ids = ids[:1]
	}

	updated := 0
	for _, id := range ids {
		key := value.ID(id)
		existing, ok := c.data.Get(key)
		if !ok {
			continue
		}
		existingDoc, _ := existing.AsDocument()
		merged := existingDoc.Clone()
		for _, f := range doc.Fields() {
			if f == value.IDField {
				continue
			}
			v, _ := doc.Get(f)
			merged.Put(f, v)
		}

		c.indexRemove(id, existingDoc)
		if err := c.indexWrite(id, merged); err != nil {
			// best-effort: restore old index entries before surfacing
			_ = c.indexWrite(id, existingDoc)
			return updated, err
		}
		c.data.Put(key, value.FromDocument(merged))
		updated++
		c.bus.publish(Event{Type: EventUpdate, CollectionName: c.name, Document: merged})
	}
	return updated, nil
}

// Remove deletes every document matching filter (or just the first if
// justOnce), un-indexing it first, and publishes Remove events.
func (c *Collection) Remove(filter planner.Filter, justOnce bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("Remove"); err != nil {
		return 0, err
	}

	ids, err := c.matchingIDsLocked(filter)
	if err != nil {
		return 0, err
	}
	if justOnce && len(ids) > 1 {
		ids = ids[:1]
	}

	removed := 0
	for _, id := range ids {
		key := value.ID(id)
		existing, ok := c.data.Get(key)
		if !ok {
			continue
		}
		existingDoc, _ := existing.AsDocument()
		c.indexRemove(id, existingDoc)
		c.data.Remove(key)
		removed++
		c.bus.publish(Event{Type: EventRemove, CollectionName: c.name, Document: existingDoc})
	}
	return removed, nil
}

// Clear removes every document and index entry, but keeps the collection
// and its index descriptors registered.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Clear()
	for _, desc := range c.cat.Descriptors() {
		if idx, ok := c.cat.IndexFor(desc.Name()); ok {
			idx.Clear()
		}
	}
}

// Drop disposes the collection's data map and releases its catalogue's
// index-build pool; further operations fail with CollectionNotFound.
func (c *Collection) Drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Dispose()
	c.cat.Close()
	c.dropped = true
}

func (c *Collection) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Size()
}

// ForEachMutate walks every document in declaration order, passing each
// to fn. If fn returns changed=true, the (possibly field-renamed or
// retyped) document it returns replaces the stored one and every index
// is rewritten accordingly; _id is never altered by this path, since
// structural migrations address documents by their existing id. Used by
// the migration engine's AddField/RenameField/DeleteField/ChangeDataType
// steps, which touch every document rather than a filtered subset.
func (c *Collection) ForEachMutate(fn func(doc *value.Document) (*value.Document, bool, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("ForEachMutate"); err != nil {
		return err
	}

	it := c.data.EntriesForward()
	var keys []value.Value
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		keys = append(keys, e.Key)
	}

	for _, key := range keys {
		existing, ok := c.data.Get(key)
		if !ok {
			continue
		}
		doc, ok := existing.AsDocument()
		if !ok {
			continue
		}
		updated, changed, err := fn(doc)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		id, _ := doc.ID()
		c.indexRemove(id, doc)
		if err := c.indexWrite(id, updated); err != nil {
			_ = c.indexWrite(id, doc)
			return err
		}
		c.data.Put(key, value.FromDocument(updated))
	}
	return nil
}

// Descriptors exposes the collection's current index descriptors, used
// by the migration engine's DropIndex step to drop every index when the
// step names no fields.
func (c *Collection) Descriptors() []catalog.Descriptor {
	return c.cat.Descriptors()
}
