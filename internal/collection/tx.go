package collection

import (
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/txn"
	"github.com/corvusdb/corvus/internal/value"
)

// overlayForLocked returns this collection's copy-on-write overlay for
// tx, creating one the first time tx touches this collection and
// discarding any stale overlay left by an earlier, already-finished
// transaction. LockRegistry guarantees only one transaction can hold this
// collection's lock at a time, so a single overlay field (rather than a
// map keyed by transaction id) is enough. Callers must hold c.mu.
func (c *Collection) overlayForLocked(tx *txn.Transaction) *txn.TransactionalMap {
	if c.overlay == nil || c.overlayTxID != tx.ID() {
		c.overlay = txn.NewTransactionalMap(c.data)
		c.overlayTxID = tx.ID()
	}
	return c.overlay
}

// InsertTx is Insert run against tx's overlay: the document becomes
// visible to FindTx/InsertTx/UpdateWithOptionsTx/RemoveTx calls made
// against this collection under the same transaction immediately, but
// the real data map and indexes are only mutated when tx.Commit runs the
// recorded command; tx.Rollback (or a later entry's commit failing)
// leaves the real collection exactly as it was.
func (c *Collection) InsertTx(tx *txn.Transaction, doc *value.Document) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("Insert"); err != nil {
		return 0, err
	}

	ov := c.overlayForLocked(tx)

	var docID uint64
	if id, ok := doc.ID(); ok {
		if !value.ValidID(id) {
			return 0, dberrors.New(dberrors.InvalidId, "InsertTx", "document _id is not a valid NitriteId")
		}
		docID = id
	} else {
		docID = c.idGen.Next()
		doc.SetID(docID)
	}

	key := value.ID(docID)
	if _, exists := ov.Get(key); exists {
		return 0, dberrors.New(dberrors.UniqueConstraintViolation, "InsertTx", "a document already exists with this _id")
	}
	snapshot := value.FromDocument(doc)
	ov.Put(key, snapshot)

	err := tx.Record(c.name, txn.ChangeInsert,
		func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, exists := c.data.PutIfAbsent(key, snapshot); exists {
				return dberrors.New(dberrors.UniqueConstraintViolation, "InsertTx", "a document already exists with this _id")
			}
			if err := c.indexWrite(docID, doc); err != nil {
				c.data.Remove(key)
				return err
			}
			c.bus.publish(Event{Type: EventInsert, CollectionName: c.name, Document: doc})
			return nil
		},
		func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if existing, ok := c.data.Remove(key); ok {
				if d, ok := existing.AsDocument(); ok {
					c.indexRemove(docID, d)
				}
			}
			return nil
		},
	)
	if err != nil {
		return 0, err
	}
	return docID, nil
}

// UpdateWithOptionsTx is UpdateWithOptions run against tx's overlay,
// matching documents against the overlay's combined (pending + committed)
// view rather than the plan-optimized index path, since indexes aren't
// updated until commit.
func (c *Collection) UpdateWithOptionsTx(tx *txn.Transaction, filter planner.Filter, doc *value.Document, opts UpdateOptions) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("Update"); err != nil {
		return 0, err
	}

	ov := c.overlayForLocked(tx)
	ids := overlayMatchingIDs(ov, filter)
	if len(ids) == 0 {
		if opts.InsertIfAbsent {
			docID, err := c.insertViaOverlayLocked(tx, ov, doc)
			if err != nil {
				return 0, err
			}
			_ = docID
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
		existing, ok := ov.Get(key)
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
		mergedSnapshot := value.FromDocument(merged)
		ov.Put(key, mergedSnapshot)

		docIDCopy, mergedCopy := id, merged
		err := tx.Record(c.name, txn.ChangeUpdate,
			func() error {
				c.mu.Lock()
				defer c.mu.Unlock()
				prior, ok := c.data.Get(key)
				if !ok {
					return nil
				}
				priorDoc, _ := prior.AsDocument()
				c.indexRemove(docIDCopy, priorDoc)
				if err := c.indexWrite(docIDCopy, mergedCopy); err != nil {
					_ = c.indexWrite(docIDCopy, priorDoc)
					return err
				}
				c.data.Put(key, mergedSnapshot)
				c.bus.publish(Event{Type: EventUpdate, CollectionName: c.name, Document: mergedCopy})
				return nil
			},
			func() error {
				c.mu.Lock()
				defer c.mu.Unlock()
				prior, ok := c.data.Get(key)
				if !ok {
					return nil
				}
				priorDoc, _ := prior.AsDocument()
				c.indexRemove(docIDCopy, priorDoc)
				c.data.Put(key, existing)
				_ = c.indexWrite(docIDCopy, existingDoc)
				return nil
			},
		)
		if err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (c *Collection) insertViaOverlayLocked(tx *txn.Transaction, ov *txn.TransactionalMap, doc *value.Document) (uint64, error) {
	var docID uint64
	if id, ok := doc.ID(); ok {
		if !value.ValidID(id) {
			return 0, dberrors.New(dberrors.InvalidId, "UpdateWithOptionsTx", "document _id is not a valid NitriteId")
		}
		docID = id
	} else {
		docID = c.idGen.Next()
		doc.SetID(docID)
	}
	key := value.ID(docID)
	if _, exists := ov.Get(key); exists {
		return 0, dberrors.New(dberrors.UniqueConstraintViolation, "UpdateWithOptionsTx", "a document already exists with this _id")
	}
	snapshot := value.FromDocument(doc)
	ov.Put(key, snapshot)

	return docID, tx.Record(c.name, txn.ChangeInsert,
		func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, exists := c.data.PutIfAbsent(key, snapshot); exists {
				return dberrors.New(dberrors.UniqueConstraintViolation, "UpdateWithOptionsTx", "a document already exists with this _id")
			}
			if err := c.indexWrite(docID, doc); err != nil {
				c.data.Remove(key)
				return err
			}
			c.bus.publish(Event{Type: EventInsert, CollectionName: c.name, Document: doc})
			return nil
		},
		func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			if existing, ok := c.data.Remove(key); ok {
				if d, ok := existing.AsDocument(); ok {
					c.indexRemove(docID, d)
				}
			}
			return nil
		},
	)
}

// RemoveTx is Remove run against tx's overlay.
func (c *Collection) RemoveTx(tx *txn.Transaction, filter planner.Filter, justOnce bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("Remove"); err != nil {
		return 0, err
	}

	ov := c.overlayForLocked(tx)
	ids := overlayMatchingIDs(ov, filter)
	if justOnce && len(ids) > 1 {
		ids = ids[:1]
	}

	removed := 0
	for _, id := range ids {
		key := value.ID(id)
		existing, ok := ov.Get(key)
		if !ok {
			continue
		}
		existingDoc, _ := existing.AsDocument()
		ov.Remove(key)

		docIDCopy := id
		err := tx.Record(c.name, txn.ChangeRemove,
			func() error {
				c.mu.Lock()
				defer c.mu.Unlock()
				prior, ok := c.data.Get(key)
				if !ok {
					return nil
				}
				priorDoc, _ := prior.AsDocument()
				c.indexRemove(docIDCopy, priorDoc)
				c.data.Remove(key)
				c.bus.publish(Event{Type: EventRemove, CollectionName: c.name, Document: priorDoc})
				return nil
			},
			func() error {
				c.mu.Lock()
				defer c.mu.Unlock()
				if _, exists := c.data.PutIfAbsent(key, existing); !exists {
					_ = c.indexWrite(docIDCopy, existingDoc)
				}
				return nil
			},
		)
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// FindTx resolves filter against tx's overlay with a direct filtered scan
// rather than the index-backed planner pipeline Find uses, since indexes
// reflect only committed data and would miss this transaction's own
// pending writes.
func (c *Collection) FindTx(tx *txn.Transaction, filter planner.Filter, opts planner.FindOptions) (*Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLive("Find"); err != nil {
		return nil, err
	}

	ov := c.overlayForLocked(tx)
	source := overlayFullScan(ov)
	stream := filteredStream(source, &filter)

	stream, err := sortedStream(stream, opts.SortBy, opts.Collator)
	if err != nil {
		return nil, err
	}
	if opts.Distinct {
		stream = uniqueStream(stream)
	}
	stream = skipTake(stream, opts.Skip, opts.Limit)
	return &Cursor{next: stream}, nil
}

// overlayFullScan builds a Source stage over every live document visible
// through ov, in key order.
func overlayFullScan(ov *txn.TransactionalMap) func() (*value.Document, bool, error) {
	it := ov.EntriesForward()
	return func() (*value.Document, bool, error) {
		for {
			e, ok := it.Next()
			if !ok {
				return nil, false, nil
			}
			doc, ok := e.Value.AsDocument()
			if !ok {
				continue
			}
			return doc, true, nil
		}
	}
}

// overlayMatchingIDs drains a full scan of ov through filter, since the
// overlay has no indexes of its own to plan against.
func overlayMatchingIDs(ov *txn.TransactionalMap, filter planner.Filter) []uint64 {
	var ids []uint64
	source := overlayFullScan(ov)
	stream := filteredStream(source, &filter)
	for {
		doc, ok, err := stream()
		if err != nil || !ok {
			return ids
		}
		if id, ok := doc.ID(); ok {
			ids = append(ids, id)
		}
	}
}
