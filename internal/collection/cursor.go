package collection

import (
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/value"
)

// Cursor lazily materialises documents from a find plan. Each call to
// Next pulls exactly one document through the pipeline; nothing past the
// current position is computed ahead of time except where a stage is
// inherently blocking (a sort needs every upstream document before it can
// yield its first one).
type Cursor struct {
	next func() (*value.Document, bool, error)
}

// Next advances the cursor. ok is false once the stream is exhausted; a
// non-nil error aborts iteration.
func (c *Cursor) Next() (*value.Document, bool, error) {
	return c.next()
}

// All drains the cursor into a slice. Convenience for callers that don't
// need lazy consumption.
func (c *Cursor) All() ([]*value.Document, error) {
	var out []*value.Document
	for {
		doc, ok, err := c.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, doc)
	}
}

// sourceFromIDs builds a Source stage that walks a fixed, already-ordered
// slice of document ids, resolving each through the data map.
func (c *Collection) sourceFromIDs(ids []uint64) func() (*value.Document, bool, error) {
	i := 0
	return func() (*value.Document, bool, error) {
		for i < len(ids) {
			key := value.ID(ids[i])
			i++
			v, ok := c.data.Get(key)
			if !ok {
				continue
			}
			doc, ok := v.AsDocument()
			if !ok {
				continue
			}
			return doc, true, nil
		}
		return nil, false, nil
	}
}

// sourceFullScan builds a Source stage over every document in the
// collection's backing map, in key order.
func (c *Collection) sourceFullScan() func() (*value.Document, bool, error) {
	it := c.data.EntriesForward()
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

// filteredStream wraps upstream, dropping documents that don't match f.
func filteredStream(upstream func() (*value.Document, bool, error), f *planner.Filter) func() (*value.Document, bool, error) {
	if f == nil {
		return upstream
	}
	return func() (*value.Document, bool, error) {
		for {
			doc, ok, err := upstream()
			if err != nil || !ok {
				return doc, ok, err
			}
			if f.Matches(doc) {
				return doc, true, nil
			}
		}
	}
}

// sortedStream is the blocking sort stage: it must drain upstream fully
// before it can produce its first result, since the sort order may
// require documents that arrive later.
func sortedStream(upstream func() (*value.Document, bool, error), order []planner.SortField, collator func(a, b value.Value) int) (func() (*value.Document, bool, error), error) {
	if len(order) == 0 {
		return upstream, nil
	}
	var all []*value.Document
	for {
		doc, ok, err := upstream()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		all = append(all, doc)
	}
	sortDocuments(all, order, collator)
	i := 0
	return func() (*value.Document, bool, error) {
		if i >= len(all) {
			return nil, false, nil
		}
		doc := all[i]
		i++
		return doc, true, nil
	}, nil
}

// sortDocuments orders docs by order, comparing field values with collator
// if non-nil, else with Value.Compare's default byte-wise ordering.
func sortDocuments(docs []*value.Document, order []planner.SortField, collator func(a, b value.Value) int) {
	less := func(a, b *value.Document) bool {
		for _, sf := range order {
			av, _ := a.GetPath(sf.Field)
			bv, _ := b.GetPath(sf.Field)
			var cmp int
			if collator != nil {
				cmp = collator(av, bv)
			} else {
				var ok bool
				cmp, ok = av.Compare(bv)
				if !ok {
					cmp = 0
				}
			}
			if cmp == 0 {
				continue
			}
			if sf.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	}
	insertionSort(docs, less)
}

func insertionSort(docs []*value.Document, less func(a, b *value.Document) bool) {
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0 && less(docs[j], docs[j-1]); j-- {
			docs[j], docs[j-1] = docs[j-1], docs[j]
		}
	}
}

// skipTake applies an offset and a max count. A nil limit means
// unbounded; a non-nil limit pointing at 0 yields zero documents.
func skipTake(upstream func() (*value.Document, bool, error), skip int, limit *int) func() (*value.Document, bool, error) {
	skipped := 0
	taken := 0
	return func() (*value.Document, bool, error) {
		for skipped < skip {
			_, ok, err := upstream()
			if err != nil || !ok {
				return nil, ok, err
			}
			skipped++
		}
		if limit != nil && taken >= *limit {
			return nil, false, nil
		}
		doc, ok, err := upstream()
		if err != nil || !ok {
			return doc, ok, err
		}
		taken++
		return doc, true, nil
	}
}

// uniqueStream drops documents whose _id has already been yielded. Used
// for every index-scan or fanned-out OR source (a multikey index scan or
// an OR can repeat an id) and for Distinct.
func uniqueStream(upstream func() (*value.Document, bool, error)) func() (*value.Document, bool, error) {
	seen := make(map[uint64]struct{})
	return func() (*value.Document, bool, error) {
		for {
			doc, ok, err := upstream()
			if err != nil || !ok {
				return doc, ok, err
			}
			id, _ := doc.ID()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			return doc, true, nil
		}
	}
}
