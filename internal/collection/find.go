package collection

import (
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/value"
)

// Find plans filter+opts against the collection's live catalogue and
// returns a lazily-materialising Cursor over the matching documents.
func (c *Collection) Find(filter planner.Filter, opts planner.FindOptions) (*Cursor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan, err := c.opt.Plan(filter, opts, c.cat.Descriptors(), c.cat.Version())
	if err != nil {
		return nil, err
	}
	return c.cursorFromPlan(plan)
}

func (c *Collection) cursorFromPlan(plan planner.FindPlan) (*Cursor, error) {
	source, err := c.sourceFromPlan(plan)
	if err != nil {
		return nil, err
	}

	stream := filteredStream(source, plan.FullScanFilter)

	if len(plan.SubPlans) > 0 || plan.IndexDescriptorName != "" {
		stream = uniqueStream(stream)
	}

	order := plan.BlockingSortOrder
	if len(order) == 0 {
		for _, o := range plan.IndexScanOrder {
			order = append(order, planner.SortField{Field: o.Field, Desc: o.Reverse})
		}
	}
	stream, err = sortedStream(stream, order, plan.Collator)
	if err != nil {
		return nil, err
	}

	if plan.Distinct {
		stream = uniqueStream(stream)
	}

	stream = skipTake(stream, plan.Skip, plan.Limit)
	return &Cursor{next: stream}, nil
}

// sourceFromPlan builds the innermost Source stage: single-id lookup,
// indexed-ids scan, a merge of OR sub-plan sources, or a full map scan.
func (c *Collection) sourceFromPlan(plan planner.FindPlan) (func() (*value.Document, bool, error), error) {
	if plan.ByIDFilter != nil {
		id, _ := plan.ByIDFilter.AsID()
		return c.sourceFromIDs([]uint64{id}), nil
	}

	if len(plan.SubPlans) > 0 {
		return c.mergeSubPlans(plan.SubPlans)
	}

	if plan.IndexDescriptorName != "" {
		idx, ok := c.cat.IndexFor(plan.IndexDescriptorName)
		if !ok {
			return c.sourceFullScan(), nil
		}
		ids, err := candidateIDs(idx, idx.Fields(), plan.IndexScanFilter)
		if err != nil {
			return nil, err
		}
		var recheck []planner.Filter
		for _, f := range plan.IndexScanFilter {
			if f.Op() != planner.OpEquals && !f.IsIndexOnlyFilter() {
				recheck = append(recheck, f)
			}
		}
		if len(recheck) == 0 {
			return c.sourceFromIDs(ids), nil
		}
		scan := planner.And(recheck...)
		return filteredStream(c.sourceFromIDs(ids), &scan), nil
	}

	return c.sourceFullScan(), nil
}

// mergeSubPlans concatenates every sub-plan's own pipeline (source plus
// its residual filter) into one stream; duplicate ids across branches are
// removed by the caller via uniqueStream.
func (c *Collection) mergeSubPlans(subPlans []planner.FindPlan) (func() (*value.Document, bool, error), error) {
	streams := make([]func() (*value.Document, bool, error), 0, len(subPlans))
	for _, sp := range subPlans {
		s, err := c.sourceFromPlan(sp)
		if err != nil {
			return nil, err
		}
		streams = append(streams, filteredStream(s, sp.FullScanFilter))
	}
	i := 0
	return func() (*value.Document, bool, error) {
		for i < len(streams) {
			doc, ok, err := streams[i]()
			if err != nil {
				return nil, false, err
			}
			if ok {
				return doc, true, nil
			}
			i++
		}
		return nil, false, nil
	}, nil
}

// matchingIDsLocked resolves filter to the set of document ids it
// matches, reusing the optimizer and the same pipeline Find uses but
// draining it to ids only. Callers hold c.mu for writing.
func (c *Collection) matchingIDsLocked(filter planner.Filter) ([]uint64, error) {
	plan, err := c.opt.Plan(filter, planner.FindOptions{}, c.cat.Descriptors(), c.cat.Version())
	if err != nil {
		return nil, err
	}
	cur, err := c.cursorFromPlan(plan)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for {
		doc, ok, err := cur.Next()
		if err != nil {
			return ids, err
		}
		if !ok {
			return ids, nil
		}
		if id, ok := doc.ID(); ok {
			ids = append(ids, id)
		}
	}
}

// candidateIDs resolves an index-scan conjunct list into a candidate id
// set. For a text or spatial index the conjuncts are index-only
// predicates (IsIndexOnlyFilter) dispatched straight to the index's own
// query methods; for a unique/compound/non-unique index the conjuncts are
// an equality prefix optionally followed by one trailing range bound, per
// the optimizer's longest-prefix match. The set may be a superset of the
// true matches (inclusive range bounds, a coarser compound subtree);
// sourceFromPlan re-checks every non-equality scan conjunct per candidate.
func candidateIDs(idx index.Index, fields []string, scanFilters []planner.Filter) ([]uint64, error) {
	if ti, ok := idx.(*index.TextIndex); ok {
		return textCandidateIDs(ti, scanFilters)
	}
	if si, ok := idx.(*index.SpatialIndex); ok {
		return spatialCandidateIDs(si, scanFilters)
	}

	var eqKeys []value.Value
	i := 0
	for ; i < len(scanFilters); i++ {
		if scanFilters[i].Op() != planner.OpEquals {
			break
		}
		eqKeys = append(eqKeys, scanFilters[i].Value())
	}

	ci, isCompound := idx.(*index.CompoundIndex)

	if i == len(scanFilters) {
		// Pure equality prefix, possibly partial.
		if len(eqKeys) == len(fields) {
			if isCompound {
				return ci.FindCompound(eqKeys)
			}
			return idx.Find(eqKeys[0])
		}
		if isCompound {
			return ci.FindSubtree(eqKeys)
		}
		if len(eqKeys) == 1 {
			return idx.Find(eqKeys[0])
		}
		return idx.FindRange(value.Value{}, false, value.Value{}, false)
	}

	// A trailing range bound follows the equality prefix.
	bound := scanFilters[i]
	var lower, upper value.Value
	hasLower, hasUpper := false, false
	switch bound.Op() {
	case planner.OpGreaterThan, planner.OpGreaterThanOrEqual:
		lower, hasLower = bound.Value(), true
	case planner.OpLessThan, planner.OpLessThanOrEqual:
		upper, hasUpper = bound.Value(), true
	}

	if !isCompound || len(eqKeys) == 0 {
		return idx.FindRange(lower, hasLower, upper, hasUpper)
	}
	// Equality prefix plus a bound on the next compound field: the
	// subtree under the prefix is a safe (if coarser) superset.
	return ci.FindSubtree(eqKeys)
}

// textCandidateIDs runs every OpText conjunct through FindPhrase and
// narrows via set intersection, matching AND semantics for a filter with
// more than one text predicate against the same indexed field.
func textCandidateIDs(idx *index.TextIndex, scanFilters []planner.Filter) ([]uint64, error) {
	var ids []uint64
	for i, f := range scanFilters {
		if f.Op() != planner.OpText {
			return nil, dberrors.New(dberrors.IndexingError, "textCandidateIDs", "text index cannot serve a non-text predicate")
		}
		matched := idx.FindPhrase(f.TextQuery())
		if i == 0 {
			ids = matched
			continue
		}
		ids = intersectIDs(ids, matched)
	}
	return ids, nil
}

// spatialCandidateIDs dispatches each spatial conjunct (intersects, within,
// or k-nearest) to the matching SpatialIndex method, narrowing via set
// intersection across multiple conjuncts.
func spatialCandidateIDs(idx *index.SpatialIndex, scanFilters []planner.Filter) ([]uint64, error) {
	var ids []uint64
	for i, f := range scanFilters {
		var matched []uint64
		switch f.Op() {
		case planner.OpSpatialIntersects:
			matched = idx.Intersects(f.BoundingBox())
		case planner.OpSpatialWithin:
			matched = idx.Within(f.BoundingBox())
		case planner.OpSpatialNear:
			matched = idx.Nearest(f.NearOrigin(), f.NearK())
		default:
			return nil, dberrors.New(dberrors.IndexingError, "spatialCandidateIDs", "spatial index cannot serve a non-spatial predicate")
		}
		if i == 0 {
			ids = matched
			continue
		}
		ids = intersectIDs(ids, matched)
	}
	return ids, nil
}

// intersectIDs narrows a to the ids it shares with b, preserving a's order
// (KNearest results are distance-ordered and that order is worth keeping
// when it's the only spatial conjunct).
func intersectIDs(a, b []uint64) []uint64 {
	inB := make(map[uint64]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	out := a[:0:0]
	for _, id := range a {
		if _, ok := inB[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
