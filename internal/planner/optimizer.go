// Package planner implements corvus's L4 find-optimizer: the filter DSL,
// the FindPlan it compiles down to, and the plan cache that makes
// re-planning an identical query free.
package planner

import (
	"hash/fnv"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/corvusdb/corvus/internal/catalog"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/value"
)

// IDField is the reserved identifier field name the id-filter
// short-circuit looks for.
const IDField = value.IDField

type cachedPlan struct {
	plan            FindPlan
	referencedNames []string
	indexVersion    uint64
}

// Optimizer compiles Filter+FindOptions+catalogue state into a FindPlan,
// caching compiled plans keyed by a hash of their shape so a repeated
// identical query skips replanning.
type Optimizer struct {
	cache *lru.Cache[uint64, cachedPlan]
}

// NewOptimizer builds an optimizer whose plan cache holds at most
// cacheSize entries (spec default 100).
func NewOptimizer(cacheSize int) (*Optimizer, error) {
	if cacheSize <= 0 {
		cacheSize = 100
	}
	c, err := lru.New[uint64, cachedPlan](cacheSize)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.InternalError, "planner.NewOptimizer", "create plan cache", err)
	}
	return &Optimizer{cache: c}, nil
}

// cacheKey hashes (indexVersion, filter canonical string, sort-by, skip,
// limit, distinct).
func cacheKey(indexVersion uint64, filter Filter, opts FindOptions) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatUint(indexVersion, 10)))
	h.Write([]byte{0})
	h.Write([]byte(filter.String()))
	h.Write([]byte{0})
	for _, s := range opts.SortBy {
		h.Write([]byte(s.Field))
		if s.Desc {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(opts.Skip)))
	h.Write([]byte{0})
	if opts.Limit != nil {
		h.Write([]byte{1})
		h.Write([]byte(strconv.Itoa(*opts.Limit)))
	}
	h.Write([]byte{0})
	if opts.Distinct {
		h.Write([]byte{1})
	}
	return h.Sum64()
}

// Plan returns a FindPlan for filter+opts against the given catalogue
// descriptors, serving a cached plan when a sound one exists.
func (o *Optimizer) Plan(filter Filter, opts FindOptions, descriptors []catalog.Descriptor, indexVersion uint64) (FindPlan, error) {
	key := cacheKey(indexVersion, filter, opts)
	if cached, ok := o.cache.Get(key); ok {
		if cached.indexVersion == indexVersion && planStillSound(cached, descriptors) {
			return cached.plan, nil
		}
		o.cache.Remove(key)
	}

	plan, err := compile(filter, opts, descriptors)
	if err != nil {
		return FindPlan{}, err
	}

	o.cache.Add(key, cachedPlan{
		plan:            plan,
		referencedNames: referencedDescriptorNames(plan),
		indexVersion:    indexVersion,
	})
	return plan, nil
}

func planStillSound(c cachedPlan, descriptors []catalog.Descriptor) bool {
	byName := make(map[string]catalog.Descriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name()] = d
	}
	for _, name := range c.referencedNames {
		if _, ok := byName[name]; !ok {
			return false
		}
	}
	return true
}

func referencedDescriptorNames(p FindPlan) []string {
	var out []string
	if p.IndexDescriptorName != "" {
		out = append(out, p.IndexDescriptorName)
	}
	for _, sp := range p.SubPlans {
		out = append(out, referencedDescriptorNames(sp)...)
	}
	return out
}

// compile runs the actual planning algorithm.
func compile(filter Filter, opts FindOptions, descriptors []catalog.Descriptor) (FindPlan, error) {
	// Step 1: normalise.
	switch filter.Op() {
	case OpOr:
		return compileOr(filter, opts, descriptors)
	case OpAnd:
		return compileAnd(filter.Children(), filter, opts, descriptors)
	default:
		return compileAnd([]Filter{filter}, filter, opts, descriptors)
	}
}

func compileOr(filter Filter, opts FindOptions, descriptors []catalog.Descriptor) (FindPlan, error) {
	branches := filter.Children()
	subPlans := make([]FindPlan, 0, len(branches))
	allIndexed := true
	for _, branch := range branches {
		// Each branch plans independently with no skip/limit/sort (those
		// apply once to the merged result).
		sub, err := compile(branch, FindOptions{}, descriptors)
		if err != nil {
			return FindPlan{}, err
		}
		if !sub.UsesIndex() {
			allIndexed = false
		}
		subPlans = append(subPlans, sub)
	}

	plan := FindPlan{
		Skip:           opts.Skip,
		Limit:          opts.Limit,
		Distinct:       opts.Distinct,
		Collator:       opts.Collator,
		OriginalFilter: &filter,
	}
	if allIndexed {
		plan.SubPlans = subPlans
	} else {
		// Any branch lacking an index means falling back to a single full
		// scan of the original OR.
		plan.FullScanFilter = &filter
	}
	integrateSort(&plan, opts, nil)
	return plan, nil
}

func compileAnd(conjuncts []Filter, original Filter, opts FindOptions, descriptors []catalog.Descriptor) (FindPlan, error) {
	plan := FindPlan{
		Skip:           opts.Skip,
		Limit:          opts.Limit,
		Distinct:       opts.Distinct,
		Collator:       opts.Collator,
		OriginalFilter: &original,
	}

	// Id-filter short circuit.
	for _, c := range conjuncts {
		if c.Op() == OpEquals && c.Field() == IDField {
			v := c.Value()
			plan.ByIDFilter = &v
			return plan, nil
		}
	}

	remaining := append([]Filter(nil), conjuncts...)

	// Index-only conjuncts (text/spatial) must all share a supported
	// type and a matching descriptor.
	var indexOnly []Filter
	var rest []Filter
	for _, c := range remaining {
		if c.IsIndexOnlyFilter() {
			indexOnly = append(indexOnly, c)
		} else {
			rest = append(rest, c)
		}
	}
	remaining = rest

	if len(indexOnly) > 0 {
		wantType, _ := indexOnly[0].SupportedIndexType()
		for _, c := range indexOnly[1:] {
			t, _ := c.SupportedIndexType()
			if t != wantType {
				return FindPlan{}, dberrors.New(dberrors.FilterError, "compile",
					"mixed index-only filter types in one query")
			}
		}
		desc, ok := findDescriptorByType(descriptors, wantType)
		if !ok {
			return FindPlan{}, dberrors.New(dberrors.FilterError, "compile", "no index found for index only filter")
		}
		plan.IndexDescriptorName = desc.Name()
		plan.IndexScanFilter = indexOnly
	}

	// Range-indexable conjuncts: longest field-prefix match against any
	// descriptor, only attempted if no index-only plan already claimed
	// the index slot.
	if plan.IndexDescriptorName == "" && len(remaining) > 0 {
		// byField maps each field to the position of its last conjunct in
		// remaining; only that conjunct is pushed into the index scan.
		byField := make(map[string]int, len(remaining))
		for i, c := range remaining {
			if c.HasField() {
				byField[c.Field()] = i
			}
		}

		bestDesc, bestPrefix := catalog.Descriptor{}, 0
		found := false
		for _, d := range descriptors {
			prefix := 0
			for _, f := range d.Fields {
				if _, ok := byField[f]; !ok {
					break
				}
				prefix++
			}
			if prefix > bestPrefix {
				bestPrefix = prefix
				bestDesc = d
				found = true
			}
		}

		if found && bestPrefix > 0 {
			plan.IndexDescriptorName = bestDesc.Name()
			used := make(map[int]bool, bestPrefix)
			var scanFilters []Filter
			for i := 0; i < bestPrefix; i++ {
				pos := byField[bestDesc.Fields[i]]
				scanFilters = append(scanFilters, remaining[pos])
				used[pos] = true
			}
			plan.IndexScanFilter = scanFilters

			var newRemaining []Filter
			for i, c := range remaining {
				if used[i] {
					continue
				}
				newRemaining = append(newRemaining, c)
			}
			remaining = newRemaining
		}
	}

	// Residual.
	if len(remaining) > 0 {
		if plan.IndexDescriptorName == "" && plan.ByIDFilter == nil {
			for _, c := range remaining {
				if c.IsIndexOnlyFilter() {
					return FindPlan{}, dberrors.New(dberrors.FilterError, "compile",
						"filter is not full text indexed")
				}
			}
		}
		residual := And(remaining...)
		plan.FullScanFilter = &residual
	}

	integrateSort(&plan, opts, descriptorFieldsOf(descriptors, plan.IndexDescriptorName))
	return plan, nil
}

func findDescriptorByType(descriptors []catalog.Descriptor, want index.Type) (catalog.Descriptor, bool) {
	for _, d := range descriptors {
		if d.Type == want {
			return d, true
		}
	}
	return catalog.Descriptor{}, false
}

func descriptorFieldsOf(descriptors []catalog.Descriptor, name string) []string {
	for _, d := range descriptors {
		if d.Name() == name {
			return d.Fields
		}
	}
	return nil
}

// integrateSort records the sort as IndexScanOrder when it follows the
// chosen index's field order, else as BlockingSortOrder; the cursor
// applies whichever one is set.
func integrateSort(plan *FindPlan, opts FindOptions, indexFields []string) {
	if len(opts.SortBy) == 0 {
		return
	}
	if plan.IndexDescriptorName == "" || len(indexFields) < len(opts.SortBy) {
		plan.BlockingSortOrder = opts.SortBy
		return
	}
	for i, s := range opts.SortBy {
		if indexFields[i] != s.Field {
			plan.BlockingSortOrder = opts.SortBy
			return
		}
	}
	for _, s := range opts.SortBy {
		plan.IndexScanOrder = append(plan.IndexScanOrder, IndexScanOrder{Field: s.Field, Reverse: s.Desc})
	}
}
