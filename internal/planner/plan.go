package planner

import "github.com/corvusdb/corvus/internal/value"

// SortField is one (field, descending?) pair of a sort specification.
type SortField struct {
	Field string
	Desc  bool
}

// IntPtr returns a pointer to n. Helper for FindOptions.Limit/FindPlan.Limit,
// whose zero value (nil) must stay distinguishable from a limit of 0.
func IntPtr(n int) *int {
	return &n
}

// FindOptions carries the paging, sort, and distinct knobs a find() call
// accepts.
type FindOptions struct {
	SortBy []SortField
	Skip   int
	// Limit bounds the number of documents returned. nil means
	// unlimited; a non-nil pointer to 0 requests zero rows. Use
	// IntPtr to build one inline.
	Limit    *int
	Distinct bool

	// Collator overrides the default byte-wise value comparison used by
	// the blocking sort (SortBy) when set. Returns <0/0/>0 like
	// value.Value.Compare's ordering half. Query-scoped only: index key
	// order is fixed at build time and is never re-ordered per query.
	Collator func(a, b value.Value) int
}

// IndexScanOrder records, per indexed field, the requested sort direction
// (Reverse for descending) when the sort follows the chosen index's
// leading fields. The cursor sorts the index candidates by it.
type IndexScanOrder struct {
	Field   string
	Reverse bool
}

// FindPlan is the find-optimizer's compiled output: it names exactly
// which source to read from, which filter (if any) still needs a
// residual full scan, and which sort/paging/distinct post-processing
// applies.
type FindPlan struct {
	// ByIDFilter short-circuits everything else: a single document
	// lookup by its _id.
	ByIDFilter   *value.Value

	IndexDescriptorName string // empty if no index chosen
	IndexScanFilter     []Filter
	IndexScanOrder      []IndexScanOrder

	FullScanFilter *Filter // residual filter evaluated after the source

	BlockingSortOrder []SortField
	Collator          func(a, b value.Value) int

	Skip int
	// Limit mirrors FindOptions.Limit: nil is unlimited, a pointer to 0
	// yields zero documents.
	Limit    *int
	Distinct bool

	// SubPlans holds one plan per OR branch when the root filter is a
	// top-level OR every branch of which has its own index plan. If any
	// branch lacks one, the optimizer falls back to a single full scan
	// instead of populating this.
	SubPlans []FindPlan

	// OriginalFilter is kept for full-scan fallback and for the plan
	// cache's validation phase.
	OriginalFilter *Filter
}

// UsesIndex reports whether the plan can avoid a full collection scan.
func (p FindPlan) UsesIndex() bool {
	return p.ByIDFilter != nil || p.IndexDescriptorName != "" || len(p.SubPlans) > 0
}
