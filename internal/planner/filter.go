package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/value"
)

// Op identifies a filter's comparison operator.
type Op int

const (
	OpEquals Op = iota
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpNotEquals
	OpIn
	OpAnd
	OpOr
	OpNot
	OpText
	OpSpatialIntersects
	OpSpatialWithin
	OpSpatialNear
)

// Filter is the query DSL every find() call is built from. A Filter is
// either a field comparison, a text/spatial predicate, or a boolean
// combination of other Filters.
type Filter struct {
	op       Op
	field    string
	value    value.Value
	values   []value.Value // OpIn
	children []Filter      // And/Or/Not
	text     string        // OpText query string
	bbox     index.BoundingBox
	near     index.Point // OpSpatialNear origin
	k        int         // OpSpatialNear result count
}

func Equals(field string, v value.Value) Filter { return Filter{op: OpEquals, field: field, value: v} }
func NotEquals(field string, v value.Value) Filter {
	return Filter{op: OpNotEquals, field: field, value: v}
}
func GreaterThan(field string, v value.Value) Filter {
	return Filter{op: OpGreaterThan, field: field, value: v}
}
func GreaterThanOrEqual(field string, v value.Value) Filter {
	return Filter{op: OpGreaterThanOrEqual, field: field, value: v}
}
func LessThan(field string, v value.Value) Filter {
	return Filter{op: OpLessThan, field: field, value: v}
}
func LessThanOrEqual(field string, v value.Value) Filter {
	return Filter{op: OpLessThanOrEqual, field: field, value: v}
}
func In(field string, vs []value.Value) Filter { return Filter{op: OpIn, field: field, values: vs} }

func And(filters ...Filter) Filter { return Filter{op: OpAnd, children: filters} }
func Or(filters ...Filter) Filter  { return Filter{op: OpOr, children: filters} }
func Not(f Filter) Filter          { return Filter{op: OpNot, children: []Filter{f}} }

func Text(field, query string) Filter { return Filter{op: OpText, field: field, text: query} }

func SpatialIntersects(field string, bbox index.BoundingBox) Filter {
	return Filter{op: OpSpatialIntersects, field: field, bbox: bbox}
}
func SpatialWithin(field string, bbox index.BoundingBox) Filter {
	return Filter{op: OpSpatialWithin, field: field, bbox: bbox}
}

// SpatialNear builds a k-nearest-neighbours predicate: the k indexed
// entries whose bounding box center is closest to origin.
func SpatialNear(field string, origin index.Point, k int) Filter {
	return Filter{op: OpSpatialNear, field: field, near: origin, k: k}
}

func (f Filter) Op() Op                         { return f.op }
func (f Filter) Field() string                  { return f.field }
func (f Filter) Value() value.Value             { return f.value }
func (f Filter) Values() []value.Value          { return f.values }
func (f Filter) Children() []Filter             { return f.children }
func (f Filter) TextQuery() string              { return f.text }
func (f Filter) BoundingBox() index.BoundingBox { return f.bbox }
func (f Filter) NearOrigin() index.Point        { return f.near }
func (f Filter) NearK() int                     { return f.k }

// HasField reports whether this filter names a single field directly
// (true for comparisons and text/spatial predicates, false for boolean
// combinators).
func (f Filter) HasField() bool {
	switch f.op {
	case OpAnd, OpOr, OpNot:
		return false
	default:
		return true
	}
}

// IsIndexOnlyFilter reports whether this filter type can only ever be
// served by an index (text, spatial); it must never be evaluated as a
// residual full-scan predicate.
func (f Filter) IsIndexOnlyFilter() bool {
	switch f.op {
	case OpText, OpSpatialIntersects, OpSpatialWithin, OpSpatialNear:
		return true
	default:
		return false
	}
}

// SupportedIndexType returns the index.Type this filter can be served by,
// for filters where that's unambiguous.
func (f Filter) SupportedIndexType() (index.Type, bool) {
	switch f.op {
	case OpText:
		return index.TypeText, true
	case OpSpatialIntersects, OpSpatialWithin, OpSpatialNear:
		return index.TypeSpatial, true
	case OpEquals, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpIn:
		return index.TypeNonUnique, true // matches unique or non-unique, see CanBeGrouped
	default:
		return 0, false
	}
}

// CanBeGrouped reports whether two filters can be served by the same
// index-scan group, i.e. they name the same field or are both index-only
// filters of the same supported type.
func (f Filter) CanBeGrouped(other Filter) bool {
	if f.IsIndexOnlyFilter() && other.IsIndexOnlyFilter() {
		at, aok := f.SupportedIndexType()
		bt, bok := other.SupportedIndexType()
		return aok && bok && at == bt
	}
	return f.HasField() && other.HasField() && f.field == other.field
}

// Matches evaluates the filter directly against a document, used for the
// full-scan residual and for re-checking index-scan candidates. The plan
// cache compares filters by String(), not by Matches.
func (f Filter) Matches(doc *value.Document) bool {
	switch f.op {
	case OpAnd:
		for _, c := range f.children {
			if !c.Matches(doc) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range f.children {
			if c.Matches(doc) {
				return true
			}
		}
		return false
	case OpNot:
		return !f.children[0].Matches(doc)
	}

	fv, _ := doc.GetPath(f.field)
	switch f.op {
	case OpEquals:
		return fv.Equal(f.value)
	case OpNotEquals:
		return !fv.Equal(f.value)
	case OpGreaterThan:
		c, ok := fv.Compare(f.value)
		return ok && c > 0
	case OpGreaterThanOrEqual:
		c, ok := fv.Compare(f.value)
		return ok && c >= 0
	case OpLessThan:
		c, ok := fv.Compare(f.value)
		return ok && c < 0
	case OpLessThanOrEqual:
		c, ok := fv.Compare(f.value)
		return ok && c <= 0
	case OpIn:
		for _, v := range f.values {
			if fv.Equal(v) {
				return true
			}
		}
		return false
	case OpText:
		s, ok := fv.AsString()
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(f.text))
	default:
		return false
	}
}

// String renders a canonical, stable form used as part of the plan-cache
// key.
func (f Filter) String() string {
	var b strings.Builder
	f.writeString(&b)
	return b.String()
}

func (f Filter) writeString(b *strings.Builder) {
	switch f.op {
	case OpAnd, OpOr, OpNot:
		if f.op == OpAnd {
			b.WriteString("AND(")
		} else if f.op == OpOr {
			b.WriteString("OR(")
		} else {
			b.WriteString("NOT(")
		}
		children := make([]string, len(f.children))
		for i, c := range f.children {
			children[i] = c.String()
		}
		sort.Strings(children)
		b.WriteString(strings.Join(children, ","))
		b.WriteByte(')')
	case OpText:
		b.WriteString("TEXT(")
		b.WriteString(f.field)
		b.WriteByte(',')
		b.WriteString(f.text)
		b.WriteByte(')')
	case OpSpatialIntersects, OpSpatialWithin, OpSpatialNear:
		b.WriteString(spatialOpName(f.op))
		b.WriteByte('(')
		b.WriteString(f.field)
		b.WriteByte(',')
		if f.op == OpSpatialNear {
			fmt.Fprintf(b, "%g;%g;%d", f.near.X, f.near.Y, f.k)
		} else {
			fmt.Fprintf(b, "%g;%g;%g;%g", f.bbox.MinX, f.bbox.MinY, f.bbox.MaxX, f.bbox.MaxY)
		}
		b.WriteByte(')')
	default:
		b.WriteString(opName(f.op))
		b.WriteByte('(')
		b.WriteString(f.field)
		b.WriteByte(',')
		if f.op == OpIn {
			parts := make([]string, len(f.values))
			for i, v := range f.values {
				parts[i] = v.String()
			}
			b.WriteString(strings.Join(parts, ";"))
		} else {
			b.WriteString(f.value.String())
		}
		b.WriteByte(')')
	}
}

func spatialOpName(op Op) string {
	switch op {
	case OpSpatialIntersects:
		return "SPATIAL_INTERSECTS"
	case OpSpatialWithin:
		return "SPATIAL_WITHIN"
	case OpSpatialNear:
		return "SPATIAL_NEAR"
	default:
		return "SPATIAL"
	}
}

func opName(op Op) string {
	switch op {
	case OpEquals:
		return "EQ"
	case OpNotEquals:
		return "NE"
	case OpGreaterThan:
		return "GT"
	case OpGreaterThanOrEqual:
		return "GTE"
	case OpLessThan:
		return "LT"
	case OpLessThanOrEqual:
		return "LTE"
	case OpIn:
		return "IN"
	default:
		return "?"
	}
}
