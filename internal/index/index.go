package index

import (
	"github.com/corvusdb/corvus/internal/value"
)

// Type identifies what kind of index a descriptor builds.
type Type int

const (
	TypeUnique Type = iota
	TypeNonUnique
	TypeCompound
	TypeText
	TypeSpatial
)

func (t Type) String() string {
	switch t {
	case TypeUnique:
		return "Unique"
	case TypeNonUnique:
		return "NonUnique"
	case TypeCompound:
		return "Compound"
	case TypeText:
		return "Text"
	case TypeSpatial:
		return "Spatial"
	default:
		return "Unknown"
	}
}

// Index is the common contract every index type implements: write a field
// value (or values, for compound) into the index on document insert/update,
// remove it on delete, and find the NitriteIds matching an equality probe
// or a range.
type Index interface {
	Type() Type
	Fields() []string

	// Write indexes docID under the field value(s) extracted from doc.
	Write(docID uint64, fieldValues []value.Value) error
	// Remove un-indexes docID from the field value(s) it was previously
	// written under.
	Remove(docID uint64, fieldValues []value.Value) error

	// Find returns every NitriteId indexed under an exact key.
	Find(key value.Value) ([]uint64, error)
	// FindRange returns every NitriteId indexed under keys within
	// [lower, upper] depending on which bounds are present; either bound
	// may be the zero value with its has flag false for an open range.
	FindRange(lower value.Value, hasLower bool, upper value.Value, hasUpper bool) ([]uint64, error)

	Size() int
	Clear()
}
