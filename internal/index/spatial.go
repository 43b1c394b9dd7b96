package index

import (
	"sort"
	"sync"

	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/value"
)

// BoundingBox is an axis-aligned 2D bounding box in (minX, minY, maxX, maxY)
// form, matching the reference spatial index's box representation.
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b BoundingBox) intersects(o BoundingBox) bool {
	return b.MinX <= o.MaxX && b.MaxX >= o.MinX && b.MinY <= o.MaxY && b.MaxY >= o.MinY
}

func (b BoundingBox) contains(o BoundingBox) bool {
	return b.MinX <= o.MinX && b.MaxX >= o.MaxX && b.MinY <= o.MinY && b.MaxY >= o.MaxY
}

func (b BoundingBox) center() (float64, float64) {
	return (b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2
}

// Point is a 2D coordinate used as the origin of a KNearest query.
type Point struct {
	X, Y float64
}

func sqDist(x1, y1, x2, y2 float64) float64 {
	dx, dy := x1-x2, y1-y2
	return dx*dx + dy*dy
}

// Geometry is the minimal shape contract a spatial-indexed field value must
// satisfy: it can compute its own bounding box.
type Geometry interface {
	BoundingBox() BoundingBox
}

type spatialEntry struct {
	docID uint64
	bbox  BoundingBox
}

// SpatialIndex is a from-scratch bounding-box index: a flat slice of
// (docID, bbox) pairs scanned linearly on Find. Corvus's scale target does
// not warrant a disk-backed R-tree; this trades O(n) scans for the
// footprint of a persisted tree structure, fitting an embeddable library
// rather than a search engine.
type SpatialIndex struct {
	mu      sync.RWMutex
	field   string
	entries []spatialEntry
}

func NewSpatialIndex(field string) *SpatialIndex {
	return &SpatialIndex{field: field}
}

func (idx *SpatialIndex) Type() Type       { return TypeSpatial }
func (idx *SpatialIndex) Fields() []string { return []string{idx.field} }

func (idx *SpatialIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

func (idx *SpatialIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = nil
}

func valueToBoundingBox(v value.Value) (BoundingBox, bool) {
	arr, ok := v.AsArray()
	if !ok || len(arr) != 4 {
		return BoundingBox{}, false
	}
	coords := make([]float64, 4)
	for i, e := range arr {
		f, ok := e.AsFloat64()
		if !ok {
			return BoundingBox{}, false
		}
		coords[i] = f
	}
	return BoundingBox{MinX: coords[0], MinY: coords[1], MaxX: coords[2], MaxY: coords[3]}, true
}

func boundingBoxToValue(b BoundingBox) value.Value {
	return value.Array([]value.Value{
		value.Float64(b.MinX), value.Float64(b.MinY), value.Float64(b.MaxX), value.Float64(b.MaxY),
	})
}

func (idx *SpatialIndex) Write(docID uint64, fieldValues []value.Value) error {
	if len(fieldValues) != 1 {
		return dberrors.New(dberrors.IndexingError, "SpatialIndex.Write", "expected exactly one field value")
	}
	bbox, ok := valueToBoundingBox(fieldValues[0])
	if !ok {
		return dberrors.New(dberrors.IndexingError, "SpatialIndex.Write", "field value is not a [minX,minY,maxX,maxY] bounding box")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = append(idx.entries, spatialEntry{docID: docID, bbox: bbox})
	return nil
}

func (idx *SpatialIndex) Remove(docID uint64, fieldValues []value.Value) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := idx.entries[:0]
	for _, e := range idx.entries {
		if e.docID != docID {
			out = append(out, e)
		}
	}
	idx.entries = out
	return nil
}

// Find performs an exact bounding-box match (rarely useful on its own;
// spatial queries normally go through Intersects/Within).
func (idx *SpatialIndex) Find(key value.Value) ([]uint64, error) {
	bbox, ok := valueToBoundingBox(key)
	if !ok {
		return nil, dberrors.New(dberrors.IndexingError, "SpatialIndex.Find", "key is not a bounding box")
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []uint64
	for _, e := range idx.entries {
		if e.bbox == bbox {
			out = append(out, e.docID)
		}
	}
	return out, nil
}

func (idx *SpatialIndex) FindRange(lower value.Value, hasLower bool, upper value.Value, hasUpper bool) ([]uint64, error) {
	return nil, dberrors.New(dberrors.IndexingError, "SpatialIndex.FindRange", "spatial index does not support range queries")
}

// Intersects returns every entry whose bounding box overlaps query. Indexed
// values are themselves bounding boxes, so this overlap test is the whole
// predicate; no second, per-geometry test runs afterwards.
func (idx *SpatialIndex) Intersects(query BoundingBox) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []uint64
	for _, e := range idx.entries {
		if e.bbox.intersects(query) {
			out = append(out, e.docID)
		}
	}
	return out
}

// Within returns every indexed bbox fully contained in query.
func (idx *SpatialIndex) Within(query BoundingBox) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []uint64
	for _, e := range idx.entries {
		if query.contains(e.bbox) {
			out = append(out, e.docID)
		}
	}
	return out
}

// Nearest returns the k indexed entries whose bbox center is closest to
// origin, nearest first. Distance is compared on squared Euclidean
// distance between centers; the flat-slice layout means this is a full
// O(n log n) sort rather than the pruned descent a real R-tree would do,
// consistent with this index trading tree structure for simplicity.
func (idx *SpatialIndex) Nearest(origin Point, k int) []uint64 {
	if k <= 0 {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	type ranked struct {
		docID uint64
		d     float64
	}
	ranked_ := make([]ranked, len(idx.entries))
	for i, e := range idx.entries {
		cx, cy := e.bbox.center()
		ranked_[i] = ranked{docID: e.docID, d: sqDist(origin.X, origin.Y, cx, cy)}
	}
	sort.Slice(ranked_, func(i, j int) bool { return ranked_[i].d < ranked_[j].d })
	if k > len(ranked_) {
		k = len(ranked_)
	}
	out := make([]uint64, k)
	for i := 0; i < k; i++ {
		out[i] = ranked_[i].docID
	}
	return out
}
