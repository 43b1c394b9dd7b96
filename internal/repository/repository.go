package repository

import (
	"reflect"

	"github.com/corvusdb/corvus/internal/collection"
	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/index"
	"github.com/corvusdb/corvus/internal/planner"
	"github.com/corvusdb/corvus/internal/value"
)

// Repository is a typed view over a Collection: every read returns T,
// every write accepts T, and the conversion between T and a
// value.Document is driven entirely by reflection over corvus struct
// tags.
type Repository[T any] struct {
	coll   *collection.Collection
	schema *typeSchema
}

// New builds a Repository[T] over coll. If T declares a corvus:"...,id"
// field, New ensures a unique index exists on it; T must be a struct
// type (or a pointer to one), reflected once and cached.
func New[T any](coll *collection.Collection) (*Repository[T], error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, dberrors.New(dberrors.ObjectMappingError, "repository.New",
			"repository type must be a concrete struct, not an interface")
	}
	schema, err := schemaFor(t)
	if err != nil {
		return nil, err
	}

	if schema.idField != "" {
		if err := coll.CreateIndex([]string{schema.idField}, index.TypeUnique, true); err != nil {
			if dberrors.KindOf(err) != dberrors.IndexAlreadyExists {
				return nil, err
			}
		}
	}

	return &Repository[T]{coll: coll, schema: schema}, nil
}

// Collection returns the untyped collection this repository wraps, for
// callers that need index management or event subscription.
func (r *Repository[T]) Collection() *collection.Collection { return r.coll }

func (r *Repository[T]) toDoc(obj T) (*value.Document, error) {
	doc, err := toDocument(r.schema, reflect.ValueOf(obj))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Insert converts obj to a document and inserts it, returning the
// collection-assigned document id.
func (r *Repository[T]) Insert(obj T) (uint64, error) {
	doc, err := r.toDoc(obj)
	if err != nil {
		return 0, err
	}
	return r.coll.Insert(doc)
}

// InsertMany converts and inserts every element of objs.
func (r *Repository[T]) InsertMany(objs []T) ([]uint64, error) {
	docs := make([]*value.Document, len(objs))
	for i, obj := range objs {
		doc, err := r.toDoc(obj)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}
	return r.coll.InsertMany(docs)
}

// UpdateOptions mirrors collection.UpdateOptions for the typed surface.
type UpdateOptions = collection.UpdateOptions

// Update replaces every field of every matching document with obj's
// fields (collection.UpdateWithOptions semantics), with default
// options (not just-once, not insert-if-absent).
func (r *Repository[T]) Update(filter planner.Filter, obj T) (int, error) {
	return r.UpdateWithOptions(filter, obj, UpdateOptions{})
}

// UpdateWithOptions is Update with explicit UpdateOptions.
func (r *Repository[T]) UpdateWithOptions(filter planner.Filter, obj T, opts UpdateOptions) (int, error) {
	doc, err := r.toDoc(obj)
	if err != nil {
		return 0, err
	}
	return r.coll.UpdateWithOptions(filter, doc, opts)
}

// Remove deletes every document matching filter (or only the first if
// justOnce is set), returning the number removed.
func (r *Repository[T]) Remove(filter planner.Filter, justOnce bool) (int, error) {
	return r.coll.Remove(filter, justOnce)
}

// Find plans and runs filter, converting every resulting document back
// into a T.
func (r *Repository[T]) Find(filter planner.Filter, opts planner.FindOptions) ([]T, error) {
	cur, err := r.coll.Find(filter, opts)
	if err != nil {
		return nil, err
	}
	docs, err := cur.All()
	if err != nil {
		return nil, err
	}
	out := make([]T, len(docs))
	for i, doc := range docs {
		rv, err := fromDocument(r.schema, doc)
		if err != nil {
			return nil, err
		}
		item := rv.Interface()
		if reflect.TypeOf((*T)(nil)).Elem().Kind() == reflect.Pointer {
			item = rv.Addr().Interface()
		}
		out[i] = item.(T)
	}
	return out, nil
}

// FindOne returns the first document matching filter, converted to T.
func (r *Repository[T]) FindOne(filter planner.Filter) (T, bool, error) {
	var zero T
	results, err := r.Find(filter, planner.FindOptions{Limit: planner.IntPtr(1)})
	if err != nil {
		return zero, false, err
	}
	if len(results) == 0 {
		return zero, false, nil
	}
	return results[0], true, nil
}

// GetByID looks up the single document whose corvus:"...,id" field equals
// id, using the unique index New establishes on that field. Returns an
// ObjectMappingError if T declares no id field, and ok=false if no
// document matches.
func (r *Repository[T]) GetByID(id value.Value) (T, bool, error) {
	var zero T
	if r.schema.idField == "" {
		return zero, false, dberrors.New(dberrors.ObjectMappingError, "Repository.GetByID",
			"type has no corvus:\"...,id\" field")
	}
	return r.FindOne(planner.Equals(r.schema.idField, id))
}
