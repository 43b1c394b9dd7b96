// Package repository implements a generic, reflection-driven typed view
// over a document collection, converting Go structs to and from
// value.Document the way a typed object store maps domain types onto
// untyped storage.
package repository

import (
	"reflect"
	"strings"
	"sync"

	"github.com/corvusdb/corvus/internal/dberrors"
)

// fieldSchema describes one mapped struct field: which document key it
// round-trips through, and whether it is the entity's identifying
// field (a candidate for a unique index, not to be confused with the
// collection-assigned internal document id).
type fieldSchema struct {
	goIndex []int
	docKey  string
	isID    bool
}

// typeSchema is the reflected, cached plan for one struct type.
type typeSchema struct {
	structType reflect.Type
	fields     []fieldSchema
	idField    string // doc key of the corvus:"...,id" field, "" if none
}

var schemaCache sync.Map // reflect.Type -> *typeSchema

func schemaFor(t reflect.Type) (*typeSchema, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, dberrors.New(dberrors.ObjectMappingError, "repository.schemaFor",
			"type "+t.String()+" is not a struct")
	}
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*typeSchema), nil
	}

	schema := &typeSchema{structType: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		tag := f.Tag.Get("corvus")
		if tag == "-" {
			continue
		}
		name, isID := parseTag(tag, f.Name)
		schema.fields = append(schema.fields, fieldSchema{
			goIndex: f.Index,
			docKey:  name,
			isID:    isID,
		})
		if isID {
			if schema.idField != "" {
				return nil, dberrors.New(dberrors.ObjectMappingError, "repository.schemaFor",
					"type "+t.String()+" declares more than one corvus id field")
			}
			schema.idField = name
		}
	}

	actual, _ := schemaCache.LoadOrStore(t, schema)
	return actual.(*typeSchema), nil
}

// parseTag splits a `corvus:"field,id"` tag into its document key and
// whether it carries the ,id marker. An empty tag falls back to the Go
// field name.
func parseTag(tag, fieldName string) (name string, isID bool) {
	name = fieldName
	if tag == "" {
		return name, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "id" {
			isID = true
		}
	}
	return name, isID
}
