package repository

import (
	"reflect"

	"github.com/corvusdb/corvus/internal/dberrors"
	"github.com/corvusdb/corvus/internal/value"
)

// toDocument converts obj (a struct or pointer to struct matching
// schema) into a value.Document, field by field.
func toDocument(schema *typeSchema, obj reflect.Value) (*value.Document, error) {
	for obj.Kind() == reflect.Pointer {
		if obj.IsNil() {
			return nil, dberrors.New(dberrors.ObjectMappingError, "repository.toDocument",
				"cannot convert a nil "+schema.structType.String())
		}
		obj = obj.Elem()
	}

	doc := value.NewDocument()
	for _, fs := range schema.fields {
		fv := obj.FieldByIndex(fs.goIndex)
		v, err := toValue(fv)
		if err != nil {
			return nil, dberrors.Wrap(dberrors.ObjectMappingError, "repository.toDocument",
				"field "+fs.docKey+" of "+schema.structType.String(), err)
		}
		doc.Put(fs.docKey, v)
	}
	return doc, nil
}

// fromDocument populates a freshly allocated instance of schema's
// struct type from doc, returning it as a reflect.Value of kind Struct.
func fromDocument(schema *typeSchema, doc *value.Document) (reflect.Value, error) {
	out := reflect.New(schema.structType).Elem()
	for _, fs := range schema.fields {
		docVal, ok := doc.Get(fs.docKey)
		if !ok {
			continue
		}
		fv := out.FieldByIndex(fs.goIndex)
		if err := setFromValue(fv, docVal); err != nil {
			return reflect.Value{}, dberrors.Wrap(dberrors.ObjectMappingError, "repository.fromDocument",
				"field "+fs.docKey+" of "+schema.structType.String(), err)
		}
	}
	return out, nil
}

func toValue(fv reflect.Value) (value.Value, error) {
	switch fv.Kind() {
	case reflect.Pointer:
		if fv.IsNil() {
			return value.Null, nil
		}
		return toValue(fv.Elem())
	case reflect.String:
		return value.String(fv.String()), nil
	case reflect.Bool:
		return value.Bool(fv.Bool()), nil
	case reflect.Int, reflect.Int64:
		return value.Int64(fv.Int()), nil
	case reflect.Int8:
		return value.Int8(int8(fv.Int())), nil
	case reflect.Int16:
		return value.Int16(int16(fv.Int())), nil
	case reflect.Int32:
		return value.Int32(int32(fv.Int())), nil
	case reflect.Uint, reflect.Uint64:
		return value.Uint64(fv.Uint()), nil
	case reflect.Uint8:
		return value.Uint8(uint8(fv.Uint())), nil
	case reflect.Uint16:
		return value.Uint16(uint16(fv.Uint())), nil
	case reflect.Uint32:
		return value.Uint32(uint32(fv.Uint())), nil
	case reflect.Float32:
		return value.Float32(float32(fv.Float())), nil
	case reflect.Float64:
		return value.Float64(fv.Float()), nil
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			return value.Bytes(fv.Bytes()), nil
		}
		out := make([]value.Value, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			elem, err := toValue(fv.Index(i))
			if err != nil {
				return value.Value{}, err
			}
			out[i] = elem
		}
		return value.Array(out), nil
	case reflect.Array:
		out := make([]value.Value, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			elem, err := toValue(fv.Index(i))
			if err != nil {
				return value.Value{}, err
			}
			out[i] = elem
		}
		return value.Array(out), nil
	case reflect.Struct:
		nested, err := toDocumentOfAnyStruct(fv)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromDocument(nested), nil
	default:
		return value.Value{}, dberrors.New(dberrors.ObjectMappingError, "repository.toValue",
			"unsupported field kind "+fv.Kind().String())
	}
}

// toDocumentOfAnyStruct handles a nested struct field whose type was
// never registered via Repository.New by computing its schema on
// demand; the result is cached like any other type.
func toDocumentOfAnyStruct(fv reflect.Value) (*value.Document, error) {
	schema, err := schemaFor(fv.Type())
	if err != nil {
		return nil, err
	}
	return toDocument(schema, fv)
}

func setFromValue(fv reflect.Value, v value.Value) error {
	if v.IsNull() {
		return nil
	}
	switch fv.Kind() {
	case reflect.Pointer:
		elem := reflect.New(fv.Type().Elem())
		if err := setFromValue(elem.Elem(), v); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	case reflect.String:
		s, ok := v.AsString()
		if !ok {
			return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue", "expected a string value")
		}
		fv.SetString(s)
		return nil
	case reflect.Bool:
		b, ok := v.AsBool()
		if !ok {
			return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue", "expected a bool value")
		}
		fv.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, ok := v.AsFloat64()
		if !ok {
			return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue", "expected a numeric value")
		}
		fv.SetInt(int64(f))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if id, ok := v.AsID(); ok {
			fv.SetUint(id)
			return nil
		}
		f, ok := v.AsFloat64()
		if !ok {
			return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue", "expected a numeric value")
		}
		fv.SetUint(uint64(f))
		return nil
	case reflect.Float32, reflect.Float64:
		f, ok := v.AsFloat64()
		if !ok {
			return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue", "expected a numeric value")
		}
		fv.SetFloat(f)
		return nil
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := v.AsBytes()
			if !ok {
				return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue", "expected bytes")
			}
			fv.SetBytes(b)
			return nil
		}
		arr, ok := v.AsArray()
		if !ok {
			return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue", "expected an array value")
		}
		out := reflect.MakeSlice(fv.Type(), len(arr), len(arr))
		for i, elem := range arr {
			if err := setFromValue(out.Index(i), elem); err != nil {
				return err
			}
		}
		fv.Set(out)
		return nil
	case reflect.Struct:
		doc, ok := v.AsDocument()
		if !ok {
			return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue", "expected a document value")
		}
		schema, err := schemaFor(fv.Type())
		if err != nil {
			return err
		}
		nested, err := fromDocument(schema, doc)
		if err != nil {
			return err
		}
		fv.Set(nested)
		return nil
	default:
		return dberrors.New(dberrors.ObjectMappingError, "repository.setFromValue",
			"unsupported field kind "+fv.Kind().String())
	}
}
