package parser

import (
	"encoding/json"
	"fmt"

	"github.com/corvusdb/corvus/internal/value"
)

// DecodeDocument parses a JSON object literal into a value.Document. A
// top-level array or scalar is rejected; every document corvus inserts
// is an object.
func DecodeDocument(s string) (*value.Document, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("invalid json document: %w", err)
	}
	return jsonObjectToDocument(raw), nil
}

// DecodeJSONValue parses any JSON literal (object, array, or scalar)
// into a value.Value, for filter argument values.
func DecodeJSONValue(s string) (value.Value, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return value.Value{}, fmt.Errorf("invalid json value: %w", err)
	}
	return jsonToValue(raw), nil
}

func jsonObjectToDocument(raw map[string]interface{}) *value.Document {
	doc := value.NewDocument()
	for k, v := range raw {
		doc.Put(k, jsonToValue(v))
	}
	return doc
}

func jsonToValue(raw interface{}) value.Value {
	switch v := raw.(type) {
	case nil:
		return value.Null
	case bool:
		return value.Bool(v)
	case float64:
		if v == float64(int64(v)) {
			return value.Int64(int64(v))
		}
		return value.Float64(v)
	case string:
		return value.String(v)
	case []interface{}:
		out := make([]value.Value, len(v))
		for i, elem := range v {
			out[i] = jsonToValue(elem)
		}
		return value.Array(out)
	case map[string]interface{}:
		return value.FromDocument(jsonObjectToDocument(v))
	default:
		return value.Null
	}
}

// FormatDocument renders doc back to JSON, indented when pretty is set
// and compact otherwise.
func FormatDocument(doc *value.Document, pretty bool) (string, error) {
	raw := documentToJSON(doc)
	var out []byte
	var err error
	if pretty {
		out, err = json.MarshalIndent(raw, "", "  ")
	} else {
		out, err = json.Marshal(raw)
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func documentToJSON(doc *value.Document) map[string]interface{} {
	out := make(map[string]interface{}, doc.Len())
	for _, k := range doc.Fields() {
		v, _ := doc.Get(k)
		out[k] = valueToJSON(v)
	}
	return out
}

func valueToJSON(v value.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	if s, ok := v.AsString(); ok {
		return s
	}
	if b, ok := v.AsBool(); ok {
		return b
	}
	if id, ok := v.AsID(); ok {
		return id
	}
	if f, ok := v.AsFloat64(); ok {
		return f
	}
	if arr, ok := v.AsArray(); ok {
		out := make([]interface{}, len(arr))
		for i, elem := range arr {
			out[i] = valueToJSON(elem)
		}
		return out
	}
	if d, ok := v.AsDocument(); ok {
		return documentToJSON(d)
	}
	if b, ok := v.AsBytes(); ok {
		return b
	}
	return v.String()
}
