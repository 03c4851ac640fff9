package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/fluxorio/housebus/pkg/core"
)

// Object is a decoded JSON object. Values are string, int64, float64, bool,
// []interface{}, Object or, for Any fields, the normalized JSON value.
// Only declared fields are present.
type Object map[string]interface{}

// Has reports whether the field was present and non-null.
func (o Object) Has(name string) bool {
	_, ok := o[name]
	return ok
}

func (o Object) String(name string) string {
	s, _ := o[name].(string)
	return s
}

func (o Object) Int(name string) int64 {
	n, _ := o[name].(int64)
	return n
}

func (o Object) Float(name string) float64 {
	f, _ := o[name].(float64)
	return f
}

func (o Object) Bool(name string) bool {
	b, _ := o[name].(bool)
	return b
}

// Array returns an array field; an absent optional array is empty, not nil.
func (o Object) Array(name string) []interface{} {
	a, _ := o[name].([]interface{})
	return a
}

func (o Object) Object(name string) Object {
	obj, _ := o[name].(Object)
	return obj
}

// Objects returns an array of objects field.
func (o Object) Objects(name string) []Object {
	arr := o.Array(name)
	out := make([]Object, 0, len(arr))
	for _, v := range arr {
		if obj, ok := v.(Object); ok {
			out = append(out, obj)
		}
	}
	return out
}

// Bounds of the float64 values that convert to int64 exactly.
const (
	minInt64Float = -9223372036854775808.0
	maxInt64Float = 9223372036854775808.0
)

// Decode parses payload and checks it against shape. The top-level value
// must be a JSON object. Decode is safe for concurrent use.
func Decode(payload []byte, shape *Shape) (Object, error) {
	if shape == nil {
		return nil, &DecodeError{Shape: "<nil>", Path: "$", Reason: ReasonShapeMismatch, Err: fmt.Errorf("no shape")}
	}

	var doc interface{}
	if err := core.JSONDecodeNumber(payload, &doc); err != nil {
		return nil, &DecodeError{Shape: shape.name, Path: "$", Reason: ReasonMalformed, Err: err}
	}

	raw, ok := doc.(map[string]interface{})
	if !ok {
		return nil, mismatch(shape.name, "$", "expected object, got %s", jsonKind(doc))
	}
	return decodeObject(shape.name, "$", raw, shape)
}

func decodeObject(root, path string, raw map[string]interface{}, shape *Shape) (Object, error) {
	out := make(Object, len(shape.fields))

	for _, f := range shape.fields {
		fieldPath := path + "." + f.Name
		v, present := raw[f.Name]

		if !present || v == nil {
			if f.Required {
				if !present {
					return nil, mismatch(root, fieldPath, "missing required field")
				}
				return nil, mismatch(root, fieldPath, "required field is null")
			}
			if f.Type.kind == KindArray {
				out[f.Name] = []interface{}{}
			}
			continue
		}

		decoded, err := decodeValue(root, fieldPath, v, f.Type)
		if err != nil {
			return nil, err
		}
		out[f.Name] = decoded
	}

	return out, nil
}

func decodeValue(root, path string, v interface{}, t Type) (interface{}, error) {
	switch t.kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(root, path, "expected string, got %s", jsonKind(v))
		}
		return s, nil

	case KindInt:
		n, ok := v.(json.Number)
		if !ok {
			return nil, mismatch(root, path, "expected integer, got %s", jsonKind(v))
		}
		return toInt(root, path, n)

	case KindFloat:
		n, ok := v.(json.Number)
		if !ok {
			return nil, mismatch(root, path, "expected number, got %s", jsonKind(v))
		}
		f, err := n.Float64()
		if err != nil {
			return nil, mismatch(root, path, "number %s out of range", n)
		}
		return f, nil

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(root, path, "expected boolean, got %s", jsonKind(v))
		}
		return b, nil

	case KindArray:
		arr, ok := v.([]interface{})
		if !ok {
			return nil, mismatch(root, path, "expected array, got %s", jsonKind(v))
		}
		out := make([]interface{}, len(arr))
		for i, elem := range arr {
			elemPath := path + "[" + strconv.Itoa(i) + "]"
			if elem == nil {
				return nil, mismatch(root, elemPath, "null element")
			}
			decoded, err := decodeValue(root, elemPath, elem, *t.elem)
			if err != nil {
				return nil, err
			}
			out[i] = decoded
		}
		return out, nil

	case KindObject:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, mismatch(root, path, "expected object, got %s", jsonKind(v))
		}
		return decodeObject(root, path, obj, t.shape)

	default:
		return normalize(v), nil
	}
}

// toInt accepts integers and floats with a zero fractional part.
func toInt(root, path string, n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}

	f, err := n.Float64()
	if err != nil {
		return 0, mismatch(root, path, "number %s out of range", n)
	}
	if f != math.Trunc(f) {
		return 0, mismatch(root, path, "expected integer, got fractional %s", n)
	}
	if f < minInt64Float || f >= maxInt64Float {
		return 0, mismatch(root, path, "integer %s overflows int64", n)
	}
	return int64(f), nil
}

// normalize converts json.Number and nested objects for Any fields.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]interface{}:
		out := make(Object, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
