// Package schema decodes untyped JSON payloads against explicit shapes.
//
// A Shape lists the fields a consumer expects. Decoding is permissive:
// unknown fields are ignored, integral floats are accepted for integer
// fields and optional fields may be missing. A Schema adds a constructor
// that turns the decoded Object into a domain value, so invariant failures
// and shape mismatches surface as the same DecodeError.
package schema

import (
	"fmt"
	"strings"
)

// Kind is the JSON type a field accepts.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "any"
	}
}

// Type describes the accepted value of a field or array element.
type Type struct {
	kind  Kind
	elem  *Type
	shape *Shape
}

// Kind returns the JSON kind of t.
func (t Type) Kind() Kind { return t.kind }

func (t Type) String() string {
	switch t.kind {
	case KindArray:
		return "array<" + t.elem.String() + ">"
	case KindObject:
		return t.shape.name
	default:
		return t.kind.String()
	}
}

func String() Type { return Type{kind: KindString} }
func Int() Type    { return Type{kind: KindInt} }
func Float() Type  { return Type{kind: KindFloat} }
func Bool() Type   { return Type{kind: KindBool} }
func Any() Type    { return Type{kind: KindAny} }

// ArrayOf accepts a JSON array whose elements all match elem.
func ArrayOf(elem Type) Type {
	return Type{kind: KindArray, elem: &elem}
}

// ObjectOf accepts a nested JSON object matching shape.
func ObjectOf(shape *Shape) Type {
	if shape == nil {
		panic("schema: ObjectOf(nil)")
	}
	return Type{kind: KindObject, shape: shape}
}

// Field is one named entry of a Shape.
type Field struct {
	Name     string
	Type     Type
	Required bool
}

// Required declares a field that must be present and non-null.
func Required(name string, t Type) Field {
	return Field{Name: name, Type: t, Required: true}
}

// Optional declares a field that may be absent or null.
func Optional(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// Shape is an immutable object description.
type Shape struct {
	name   string
	fields []Field
}

// NewShape builds a shape. It panics on an empty or duplicate field name.
func NewShape(name string, fields ...Field) *Shape {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			panic(fmt.Sprintf("schema: shape %s has a field without name", name))
		}
		if _, dup := seen[f.Name]; dup {
			panic(fmt.Sprintf("schema: shape %s declares field %q twice", name, f.Name))
		}
		seen[f.Name] = struct{}{}
	}

	out := make([]Field, len(fields))
	copy(out, fields)
	return &Shape{name: name, fields: out}
}

// Name returns the shape name used in errors and metrics.
func (s *Shape) Name() string { return s.name }

// Fields returns a copy of the declared fields.
func (s *Shape) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}
