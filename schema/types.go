// Package schema holds the declaration side of a model: field types, the
// Field and Relationship descriptors, and the collection pass that splits a
// class declaration into plain fields and relationships.
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrimitiveType represents the built-in field types.
type PrimitiveType int

const (
	// Text types
	TypeString PrimitiveType = iota
	TypeText

	// Numeric types
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDecimal

	// Boolean
	TypeBool

	// Time types
	TypeTimestamp
	TypeDate
	TypeTime
	TypeDuration

	// Unique identifiers
	TypeUUID

	// Validated types
	TypeEmail
	TypeURL

	// Documents and blobs
	TypeJSON
	TypeBytes

	// Enum
	TypeEnum

	// TypeModel is another declared model, by value or by forward reference.
	TypeModel

	// TypeAny accepts any value unchanged.
	TypeAny
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeDuration:
		return "duration"
	case TypeUUID:
		return "uuid"
	case TypeEmail:
		return "email"
	case TypeURL:
		return "url"
	case TypeJSON:
		return "json"
	case TypeBytes:
		return "bytes"
	case TypeEnum:
		return "enum"
	case TypeModel:
		return "model"
	case TypeAny:
		return "any"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	for p := TypeString; p <= TypeAny; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown primitive type: %s", s)
}

// Modeler is a declared model class usable as a field or relationship type.
type Modeler interface {
	Name() string
}

// TypeSpec is a field annotation: a base type plus the Optional and List
// wrappers, and type parameters.
type TypeSpec struct {
	BaseType PrimitiveType
	Nullable bool // Optional(...)

	ArrayElement *TypeSpec // List(...)
	EnumValues   []string  // Enum(...)

	// Type parameters (e.g. StringN(50), Decimal(10, 2))
	Length    *int
	Precision *int
	Scale     *int

	// Model is set for TypeModel annotations that reference a class value.
	Model Modeler
	// Ref names a class that may not be declared yet.
	Ref string
}

// String returns a string representation of the TypeSpec
func (t *TypeSpec) String() string {
	var s string

	switch {
	case t.ArrayElement != nil:
		s = fmt.Sprintf("List[%s]", t.ArrayElement.String())
	case len(t.EnumValues) > 0:
		s = fmt.Sprintf("enum[%s]", strings.Join(t.EnumValues, ", "))
	case t.BaseType == TypeModel:
		s = t.ModelName()
	default:
		s = t.BaseType.String()
		if t.Length != nil {
			s = fmt.Sprintf("%s(%d)", s, *t.Length)
		}
		if t.Precision != nil && t.Scale != nil {
			s = fmt.Sprintf("%s(%d,%d)", s, *t.Precision, *t.Scale)
		}
	}

	if t.Nullable {
		return "Optional[" + s + "]"
	}
	return s
}

// IsNumeric returns true if the type is a numeric type
func (t *TypeSpec) IsNumeric() bool {
	return t.BaseType == TypeInt ||
		t.BaseType == TypeBigInt ||
		t.BaseType == TypeFloat ||
		t.BaseType == TypeDecimal
}

// IsText returns true if the type holds a string value.
func (t *TypeSpec) IsText() bool {
	switch t.BaseType {
	case TypeString, TypeText, TypeEmail, TypeURL, TypeEnum:
		return true
	}
	return false
}

// IsList reports whether the annotation is a List.
func (t *TypeSpec) IsList() bool { return t.ArrayElement != nil }

// Target strips the Optional and List wrappers.
func (t *TypeSpec) Target() *TypeSpec {
	cur := t
	for cur.ArrayElement != nil {
		cur = cur.ArrayElement
	}
	return cur
}

// ModelName returns the referenced class name of a TypeModel annotation.
func (t *TypeSpec) ModelName() string {
	if t.Model != nil {
		return t.Model.Name()
	}
	return t.Ref
}

func ptr[T any](v T) *T { return &v }

func base(p PrimitiveType) *TypeSpec { return &TypeSpec{BaseType: p} }

// String is an unbounded string.
func String() *TypeSpec { return base(TypeString) }

// StringN is a string of at most n characters in storage.
func StringN(n int) *TypeSpec { return &TypeSpec{BaseType: TypeString, Length: ptr(n)} }

// Text is a long string.
func Text() *TypeSpec { return base(TypeText) }

// Int is a machine integer.
func Int() *TypeSpec { return base(TypeInt) }

// BigInt is a 64-bit integer.
func BigInt() *TypeSpec { return base(TypeBigInt) }

// Float is a floating point number.
func Float() *TypeSpec { return base(TypeFloat) }

// Decimal is a fixed-point number.
func Decimal(precision, scale int) *TypeSpec {
	return &TypeSpec{BaseType: TypeDecimal, Precision: ptr(precision), Scale: ptr(scale)}
}

// Bool is a boolean.
func Bool() *TypeSpec { return base(TypeBool) }

// Timestamp is a date and time.
func Timestamp() *TypeSpec { return base(TypeTimestamp) }

// Date is a calendar date.
func Date() *TypeSpec { return base(TypeDate) }

// Time is a time of day.
func Time() *TypeSpec { return base(TypeTime) }

// Duration is a time span.
func Duration() *TypeSpec { return base(TypeDuration) }

// UUID is a universally unique identifier.
func UUID() *TypeSpec { return base(TypeUUID) }

// Email is a string holding an e-mail address.
func Email() *TypeSpec { return base(TypeEmail) }

// URL is a string holding an absolute URL.
func URL() *TypeSpec { return base(TypeURL) }

// JSON is an arbitrary JSON document.
func JSON() *TypeSpec { return base(TypeJSON) }

// Bytes is a binary value.
func Bytes() *TypeSpec { return base(TypeBytes) }

// Any accepts any value.
func Any() *TypeSpec { return base(TypeAny) }

// Enum is a string restricted to values.
func Enum(values ...string) *TypeSpec {
	return &TypeSpec{BaseType: TypeEnum, EnumValues: append([]string(nil), values...)}
}

// Model is an annotation naming a declared class.
func Model(m Modeler) *TypeSpec { return &TypeSpec{BaseType: TypeModel, Model: m} }

// Ref is a forward reference to a class by name.
func Ref(name string) *TypeSpec { return &TypeSpec{BaseType: TypeModel, Ref: name} }

// Optional marks t as accepting nil.
func Optional(t *TypeSpec) *TypeSpec {
	cp := *t
	cp.Nullable = true
	return &cp
}

// List is a list of t.
func List(t *TypeSpec) *TypeSpec { return &TypeSpec{ArrayElement: t} }

// InferType derives an annotation from a default value's Go type. Values
// with no matching type infer Any.
func InferType(v any) *TypeSpec {
	switch x := v.(type) {
	case nil:
		return Optional(Any())
	case string:
		return String()
	case bool:
		return Bool()
	case int, int8, int16, int32, uint8, uint16:
		return Int()
	case int64, uint, uint32, uint64:
		return BigInt()
	case float32, float64:
		return Float()
	case time.Time:
		return Timestamp()
	case time.Duration:
		return Duration()
	case uuid.UUID:
		return UUID()
	case []byte:
		return Bytes()
	case map[string]any:
		return JSON()
	case Modeler:
		return Model(x)
	}
	return Any()
}
