// Package mapping is the persistence side of a model: SQL column types,
// columns, tables, the metadata that owns them, mappers binding a class to a
// table, relationship properties, and per-instance attribute state.
package mapping

import (
	"fmt"
	"strings"
)

// TypeKind is the generic SQL type family of a column.
type TypeKind int

const (
	KindString TypeKind = iota
	KindText
	KindInteger
	KindBigInteger
	KindFloat
	KindNumeric
	KindBoolean
	KindDateTime
	KindDate
	KindTime
	KindInterval
	KindUUID
	KindLargeBinary
	KindJSON
	KindEnum
)

// String returns the generic type name.
func (k TypeKind) String() string {
	switch k {
	case KindString:
		return "VARCHAR"
	case KindText:
		return "TEXT"
	case KindInteger:
		return "INTEGER"
	case KindBigInteger:
		return "BIGINT"
	case KindFloat:
		return "FLOAT"
	case KindNumeric:
		return "NUMERIC"
	case KindBoolean:
		return "BOOLEAN"
	case KindDateTime:
		return "DATETIME"
	case KindDate:
		return "DATE"
	case KindTime:
		return "TIME"
	case KindInterval:
		return "INTERVAL"
	case KindUUID:
		return "UUID"
	case KindLargeBinary:
		return "BLOB"
	case KindJSON:
		return "JSON"
	case KindEnum:
		return "ENUM"
	default:
		return "UNKNOWN"
	}
}

// SQLType is a dialect-neutral column type. Dialects render it in DDL.
type SQLType struct {
	Kind TypeKind
	// Length applies to KindString; zero means unbounded.
	Length int
	// Precision and Scale apply to KindNumeric; zero means unspecified.
	Precision int
	Scale     int
	// Values lists the members of a KindEnum.
	Values []string
	// EnumName names a KindEnum type for dialects with named enums.
	EnumName string
}

func (t SQLType) String() string {
	switch t.Kind {
	case KindString:
		if t.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", t.Length)
		}
	case KindNumeric:
		if t.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d, %d)", t.Precision, t.Scale)
		}
	case KindEnum:
		return "ENUM(" + strings.Join(t.Values, ", ") + ")"
	}
	return t.Kind.String()
}

// IsInteger reports whether values of the type are integers.
func (t SQLType) IsInteger() bool {
	return t.Kind == KindInteger || t.Kind == KindBigInteger
}

// String returns a VARCHAR type; a zero length is unbounded.
func String(length int) SQLType { return SQLType{Kind: KindString, Length: length} }

// Text returns an unbounded text type.
func Text() SQLType { return SQLType{Kind: KindText} }

// Integer returns a 32-bit integer type.
func Integer() SQLType { return SQLType{Kind: KindInteger} }

// BigInteger returns a 64-bit integer type.
func BigInteger() SQLType { return SQLType{Kind: KindBigInteger} }

// Float returns a floating point type.
func Float() SQLType { return SQLType{Kind: KindFloat} }

// Numeric returns a fixed-point type.
func Numeric(precision, scale int) SQLType {
	return SQLType{Kind: KindNumeric, Precision: precision, Scale: scale}
}

// Boolean returns a boolean type.
func Boolean() SQLType { return SQLType{Kind: KindBoolean} }

// DateTime returns a timestamp type.
func DateTime() SQLType { return SQLType{Kind: KindDateTime} }

// Date returns a calendar date type.
func Date() SQLType { return SQLType{Kind: KindDate} }

// Time returns a time-of-day type.
func Time() SQLType { return SQLType{Kind: KindTime} }

// Interval returns a duration type.
func Interval() SQLType { return SQLType{Kind: KindInterval} }

// UUID returns a UUID type.
func UUID() SQLType { return SQLType{Kind: KindUUID} }

// LargeBinary returns a binary type.
func LargeBinary() SQLType { return SQLType{Kind: KindLargeBinary} }

// JSON returns a JSON document type.
func JSON() SQLType { return SQLType{Kind: KindJSON} }

// Enum returns an enumerated string type.
func Enum(name string, values ...string) SQLType {
	return SQLType{Kind: KindEnum, EnumName: name, Values: append([]string(nil), values...)}
}
