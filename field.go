package sqlmodel

import (
	"github.com/nazmi/sqlmodel/mapping"
	"github.com/nazmi/sqlmodel/schema"
)

// Field returns a field descriptor. A conflict between options is reported
// when the model using the descriptor is declared; use NewField to see it
// immediately.
func Field(opts ...FieldOption) *FieldInfo {
	f, _ := schema.NewFieldInfo(opts...)
	return f
}

// NewField returns a field descriptor or the configuration error of
// conflicting options.
func NewField(opts ...FieldOption) (*FieldInfo, error) {
	return schema.NewFieldInfo(opts...)
}

// Validation options.

func Default(v any) FieldOption                { return schema.Default(v) }
func DefaultFactory(fn func() any) FieldOption { return schema.DefaultFactory(fn) }
func Alias(alias string) FieldOption           { return schema.Alias(alias) }
func Title(title string) FieldOption           { return schema.Title(title) }
func Description(desc string) FieldOption      { return schema.Description(desc) }
func Exclude() FieldOption                     { return schema.Exclude() }
func Include() FieldOption                     { return schema.Include() }
func Const() FieldOption                       { return schema.Const() }
func Gt(v float64) FieldOption                 { return schema.Gt(v) }
func Ge(v float64) FieldOption                 { return schema.Ge(v) }
func Lt(v float64) FieldOption                 { return schema.Lt(v) }
func Le(v float64) FieldOption                 { return schema.Le(v) }
func MultipleOf(v float64) FieldOption         { return schema.MultipleOf(v) }
func MaxDigits(n int) FieldOption              { return schema.MaxDigits(n) }
func DecimalPlaces(n int) FieldOption          { return schema.DecimalPlaces(n) }
func MinItems(n int) FieldOption               { return schema.MinItems(n) }
func MaxItems(n int) FieldOption               { return schema.MaxItems(n) }
func UniqueItems() FieldOption                 { return schema.UniqueItems() }
func MinLength(n int) FieldOption              { return schema.MinLength(n) }
func MaxLength(n int) FieldOption              { return schema.MaxLength(n) }
func AllowMutation(allow bool) FieldOption     { return schema.AllowMutation(allow) }
func Regex(pattern string) FieldOption         { return schema.Regex(pattern) }
func Discriminator(name string) FieldOption    { return schema.Discriminator(name) }
func Repr(show bool) FieldOption               { return schema.Repr(show) }
func SchemaExtra(extra map[string]any) FieldOption {
	return schema.SchemaExtra(extra)
}

// Column options. SAColumn excludes every other one of them.

func PrimaryKey(pk bool) FieldOption           { return schema.PrimaryKey(pk) }
func Nullable(nullable bool) FieldOption       { return schema.Nullable(nullable) }
func ForeignKey(target string) FieldOption     { return schema.ForeignKey(target) }
func Unique(unique bool) FieldOption           { return schema.Unique(unique) }
func Index(index bool) FieldOption             { return schema.Index(index) }
func SAType(t mapping.SQLType) FieldOption     { return schema.SAType(t) }
func SAColumn(col *mapping.Column) FieldOption { return schema.SAColumn(col) }
func SAColumnArgs(args ...any) FieldOption     { return schema.SAColumnArgs(args...) }
func SAColumnKwargs(kwargs map[string]any) FieldOption {
	return schema.SAColumnKwargs(kwargs)
}
