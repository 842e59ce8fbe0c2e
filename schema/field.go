package schema

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/mitchellh/copystructure"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
)

// FieldInfo describes one declared field: validation constraints plus the
// column options used when the class is a table. It is built once at
// declaration time and never mutated afterwards.
type FieldInfo struct {
	Default        any
	DefaultFactory func() any
	Alias          string
	Title          string
	Description    string
	// Exclude drops the field from dumps; Include forces it in even when an
	// explicit include set is given.
	Exclude bool
	Include bool
	// Const requires the value to equal Default.
	Const bool

	Gt, Ge, Lt, Le *float64
	MultipleOf     *float64
	MaxDigits      *int
	DecimalPlaces  *int
	MinItems       *int
	MaxItems       *int
	UniqueItems    bool
	MinLength      *int
	MaxLength      *int
	AllowMutation  bool
	Regex          string
	Discriminator  string
	Repr           bool
	SchemaExtra    map[string]any

	PrimaryKey     bool
	Nullable       bool
	ForeignKey     string
	Unique         bool
	Index          bool
	SAType         mapping.SQLType
	SAColumn       *mapping.Column
	SAColumnArgs   []any
	SAColumnKwargs map[string]any

	set     map[string]bool
	pattern *regexp.Regexp
	err     error
}

// FieldOption configures a FieldInfo.
type FieldOption func(*FieldInfo)

func (f *FieldInfo) mark(name string) { f.set[name] = true }

// IsSet reports whether an option was passed, by its snake_case name
// ("default", "primary_key", "sa_column", ...).
func (f *FieldInfo) IsSet(name string) bool { return f.set[name] }

// HasDefault reports whether a default value or factory was given.
func (f *FieldInfo) HasDefault() bool {
	return f.set["default"] || f.set["default_factory"]
}

// GetDefault returns a fresh default value. Plain defaults are deep-copied so
// instances never share a mutable default.
func (f *FieldInfo) GetDefault() any {
	if f.DefaultFactory != nil {
		return f.DefaultFactory()
	}
	if f.Default == nil {
		return nil
	}
	cp, err := copystructure.Copy(f.Default)
	if err != nil {
		return f.Default
	}
	return cp
}

// Pattern returns the compiled Regex, or nil.
func (f *FieldInfo) Pattern() *regexp.Regexp { return f.pattern }

// Err returns the configuration error recorded while applying options.
func (f *FieldInfo) Err() error { return f.err }

// SetOptions returns the names of all options that were passed, sorted.
func (f *FieldInfo) SetOptions() []string {
	return slices.Sorted(maps.Keys(f.set))
}

// saColumnExclusive lists, in check order, options that conflict with an
// explicit column.
var saColumnExclusive = []string{
	"sa_column_args", "sa_column_kwargs", "primary_key", "nullable",
	"foreign_key", "unique", "index", "sa_type",
}

// NewFieldInfo applies opts and checks them for conflicts.
func NewFieldInfo(opts ...FieldOption) (*FieldInfo, error) {
	f := &FieldInfo{
		AllowMutation: true,
		Repr:          true,
		set:           make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
		if f.err != nil {
			return f, f.err
		}
	}

	if f.set["sa_column"] {
		for _, name := range saColumnExclusive {
			if f.set[name] {
				f.err = errs.Newf(errs.KindConfiguration, "passing %s is not supported when also passing a sa_column", name)
				return f, f.err
			}
		}
	}
	if f.set["default"] && f.set["default_factory"] {
		f.err = errs.New(errs.KindConfiguration, "cannot specify both default and default_factory")
		return f, f.err
	}
	if f.Regex != "" {
		re, err := regexp.Compile(f.Regex)
		if err != nil {
			f.err = errs.Wrap(errs.KindConfiguration, fmt.Sprintf("invalid regex %q", f.Regex), err)
			return f, f.err
		}
		f.pattern = re
	}
	if f.Const && !f.set["default"] {
		f.err = errs.New(errs.KindConfiguration, "const requires a default value")
		return f, f.err
	}
	return f, nil
}

// Default sets the default value.
func Default(v any) FieldOption {
	return func(f *FieldInfo) { f.Default = v; f.mark("default") }
}

// DefaultFactory sets a function producing the default value.
func DefaultFactory(fn func() any) FieldOption {
	return func(f *FieldInfo) { f.DefaultFactory = fn; f.mark("default_factory") }
}

// Alias sets the external name used when reading input and dumping by alias.
func Alias(alias string) FieldOption {
	return func(f *FieldInfo) { f.Alias = alias; f.mark("alias") }
}

// Title sets the JSON schema title.
func Title(title string) FieldOption {
	return func(f *FieldInfo) { f.Title = title; f.mark("title") }
}

// Description sets the JSON schema description.
func Description(desc string) FieldOption {
	return func(f *FieldInfo) { f.Description = desc; f.mark("description") }
}

// Exclude drops the field from every dump.
func Exclude() FieldOption {
	return func(f *FieldInfo) { f.Exclude = true; f.mark("exclude") }
}

// Include keeps the field in dumps that name an explicit include set.
func Include() FieldOption {
	return func(f *FieldInfo) { f.Include = true; f.mark("include") }
}

// Const requires values to equal the default.
func Const() FieldOption {
	return func(f *FieldInfo) { f.Const = true; f.mark("const") }
}

// Gt requires values greater than v.
func Gt(v float64) FieldOption { return func(f *FieldInfo) { f.Gt = &v; f.mark("gt") } }

// Ge requires values greater than or equal to v.
func Ge(v float64) FieldOption { return func(f *FieldInfo) { f.Ge = &v; f.mark("ge") } }

// Lt requires values less than v.
func Lt(v float64) FieldOption { return func(f *FieldInfo) { f.Lt = &v; f.mark("lt") } }

// Le requires values less than or equal to v.
func Le(v float64) FieldOption { return func(f *FieldInfo) { f.Le = &v; f.mark("le") } }

// MultipleOf requires values to be a multiple of v.
func MultipleOf(v float64) FieldOption {
	return func(f *FieldInfo) { f.MultipleOf = &v; f.mark("multiple_of") }
}

// MaxDigits bounds the total digits of a decimal.
func MaxDigits(n int) FieldOption {
	return func(f *FieldInfo) { f.MaxDigits = &n; f.mark("max_digits") }
}

// DecimalPlaces bounds the fractional digits of a decimal.
func DecimalPlaces(n int) FieldOption {
	return func(f *FieldInfo) { f.DecimalPlaces = &n; f.mark("decimal_places") }
}

// MinItems bounds list length from below.
func MinItems(n int) FieldOption {
	return func(f *FieldInfo) { f.MinItems = &n; f.mark("min_items") }
}

// MaxItems bounds list length from above.
func MaxItems(n int) FieldOption {
	return func(f *FieldInfo) { f.MaxItems = &n; f.mark("max_items") }
}

// UniqueItems rejects lists with duplicate members.
func UniqueItems() FieldOption {
	return func(f *FieldInfo) { f.UniqueItems = true; f.mark("unique_items") }
}

// MinLength bounds string length (in characters) from below.
func MinLength(n int) FieldOption {
	return func(f *FieldInfo) { f.MinLength = &n; f.mark("min_length") }
}

// MaxLength bounds string length from above. It also sizes the column.
func MaxLength(n int) FieldOption {
	return func(f *FieldInfo) { f.MaxLength = &n; f.mark("max_length") }
}

// AllowMutation set to false makes the field read-only after construction.
func AllowMutation(allow bool) FieldOption {
	return func(f *FieldInfo) { f.AllowMutation = allow; f.mark("allow_mutation") }
}

// Regex requires string values to match pattern.
func Regex(pattern string) FieldOption {
	return func(f *FieldInfo) { f.Regex = pattern; f.mark("regex") }
}

// Discriminator names the tag field of a union of models.
func Discriminator(name string) FieldOption {
	return func(f *FieldInfo) { f.Discriminator = name; f.mark("discriminator") }
}

// Repr set to false hides the field from String output.
func Repr(show bool) FieldOption {
	return func(f *FieldInfo) { f.Repr = show; f.mark("repr") }
}

// SchemaExtra adds keys to the field's JSON schema.
func SchemaExtra(extra map[string]any) FieldOption {
	return func(f *FieldInfo) { f.SchemaExtra = maps.Clone(extra); f.mark("schema_extra") }
}

// PrimaryKey marks the column as (part of) the primary key.
func PrimaryKey(pk bool) FieldOption {
	return func(f *FieldInfo) { f.PrimaryKey = pk; f.mark("primary_key") }
}

// Nullable overrides the nullability derived from the annotation.
func Nullable(nullable bool) FieldOption {
	return func(f *FieldInfo) { f.Nullable = nullable; f.mark("nullable") }
}

// ForeignKey points the column at "table.column".
func ForeignKey(target string) FieldOption {
	return func(f *FieldInfo) { f.ForeignKey = target; f.mark("foreign_key") }
}

// Unique adds a unique constraint to the column.
func Unique(unique bool) FieldOption {
	return func(f *FieldInfo) { f.Unique = unique; f.mark("unique") }
}

// Index creates an index on the column.
func Index(index bool) FieldOption {
	return func(f *FieldInfo) { f.Index = index; f.mark("index") }
}

// SAType overrides the SQL type inferred from the annotation.
func SAType(t mapping.SQLType) FieldOption {
	return func(f *FieldInfo) { f.SAType = t; f.mark("sa_type") }
}

// SAColumn supplies the column verbatim.
func SAColumn(col *mapping.Column) FieldOption {
	return func(f *FieldInfo) {
		if col == nil {
			f.err = errs.New(errs.KindConfiguration, "sa_column must not be nil")
			return
		}
		f.SAColumn = col
		f.mark("sa_column")
	}
}

// SAColumnArgs appends positional column arguments.
func SAColumnArgs(args ...any) FieldOption {
	return func(f *FieldInfo) { f.SAColumnArgs = args; f.mark("sa_column_args") }
}

// SAColumnKwargs merges keyword column arguments.
func SAColumnKwargs(kwargs map[string]any) FieldOption {
	return func(f *FieldInfo) { f.SAColumnKwargs = maps.Clone(kwargs); f.mark("sa_column_kwargs") }
}
