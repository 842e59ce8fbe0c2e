// Package validation builds the validation side of a model from its field
// declarations and checks input against it: coercion to the field types,
// constraint checks, defaults, extra-key policy and per-field validators.
package validation

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/schema"
)

// Extra is the policy for input keys that match no field.
type Extra string

const (
	ExtraIgnore Extra = "ignore"
	ExtraForbid Extra = "forbid"
	ExtraAllow  Extra = "allow"
)

// Config holds the schema-level options.
type Config struct {
	Extra              Extra
	ValidateAssignment bool
}

// ValidatorFunc checks or transforms a coerced value. values holds the
// fields validated so far, in declaration order.
type ValidatorFunc func(value any, values map[string]any) (any, error)

// Field is a validated field of a Schema.
type Field struct {
	Name         string
	Alias        string
	Type         *schema.TypeSpec
	Info         *schema.FieldInfo
	Required     bool
	EmptyDefault bool

	constValue any
	validators []ValidatorFunc
}

// Key returns the input/output key: the alias when set, else the name.
func (f *Field) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Default returns a fresh default value for the field.
func (f *Field) Default() any {
	return f.Info.GetDefault()
}

// Schema validates input for one model.
type Schema struct {
	Name   string
	Config Config

	fields      []*Field
	byName      map[string]*Field
	byKey       map[string]*Field
	passthrough map[string]bool
	resolver    Resolver
}

// BuildOption configures Build.
type BuildOption func(*Schema) error

// WithValidators attaches validators per field name.
func WithValidators(validators map[string][]ValidatorFunc) BuildOption {
	return func(s *Schema) error {
		for _, name := range slices.Sorted(maps.Keys(validators)) {
			f, ok := s.byName[name]
			if !ok {
				return errs.Configf(s.Name, name, "validators defined for a field that does not exist")
			}
			f.validators = append(f.validators, validators[name]...)
		}
		return nil
	}
}

// WithPassthrough names input keys that are not fields but must not count
// as extra, such as relationship attributes.
func WithPassthrough(names ...string) BuildOption {
	return func(s *Schema) error {
		for _, n := range names {
			s.passthrough[n] = true
		}
		return nil
	}
}

// WithResolver sets how forward model references are resolved.
func WithResolver(r Resolver) BuildOption {
	return func(s *Schema) error {
		s.resolver = r
		return nil
	}
}

// Build creates a Schema from field declarations, in order. A later
// declaration of the same name replaces the earlier one in place.
func Build(name string, decls []*schema.FieldDecl, cfg Config, opts ...BuildOption) (*Schema, error) {
	if cfg.Extra == "" {
		cfg.Extra = ExtraIgnore
	}
	switch cfg.Extra {
	case ExtraIgnore, ExtraForbid, ExtraAllow:
	default:
		return nil, errs.Configf(name, "", "unknown extra policy %q", cfg.Extra)
	}

	s := &Schema{
		Name:        name,
		Config:      cfg,
		byName:      make(map[string]*Field),
		byKey:       make(map[string]*Field),
		passthrough: make(map[string]bool),
	}
	for _, d := range decls {
		f := &Field{
			Name:         d.Name,
			Alias:        d.Info.Alias,
			Type:         d.Type,
			Info:         d.Info,
			Required:     d.Required(),
			EmptyDefault: d.EmptyDefault,
		}
		if d.Info.Const {
			f.constValue = d.Info.Default
		}
		if old, exists := s.byName[d.Name]; exists {
			delete(s.byKey, old.Key())
			s.fields[slices.Index(s.fields, old)] = f
		} else {
			s.fields = append(s.fields, f)
		}
		if other, clash := s.byKey[f.Key()]; clash && other.Name != f.Name {
			return nil, errs.Configf(name, d.Name, "alias %q clashes with field %q", f.Key(), other.Name)
		}
		s.byName[d.Name] = f
		s.byKey[f.Key()] = f
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []*Field {
	return slices.Clone(s.fields)
}

// Field looks up a field by name.
func (s *Schema) Field(name string) *Field {
	return s.byName[name]
}

// Names returns the field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// ValidateModel validates input against every field.
//
// Missing fields take their default without validation; missing required
// fields are reported. Fields that fail validation are left out of values.
// fieldsSet holds the fields present in input (plus extras that were kept).
func (s *Schema) ValidateModel(input map[string]any) (values map[string]any, fieldsSet map[string]bool, issues *Errors) {
	values = make(map[string]any, len(s.fields))
	fieldsSet = make(map[string]bool, len(input))
	issues = NewErrors(s.Name)
	used := make(map[string]bool, len(input))

	for _, f := range s.fields {
		key := f.Key()
		raw, present := input[key]
		if !present {
			switch {
			case f.Required:
				issues.Add(key, CodeRequired, "field required", nil)
			case f.EmptyDefault:
			default:
				values[f.Name] = f.Default()
			}
			continue
		}
		fieldsSet[f.Name] = true
		used[key] = true

		if v, ok := s.validateField(key, f, raw, values, issues); ok {
			values[f.Name] = v
		}
	}

	if s.Config.Extra != ExtraIgnore {
		for _, key := range slices.Sorted(maps.Keys(input)) {
			if used[key] || s.passthrough[key] {
				continue
			}
			fieldsSet[key] = true
			if s.Config.Extra == ExtraAllow {
				values[key] = input[key]
			} else {
				issues.Add(key, CodeExtraForbidden, "extra fields not permitted", nil)
			}
		}
	}
	return values, fieldsSet, issues
}

func (s *Schema) validateField(path string, f *Field, raw any, values map[string]any, issues *Errors) (any, bool) {
	before := issues.Count()
	v, ok := s.coerce(path, f.Type, raw, issues)
	if !ok {
		return nil, false
	}
	if v != nil {
		checkConstraints(path, f, v, issues)
	}
	if issues.Count() > before {
		return nil, false
	}
	for _, fn := range f.validators {
		out, err := fn(v, values)
		if err != nil {
			issues.Add(path, CodeValueError, err.Error(), nil)
			return nil, false
		}
		v = out
	}
	return v, true
}

// ValidateValue validates a single value for the named field.
func (s *Schema) ValidateValue(name string, value any, values map[string]any) (any, *Errors) {
	issues := NewErrors(s.Name)
	f := s.byName[name]
	if f == nil {
		issues.Add(name, CodeExtraForbidden, fmt.Sprintf("object has no field %q", name), nil)
		return nil, issues
	}
	v, _ := s.validateField(f.Key(), f, value, values, issues)
	return v, issues
}

// ValidateAssignment checks a write to an existing instance. Immutable
// fields are always rejected; the value itself is validated only when
// Config.ValidateAssignment is set. current holds the other field values.
func (s *Schema) ValidateAssignment(name string, value any, current map[string]any) (any, *Errors) {
	issues := NewErrors(s.Name)
	f := s.byName[name]
	if f == nil {
		if s.Config.Extra == ExtraAllow {
			return value, issues
		}
		issues.Add(name, CodeExtraForbidden, fmt.Sprintf("object has no field %q", name), nil)
		return nil, issues
	}
	if !f.Info.AllowMutation {
		issues.Add(f.Key(), CodeImmutable,
			fmt.Sprintf("%q has allow_mutation set to False and cannot be assigned", name), nil)
		return nil, issues
	}
	if !s.Config.ValidateAssignment {
		return value, issues
	}

	others := make(map[string]any, len(current))
	for k, v := range current {
		if k != name {
			others[k] = v
		}
	}
	v, ok := s.validateField(f.Key(), f, value, others, issues)
	if !ok {
		return nil, issues
	}
	return v, issues
}
