package schema

import (
	"github.com/nazmi/sqlmodel/internal/errs"
)

// Attr is one entry of a class body: an annotation and optionally a value.
// The value may be a plain default, a *FieldInfo or a *RelationshipInfo.
type Attr struct {
	Name     string
	Type     *TypeSpec
	Value    any
	HasValue bool
}

// FieldDecl is a plain (non-relationship) field of a declaration.
type FieldDecl struct {
	Name string
	Type *TypeSpec
	Info *FieldInfo
	// EmptyDefault is set on table classes for annotations declared without
	// any value, so they are not required at construction.
	EmptyDefault bool
}

// Required reports whether input must supply the field. Optional
// annotations default to nil.
func (f *FieldDecl) Required() bool {
	return !f.EmptyDefault && !f.Info.HasDefault() && !f.Type.Nullable
}

// RelationshipDecl is a relationship attribute with its target annotation.
type RelationshipDecl struct {
	Name string
	// Type is the annotation naming the target; nil when none was declared.
	Type *TypeSpec
	Info *RelationshipInfo
}

// Declaration is the result of the collection pass over a class body.
type Declaration struct {
	Name          string
	Fields        []*FieldDecl
	Relationships []*RelationshipDecl
	Table         bool
}

// Field looks up a declared field by name.
func (d *Declaration) Field(name string) *FieldDecl {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Relationship looks up a declared relationship by name.
func (d *Declaration) Relationship(name string) *RelationshipDecl {
	for _, r := range d.Relationships {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Collect partitions a class body into fields and relationships and decides
// whether the class is a table: the per-class config flag wins over the
// constructor keyword, and both default to false.
func Collect(name string, attrs []Attr, configTable, keywordTable *bool) (*Declaration, error) {
	d := &Declaration{Name: name}
	switch {
	case configTable != nil:
		d.Table = *configTable
	case keywordTable != nil:
		d.Table = *keywordTable
	}

	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a.Name == "" {
			return nil, errs.Configf(name, "", "attribute with an empty name")
		}
		if seen[a.Name] {
			return nil, errs.Configf(name, a.Name, "attribute is declared twice")
		}
		seen[a.Name] = true

		if rel, ok := a.Value.(*RelationshipInfo); ok {
			if rel.Err() != nil {
				return nil, withSubject(rel.Err(), name, a.Name)
			}
			d.Relationships = append(d.Relationships, &RelationshipDecl{Name: a.Name, Type: a.Type, Info: rel})
			continue
		}

		info, err := fieldInfoFor(a)
		if err != nil {
			return nil, withSubject(err, name, a.Name)
		}
		typ := a.Type
		if typ == nil {
			typ = InferType(info.Default)
		}
		d.Fields = append(d.Fields, &FieldDecl{Name: a.Name, Type: typ, Info: info})
	}

	if d.Table {
		d.SetEmptyDefaults(attrs)
	}
	return d, nil
}

func fieldInfoFor(a Attr) (*FieldInfo, error) {
	switch v := a.Value.(type) {
	case *FieldInfo:
		if v.Err() != nil {
			return nil, v.Err()
		}
		return v, nil
	default:
		if !a.HasValue {
			return NewFieldInfo()
		}
		return NewFieldInfo(Default(v))
	}
}

// SetEmptyDefaults flags fields declared with an annotation only.
func (d *Declaration) SetEmptyDefaults(attrs []Attr) {
	bare := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if !a.HasValue {
			bare[a.Name] = true
		}
	}
	for _, f := range d.Fields {
		if bare[f.Name] {
			f.EmptyDefault = true
		}
	}
}

func withSubject(err error, model, attr string) error {
	if e, ok := err.(*errs.Error); ok && e.Model == "" {
		cp := *e
		cp.Model, cp.Attr = model, attr
		return &cp
	}
	return err
}
