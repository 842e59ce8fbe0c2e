package sqlmodel

import (
	"fmt"
	"maps"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
	"github.com/nazmi/sqlmodel/validation"
)

// Instance is an object of a declared class. Its attribute map is shared
// with the persistence state, so a value written through Set is what a
// session flushes.
type Instance struct {
	model     *Model
	dict      map[string]any
	fieldsSet map[string]bool
	internal  map[string]any
	state     *mapping.InstanceState
	issues    *validation.Errors
}

// Construct creates an instance without validation. Table classes get
// their persistence state here.
func (m *Model) Construct() (*Instance, error) {
	inst := &Instance{
		model:     m,
		dict:      make(map[string]any),
		fieldsSet: make(map[string]bool),
		internal:  make(map[string]any),
	}
	if m.mapper != nil {
		st, err := m.mapper.NewState(inst, inst.dict)
		if err != nil {
			return nil, err
		}
		inst.state = st
	}
	return inst, nil
}

// Model returns the class of the instance.
func (i *Instance) Model() *Model { return i.model }

// State returns the persistence state, or nil for classes that are not tables.
func (i *Instance) State() *mapping.InstanceState { return i.state }

// ValidationErrors returns the issues swallowed when a table instance was
// constructed from invalid input.
func (i *Instance) ValidationErrors() *ValidationErrors { return i.issues }

// FieldsSet returns the names of the fields explicitly assigned.
func (i *Instance) FieldsSet() []string {
	names := make([]string, 0, len(i.fieldsSet))
	for _, n := range i.model.schema.Names() {
		if i.fieldsSet[n] {
			names = append(names, n)
		}
	}
	for n := range i.fieldsSet {
		if i.model.schema.Field(n) == nil {
			names = append(names, n)
		}
	}
	return names
}

// AttributeLoaded records a value arriving from storage as set.
func (i *Instance) AttributeLoaded(key string) {
	i.fieldsSet[key] = true
}

// Set writes an attribute.
//
// Keys starting with "_sa_" are bookkeeping and are stored as-is. For an
// instrumented attribute the persistence write happens first, then the
// validated value replaces it. Relationships are never validated. A value
// rejected by assignment validation is rolled back on both sides.
func (i *Instance) Set(name string, value any) error {
	return i.set(name, value, false)
}

func (i *Instance) set(name string, value any, validated bool) error {
	if strings.HasPrefix(name, internalPrefix) {
		i.internal[name] = value
		return nil
	}

	m := i.model
	rel := m.relationship(name) != nil
	if rel && i.state == nil {
		return errs.Configf(m.name, name, "relationships are only available on table classes")
	}
	if !rel && m.schema.Field(name) == nil && m.config.Extra != ExtraAllow {
		return errs.UnknownAttribute(m.name, name)
	}

	var prev any
	var had, column bool
	if i.state != nil && i.state.Mapper().IsInstrumented(name) {
		if rel {
			v, err := relationshipValue(name, value)
			if err != nil {
				return err
			}
			return i.state.SetRelationship(name, v)
		}
		prev, had = i.state.Value(name)
		if err := i.state.SetAttribute(name, value); err != nil {
			return err
		}
		column = true
	} else {
		prev, had = i.dict[name]
	}

	if !validated {
		v, issues := m.schema.ValidateAssignment(name, value, i.dict)
		if issues.HasErrors() {
			if column {
				i.state.Restore(name, prev, had)
			}
			return issues
		}
		if column {
			i.state.Coerced(name, v)
		}
		value = v
	}
	i.dict[name] = value
	i.fieldsSet[name] = true
	return nil
}

func relationshipValue(name string, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *Instance:
		if v == nil {
			return nil, nil
		}
		if v.state == nil {
			return nil, errs.Configf(v.model.name, name, "%s is not a table class", v.model.name)
		}
		return v.state, nil
	case []*Instance:
		states := make([]*mapping.InstanceState, 0, len(v))
		for _, inst := range v {
			if inst == nil || inst.state == nil {
				return nil, errs.Configf("", name, "relationship collections hold table instances only")
			}
			states = append(states, inst.state)
		}
		return states, nil
	}
	return nil, &errs.Error{Kind: errs.KindValidation, Attr: name,
		Message: fmt.Sprintf("unsupported relationship value of type %T", value)}
}

// Get reads an attribute. Relationships return *Instance, or []*Instance
// for collections. Unset fields of a table instance read as nil; unset
// fields of other instances read as their default.
func (i *Instance) Get(name string) (any, error) {
	if strings.HasPrefix(name, internalPrefix) {
		return i.internal[name], nil
	}
	m := i.model
	if m.relationship(name) != nil {
		if i.state == nil {
			return nil, errs.Configf(m.name, name, "relationships are only available on table classes")
		}
		return i.related(name), nil
	}
	if v, ok := i.dict[name]; ok {
		return v, nil
	}
	if f := m.schema.Field(name); f != nil {
		if i.state != nil {
			return nil, nil
		}
		return f.Default(), nil
	}
	return nil, errs.UnknownAttribute(m.name, name)
}

// MustGet is Get for attributes known to exist.
func (i *Instance) MustGet(name string) any {
	v, err := i.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

func (i *Instance) related(name string) any {
	p := i.state.Mapper().Relationship(name)
	items := instances(i.state.Related(name))
	if p != nil && p.IsCollection() {
		return items
	}
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func instances(states []*mapping.InstanceState) []*Instance {
	out := make([]*Instance, 0, len(states))
	for _, st := range states {
		if inst, ok := st.Obj().(*Instance); ok {
			out = append(out, inst)
		}
	}
	return out
}

// Related returns the members of a relationship.
func (i *Instance) Related(name string) ([]*Instance, error) {
	if i.state == nil || i.state.Mapper().Relationship(name) == nil {
		return nil, errs.UnknownAttribute(i.model.name, name)
	}
	return instances(i.state.Related(name)), nil
}

// Append adds other to a relationship, mirroring the back_populates side.
func (i *Instance) Append(name string, other *Instance) error {
	if i.state == nil || other == nil || other.state == nil {
		return errs.Configf(i.model.name, name, "relationships are only available on table classes")
	}
	return i.state.Append(name, other.state)
}

// Remove takes other out of a relationship, mirroring the back_populates side.
func (i *Instance) Remove(name string, other *Instance) error {
	if i.state == nil || other == nil || other.state == nil {
		return errs.Configf(i.model.name, name, "relationships are only available on table classes")
	}
	return i.state.Remove(name, other.state)
}

// Copy returns a shallow copy with update applied through Set. A table
// instance copies into a new transient instance.
func (i *Instance) Copy(update map[string]any) (*Instance, error) {
	cp, err := i.model.Construct()
	if err != nil {
		return nil, err
	}
	for _, f := range i.model.schema.Fields() {
		v, ok := i.dict[f.Name]
		if !ok {
			continue
		}
		if err := cp.set(f.Name, v, true); err != nil {
			return nil, err
		}
	}
	for k, v := range i.dict {
		if i.model.schema.Field(k) == nil {
			cp.dict[k] = v
		}
	}
	maps.Copy(cp.fieldsSet, i.fieldsSet)
	maps.Copy(cp.internal, i.internal)
	for k, v := range update {
		if err := cp.Set(k, v); err != nil {
			return nil, err
		}
	}
	return cp, nil
}

// Decode copies the field values into dst, a pointer to a struct or map,
// matching struct fields by their json tag.
func (i *Instance) Decode(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return err
	}
	return dec.Decode(i.Dump(DumpOptions{}))
}

func (i *Instance) String() string {
	var b strings.Builder
	b.WriteString(i.model.name)
	b.WriteByte('(')
	n := 0
	for _, f := range i.model.schema.Fields() {
		if !f.Info.Repr {
			continue
		}
		v, ok := i.dict[f.Name]
		if !ok {
			continue
		}
		if n > 0 {
			b.WriteString(", ")
		}
		n++
		switch v := v.(type) {
		case string:
			fmt.Fprintf(&b, "%s=%q", f.Name, v)
		case nil:
			fmt.Fprintf(&b, "%s=None", f.Name)
		default:
			fmt.Fprintf(&b, "%s=%v", f.Name, v)
		}
	}
	b.WriteByte(')')
	return b.String()
}
