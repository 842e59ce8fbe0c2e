package mapping

import (
	"fmt"

	"github.com/nazmi/sqlmodel/internal/errs"
)

// Direction is the cardinality of a configured relationship.
type Direction int

const (
	DirectionUnknown Direction = iota
	OneToMany
	ManyToOne
	ManyToMany
)

func (d Direction) String() string {
	switch d {
	case OneToMany:
		return "ONETOMANY"
	case ManyToOne:
		return "MANYTOONE"
	case ManyToMany:
		return "MANYTOMANY"
	default:
		return "UNKNOWN"
	}
}

// MapperProvider is anything that can hand out its Mapper, typically a
// declared model class.
type MapperProvider interface {
	Mapper() *Mapper
}

// ColumnPair links a referenced column to the column holding the foreign key.
type ColumnPair struct {
	Referenced  *Column
	Referencing *Column
}

// RelationshipProperty binds an attribute to a related mapper.
type RelationshipProperty struct {
	// Key is the attribute name, set when the property is added to a mapper.
	Key string
	// Argument is the target: a class name (string), *Mapper or MapperProvider.
	Argument      any
	Secondary     *Table
	BackPopulates string
	// Uselist overrides the direction-derived collection flag.
	Uselist    *bool
	OrderBy    string
	Cascade    string
	Lazy       string
	Viewonly   bool
	RemoteSide string
	// Args holds positional arguments kept for the caller; they carry no
	// meaning for the mapping itself.
	Args []any

	Parent    *Mapper
	Target    *Mapper
	Back      *RelationshipProperty
	Direction Direction
	// Synchronize pairs the parent side, SecondarySynchronize the target side
	// of a many-to-many.
	Synchronize          []ColumnPair
	SecondarySynchronize []ColumnPair

	resolved bool
}

var relationshipKwargs = map[string]bool{
	"secondary": true, "back_populates": true, "uselist": true, "order_by": true,
	"cascade": true, "lazy": true, "viewonly": true, "remote_side": true,
}

// NewRelationship builds a relationship property from a target and
// keyword options.
func NewRelationship(argument any, args []any, kwargs map[string]any) (*RelationshipProperty, error) {
	p := &RelationshipProperty{Argument: argument, Args: append([]any(nil), args...), Cascade: "save-update, merge", Lazy: "select"}

	for key, value := range kwargs {
		if !relationshipKwargs[key] {
			return nil, errs.Newf(errs.KindConfiguration, "unexpected relationship keyword argument %q", key)
		}
		ok := true
		switch key {
		case "secondary":
			p.Secondary, ok = value.(*Table)
		case "back_populates":
			p.BackPopulates, ok = value.(string)
		case "uselist":
			var b bool
			b, ok = value.(bool)
			p.Uselist = &b
		case "order_by":
			p.OrderBy, ok = value.(string)
		case "cascade":
			p.Cascade, ok = value.(string)
		case "lazy":
			p.Lazy, ok = value.(string)
		case "viewonly":
			p.Viewonly, ok = value.(bool)
		case "remote_side":
			p.RemoteSide, ok = value.(string)
		}
		if !ok {
			return nil, errs.Newf(errs.KindConfiguration, "relationship keyword %q has unexpected type %T", key, value)
		}
	}
	return p, nil
}

// IsCollection reports whether the attribute holds a list of instances.
func (p *RelationshipProperty) IsCollection() bool {
	if p.Uselist != nil {
		return *p.Uselist
	}
	return p.Direction != ManyToOne
}

// TargetName returns the target class name, resolved or not.
func (p *RelationshipProperty) TargetName() string {
	switch a := p.Argument.(type) {
	case string:
		return a
	case *Mapper:
		return a.ClassName
	case MapperProvider:
		if m := a.Mapper(); m != nil {
			return m.ClassName
		}
	}
	if p.Target != nil {
		return p.Target.ClassName
	}
	return fmt.Sprintf("%v", p.Argument)
}

func (p *RelationshipProperty) String() string {
	if p.Parent == nil {
		return p.Key
	}
	return p.Parent.ClassName + "." + p.Key
}

func (p *RelationshipProperty) configError(format string, args ...any) error {
	model := ""
	if p.Parent != nil {
		model = p.Parent.ClassName
	}
	return errs.Configf(model, p.Key, format, args...)
}

// resolveTarget finds the target mapper through the registry.
func (p *RelationshipProperty) resolveTarget(r *Registry) error {
	var target *Mapper
	switch a := p.Argument.(type) {
	case *Mapper:
		target = a
	case MapperProvider:
		target = a.Mapper()
	case string:
		target = r.Mapper(a)
	default:
		return p.configError("relationship target of type %T is not supported", p.Argument)
	}
	if target == nil {
		return p.configError("relationship refers to %q, which is not a mapped class", p.TargetName())
	}
	p.Target = target
	return nil
}

// resolveJoin derives the direction and the synchronized column pairs.
func (p *RelationshipProperty) resolveJoin() error {
	parent := p.Parent.Table
	target := p.Target.Table

	if p.Secondary != nil {
		local := pairsTo(p.Secondary, parent)
		remote := pairsTo(p.Secondary, target)
		if parent == target {
			if len(local) < 2 {
				return p.configError("could not determine join condition through secondary table %q", p.Secondary.Name)
			}
			// self-referential: first foreign key is the parent side
			local, remote = local[:1], local[1:2]
		}
		if len(local) == 0 || len(remote) == 0 {
			return p.configError("could not determine join condition between %q and %q through secondary table %q",
				parent.Name, target.Name, p.Secondary.Name)
		}
		p.Direction = ManyToMany
		p.Synchronize = local
		p.SecondarySynchronize = remote
		return nil
	}

	if parent == target {
		pairs := pairsTo(parent, parent)
		if len(pairs) == 0 {
			return p.configError("could not determine join condition on self-referential table %q", parent.Name)
		}
		// remote_side names the referenced column on the "one" side
		if p.RemoteSide != "" && pairs[0].Referenced.Name == p.RemoteSide {
			p.Direction = ManyToOne
		} else {
			p.Direction = OneToMany
		}
		p.Synchronize = pairs
		return nil
	}

	local := pairsTo(parent, target)
	remote := pairsTo(target, parent)
	switch {
	case len(local) > 0 && len(remote) > 0:
		return p.configError("ambiguous join condition: tables %q and %q reference each other", parent.Name, target.Name)
	case len(local) > 0:
		p.Direction = ManyToOne
		p.Synchronize = local
	case len(remote) > 0:
		p.Direction = OneToMany
		p.Synchronize = remote
	default:
		return p.configError("could not determine join condition between parent table %q and child table %q: no foreign keys link them",
			parent.Name, target.Name)
	}
	return nil
}

// pairsTo returns the column pairs of foreign keys on from referencing to.
func pairsTo(from, to *Table) []ColumnPair {
	var pairs []ColumnPair
	for _, fk := range from.References(to) {
		col := to.Column(fk.TargetColumn())
		if col == nil {
			continue
		}
		pairs = append(pairs, ColumnPair{Referenced: col, Referencing: fk.Parent()})
	}
	return pairs
}

// resolveBack links the back_populates counterpart.
func (p *RelationshipProperty) resolveBack() error {
	if p.BackPopulates == "" {
		return nil
	}
	back := p.Target.Relationship(p.BackPopulates)
	if back == nil {
		return p.configError("back_populates refers to %s.%s, which is not a relationship", p.Target.ClassName, p.BackPopulates)
	}
	if back.BackPopulates != "" && back.BackPopulates != p.Key {
		return p.configError("back_populates %s.%s points back at %q instead of %q",
			p.Target.ClassName, back.Key, back.BackPopulates, p.Key)
	}
	if back.Target != nil && back.Target != p.Parent {
		return p.configError("back_populates %s.%s targets %s, not %s",
			p.Target.ClassName, back.Key, back.Target.ClassName, p.Parent.ClassName)
	}
	p.Back = back
	return nil
}
