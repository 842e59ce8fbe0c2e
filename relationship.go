package sqlmodel

import (
	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
	"github.com/nazmi/sqlmodel/schema"
)

// Relationship returns a relationship descriptor. As with Field, option
// conflicts surface when the model is declared.
func Relationship(opts ...RelationshipOption) *RelationshipInfo {
	r, _ := schema.NewRelationshipInfo(opts...)
	return r
}

// NewRelationship returns a relationship descriptor or the configuration
// error of conflicting options.
func NewRelationship(opts ...RelationshipOption) (*RelationshipInfo, error) {
	return schema.NewRelationshipInfo(opts...)
}

// BackPopulates names the attribute on the target that mirrors this one.
func BackPopulates(name string) RelationshipOption { return schema.BackPopulates(name) }

// LinkModel makes m's table the secondary table of a many-to-many.
func LinkModel(m *Model) RelationshipOption { return schema.Link(m) }

// SARelationship binds p as the relationship, skipping resolution.
func SARelationship(p *mapping.RelationshipProperty) RelationshipOption {
	return schema.SARelationship(p)
}

// SARelationshipArgs passes positional arguments to the relationship.
func SARelationshipArgs(args ...any) RelationshipOption { return schema.SARelationshipArgs(args...) }

// SARelationshipKwargs passes keyword arguments to the relationship:
// "order_by", "cascade", "uselist", "viewonly", "lazy", "remote_side".
func SARelationshipKwargs(kwargs map[string]any) RelationshipOption {
	return schema.SARelationshipKwargs(kwargs)
}

// buildRelationship turns a relationship declaration into the property
// bound on the mapper.
func (m *Model) buildRelationship(rd *schema.RelationshipDecl) (*mapping.RelationshipProperty, error) {
	info := rd.Info
	if info.SARelationship != nil {
		return info.SARelationship, nil
	}
	if rd.Type == nil {
		return nil, errs.Configf(m.name, rd.Name, "relationship has no annotation naming its target")
	}
	target := rd.Type.Target()
	if target.BaseType != schema.TypeModel {
		return nil, errs.Configf(m.name, rd.Name, "relationship annotation %s does not name a model", rd.Type)
	}

	var argument any = target.Ref
	if target.Model != nil {
		argument = target.Model
	}

	kwargs := map[string]any{"uselist": rd.Type.IsList()}
	if info.BackPopulates != "" {
		kwargs["back_populates"] = info.BackPopulates
	}
	if info.LinkModel != nil {
		secondary := info.LinkModel.Table()
		if secondary == nil {
			return nil, errs.Configf(m.name, rd.Name, "couldn't find the secondary table for model %s", info.LinkModel.Name())
		}
		kwargs["secondary"] = secondary
	}
	for k, v := range info.SARelationshipKwargs {
		kwargs[k] = v
	}

	p, err := mapping.NewRelationship(argument, info.SARelationshipArgs, kwargs)
	if err != nil {
		if e, ok := err.(*errs.Error); ok && e.Model == "" {
			e.Model, e.Attr = m.name, rd.Name
		}
		return nil, err
	}
	return p, nil
}
