package schema

import (
	"maps"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
)

// LinkModel is a class usable as the association entity of a many-to-many
// relationship. Table returns nil for classes that are not tables.
type LinkModel interface {
	Name() string
	Table() *mapping.Table
}

// RelationshipInfo describes one relationship attribute.
type RelationshipInfo struct {
	BackPopulates        string
	LinkModel            LinkModel
	SARelationship       *mapping.RelationshipProperty
	SARelationshipArgs   []any
	SARelationshipKwargs map[string]any

	err error
}

// RelationshipOption configures a RelationshipInfo.
type RelationshipOption func(*RelationshipInfo)

// Err returns the configuration error recorded while applying options.
func (r *RelationshipInfo) Err() error { return r.err }

// NewRelationshipInfo applies opts and checks them for conflicts.
func NewRelationshipInfo(opts ...RelationshipOption) (*RelationshipInfo, error) {
	r := &RelationshipInfo{}
	for _, opt := range opts {
		opt(r)
	}
	if r.SARelationship != nil {
		if r.SARelationshipArgs != nil {
			r.err = errs.New(errs.KindConfiguration, "passing sa_relationship_args is not supported when also passing a sa_relationship")
			return r, r.err
		}
		if r.SARelationshipKwargs != nil {
			r.err = errs.New(errs.KindConfiguration, "passing sa_relationship_kwargs is not supported when also passing a sa_relationship")
			return r, r.err
		}
	}
	return r, nil
}

// BackPopulates names the attribute on the target that mirrors this one.
func BackPopulates(name string) RelationshipOption {
	return func(r *RelationshipInfo) { r.BackPopulates = name }
}

// Link sets the association class of a many-to-many relationship.
func Link(m LinkModel) RelationshipOption {
	return func(r *RelationshipInfo) { r.LinkModel = m }
}

// SARelationship supplies the relationship property verbatim.
func SARelationship(p *mapping.RelationshipProperty) RelationshipOption {
	return func(r *RelationshipInfo) { r.SARelationship = p }
}

// SARelationshipArgs passes positional relationship arguments.
func SARelationshipArgs(args ...any) RelationshipOption {
	return func(r *RelationshipInfo) {
		if args == nil {
			args = []any{}
		}
		r.SARelationshipArgs = args
	}
}

// SARelationshipKwargs passes keyword relationship arguments.
func SARelationshipKwargs(kwargs map[string]any) RelationshipOption {
	return func(r *RelationshipInfo) {
		if kwargs == nil {
			kwargs = map[string]any{}
		}
		r.SARelationshipKwargs = maps.Clone(kwargs)
	}
}
