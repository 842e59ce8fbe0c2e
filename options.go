package sqlmodel

import (
	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/schema"
)

// ModelConfig is the per-class configuration. Nil fields inherit the value
// of the bases, except Table, which is never inherited.
type ModelConfig struct {
	// Table flags the class as a table. It takes precedence over the Table
	// model option.
	Table *bool
	// ValidateAssignment validates values written with Set.
	ValidateAssignment *bool
	// Extra decides what happens to input keys that match no field.
	Extra Extra
	// ReadFromAttributes enables FromORM and lets Validate accept
	// non-map objects. Defaults to true.
	ReadFromAttributes *bool
	// CopyOnValidate makes Validate return a copy of an instance of the
	// model. Defaults to true.
	CopyOnValidate *bool
	// StrictTable makes invalid supplied values fatal when constructing
	// table instances; only missing fields are tolerated.
	StrictTable *bool
}

// merge overlays the set fields of o, except Table.
func (c ModelConfig) merge(o ModelConfig) ModelConfig {
	if o.ValidateAssignment != nil {
		c.ValidateAssignment = o.ValidateAssignment
	}
	if o.Extra != "" {
		c.Extra = o.Extra
	}
	if o.ReadFromAttributes != nil {
		c.ReadFromAttributes = o.ReadFromAttributes
	}
	if o.CopyOnValidate != nil {
		c.CopyOnValidate = o.CopyOnValidate
	}
	if o.StrictTable != nil {
		c.StrictTable = o.StrictTable
	}
	return c
}

func flag(b *bool) bool { return b != nil && *b }

// declaration gathers the model options before the pipeline runs.
type declaration struct {
	attrs      []schema.Attr
	bases      []*Model
	table      *bool
	config     ModelConfig
	tableName  string
	registry   *Registry
	validators map[string][]ValidatorFunc
	err        error
}

// ModelOption configures a model declaration.
type ModelOption func(*declaration)

// Attr declares an attribute: an annotation and, optionally, a value. The
// value is a plain default, a Field descriptor or a Relationship
// descriptor. A nil annotation is inferred from the default.
func Attr(name string, typ *TypeSpec, value ...any) ModelOption {
	return func(d *declaration) {
		a := schema.Attr{Name: name, Type: typ}
		switch len(value) {
		case 0:
		case 1:
			a.Value, a.HasValue = value[0], true
		default:
			d.err = errs.Configf("", name, "attribute takes at most one value, got %d", len(value))
		}
		d.attrs = append(d.attrs, a)
	}
}

// Extends sets the base models. Fields are inherited in base order.
func Extends(bases ...*Model) ModelOption {
	return func(d *declaration) { d.bases = append(d.bases, bases...) }
}

// Table is the declaration keyword flagging the class as a table.
func Table(table bool) ModelOption {
	return func(d *declaration) { d.table = &table }
}

// WithConfig sets the class configuration.
func WithConfig(cfg ModelConfig) ModelOption {
	return func(d *declaration) {
		table := d.config.Table
		d.config = d.config.merge(cfg)
		d.config.Table = table
		if cfg.Table != nil {
			d.config.Table = cfg.Table
		}
	}
}

// TableName overrides the table name derived from the class name.
func TableName(name string) ModelOption {
	return func(d *declaration) { d.tableName = name }
}

// WithRegistry binds the class, and every class extending it, to r. The
// class itself becomes an abstract anchor and is never mapped.
func WithRegistry(r *Registry) ModelOption {
	return func(d *declaration) { d.registry = r }
}

// FieldValidator runs fn after a field is coerced and its constraints pass.
func FieldValidator(field string, fn ValidatorFunc) ModelOption {
	return func(d *declaration) {
		if d.validators == nil {
			d.validators = make(map[string][]ValidatorFunc)
		}
		d.validators[field] = append(d.validators[field], fn)
	}
}
