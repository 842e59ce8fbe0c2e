package sqlmodel

import (
	"context"
	"slices"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
	"github.com/nazmi/sqlmodel/schema"
	"github.com/nazmi/sqlmodel/validation"
)

// Model is a declared class. Every model has a validation schema; table
// models also own a table and a mapper.
type Model struct {
	name     string
	registry *Registry
	bases    []*Model
	decl     *schema.Declaration
	config   ModelConfig
	// declared holds only the config values set by the class or its bases.
	declared ModelConfig

	fields        []*schema.FieldDecl
	relationships []*schema.RelationshipDecl
	validators    map[string][]ValidatorFunc
	schema        *validation.Schema

	table         bool
	tableAncestor bool
	abstract      bool
	mapper        *mapping.Mapper
}

// NewModel declares a class.
//
// Fields of the bases come first, in base order, then the class's own.
// When the class is a table and no ancestor is one, its columns, table and
// relationships are built and the mapper is registered. A class extending a
// table without being flagged is a schema-only view of it.
func NewModel(name string, opts ...ModelOption) (*Model, error) {
	d := &declaration{}
	for _, opt := range opts {
		opt(d)
	}
	if d.err != nil {
		return nil, withModel(d.err, name)
	}
	if name == "" {
		return nil, errs.New(errs.KindConfiguration, "model name must not be empty")
	}

	m := &Model{name: name, bases: slices.Clone(d.bases)}
	if slices.Contains(m.bases, nil) {
		return nil, errs.Configf(name, "", "nil base model")
	}
	m.registry = d.registry
	if m.registry == nil {
		for _, b := range m.bases {
			if b.registry != nil {
				m.registry = b.registry
				break
			}
		}
	}
	if m.registry == nil {
		m.registry = DefaultRegistry()
	}
	m.abstract = d.registry != nil
	m.config = m.resolveConfig(d.config)

	decl, err := schema.Collect(name, d.attrs, d.config.Table, d.table)
	if err != nil {
		return nil, err
	}
	m.decl = decl
	m.table = decl.Table
	m.config.Table = Bool(decl.Table)

	for _, b := range m.bases {
		if b.table || b.tableAncestor {
			m.tableAncestor = true
		}
	}
	switch {
	case m.table && m.abstract:
		return nil, errs.Configf(name, "", "a class declaring a registry is an abstract anchor and cannot be a table")
	case m.table && m.tableAncestor:
		return nil, errs.Configf(name, "", "class extends a table class and cannot be a table itself")
	}

	m.inherit(decl, d.validators)
	if err := m.buildSchema(); err != nil {
		return nil, err
	}

	if m.table {
		if err := m.mapTable(d.tableName); err != nil {
			return nil, err
		}
	}
	m.registry.register(m)

	attrs := []any{"model", name, "table", m.table}
	if m.mapper != nil {
		attrs = append(attrs, "table_name", m.mapper.Table.Name)
	}
	m.registry.log().Info(context.Background(), "model declared", attrs...)
	return m, nil
}

// MustModel is NewModel for package-level declarations. It panics on error.
func MustModel(name string, opts ...ModelOption) *Model {
	m, err := NewModel(name, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func withModel(err error, model string) error {
	if e, ok := err.(*errs.Error); ok && e.Model == "" {
		cp := *e
		cp.Model = model
		return &cp
	}
	return err
}

// resolveConfig applies the values declared by bases (the first base wins),
// then own, over the defaults. Registry defaults are read when the class
// is declared.
func (m *Model) resolveConfig(own ModelConfig) ModelConfig {
	var declared ModelConfig
	for _, b := range slices.Backward(m.bases) {
		declared = declared.merge(b.declared)
	}
	m.declared = declared.merge(own)

	cfg := ModelConfig{
		ValidateAssignment: Bool(false),
		Extra:              ExtraIgnore,
		ReadFromAttributes: Bool(true),
		CopyOnValidate:     Bool(true),
		StrictTable:        Bool(m.registry.strictTable()),
	}
	return cfg.merge(m.declared)
}

// inherit merges fields, relationships and validators of the bases with
// the class's own. Relationships come only from bases that are not tables.
func (m *Model) inherit(decl *schema.Declaration, own map[string][]ValidatorFunc) {
	m.validators = make(map[string][]ValidatorFunc)
	for _, b := range m.bases {
		m.fields = append(m.fields, b.fields...)
		if !b.table {
			m.relationships = mergeRelationships(m.relationships, b.relationships)
		}
		for k, fns := range b.validators {
			m.validators[k] = append(m.validators[k], fns...)
		}
	}
	m.fields = append(m.fields, decl.Fields...)
	m.relationships = mergeRelationships(m.relationships, decl.Relationships)
	for k, fns := range own {
		m.validators[k] = append(m.validators[k], fns...)
	}
}

func mergeRelationships(into, from []*schema.RelationshipDecl) []*schema.RelationshipDecl {
	for _, r := range from {
		i := slices.IndexFunc(into, func(x *schema.RelationshipDecl) bool { return x.Name == r.Name })
		if i >= 0 {
			into[i] = r
		} else {
			into = append(into, r)
		}
	}
	return into
}

func (m *Model) buildSchema() error {
	names := make([]string, len(m.relationships))
	for i, r := range m.relationships {
		names[i] = r.Name
	}
	cfg := validation.Config{
		Extra:              m.config.Extra,
		ValidateAssignment: flag(m.config.ValidateAssignment),
	}
	s, err := validation.Build(m.name, m.fields, cfg,
		validation.WithValidators(m.validators),
		validation.WithPassthrough(names...),
		validation.WithResolver(m.registry.resolve),
	)
	if err != nil {
		return err
	}
	m.schema = s
	return nil
}

// mapTable builds the table and the mapper, binds the relationships and
// registers the mapper.
func (m *Model) mapTable(tableName string) error {
	if tableName == "" {
		tableName = m.registry.namer().TableName(m.name)
	}
	table, err := m.buildTable(tableName)
	if err != nil {
		return err
	}
	mapper, err := mapping.NewMapper(m.name, m, table, nil)
	if err != nil {
		return err
	}
	for _, rd := range m.relationships {
		p, err := m.buildRelationship(rd)
		if err != nil {
			return err
		}
		if err := mapper.AddRelationship(rd.Name, p); err != nil {
			return err
		}
	}
	if err := m.registry.mapping.Map(mapper); err != nil {
		return err
	}
	m.mapper = mapper
	return nil
}

// Name returns the class name.
func (m *Model) Name() string { return m.name }

// IsTable reports whether the class is mapped to a table.
func (m *Model) IsTable() bool { return m.mapper != nil }

// IsAbstract reports whether the class is a registry anchor.
func (m *Model) IsAbstract() bool { return m.abstract }

// Table returns the mapped table, or nil for classes that are not tables.
func (m *Model) Table() *mapping.Table {
	if m.mapper == nil {
		return nil
	}
	return m.mapper.Table
}

// Mapper returns the mapper, or nil for classes that are not tables.
func (m *Model) Mapper() *mapping.Mapper { return m.mapper }

// Registry returns the registry the class is bound to.
func (m *Model) Registry() *Registry { return m.registry }

// Bases returns the base models.
func (m *Model) Bases() []*Model { return slices.Clone(m.bases) }

// Config returns the resolved configuration.
func (m *Model) Config() ModelConfig { return m.config }

// Schema returns the validation schema.
func (m *Model) Schema() *validation.Schema { return m.schema }

// Fields returns the validated fields in declaration order.
func (m *Model) Fields() []*validation.Field { return m.schema.Fields() }

// Relationships returns the relationship names in declaration order.
func (m *Model) Relationships() []string {
	names := make([]string, len(m.relationships))
	for i, r := range m.relationships {
		names[i] = r.Name
	}
	return names
}

func (m *Model) relationship(name string) *schema.RelationshipDecl {
	for _, r := range m.relationships {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Materialize creates an empty instance for a row loaded from storage.
func (m *Model) Materialize() (*mapping.InstanceState, error) {
	inst, err := m.Construct()
	if err != nil {
		return nil, err
	}
	if inst.state == nil {
		return nil, errs.Newf(errs.KindNotMapped, "class %s is not a table", m.name)
	}
	return inst.state, nil
}

func (m *Model) String() string { return m.name }
