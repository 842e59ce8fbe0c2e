package mapping

import (
	"github.com/nazmi/sqlmodel/internal/errs"
)

// ColumnProperty binds an attribute key to a table column.
type ColumnProperty struct {
	Key    string
	Column *Column
}

// Mapper binds a class to a table: column attributes, relationship
// attributes and the attribute event listeners of the class.
type Mapper struct {
	ClassName string
	// Class is the declaring class value, handed back by InstanceState.Mapper().Class.
	Class any
	Table *Table

	columns       []*ColumnProperty
	columnsByKey  map[string]*ColumnProperty
	attrByColumn  map[*Column]string
	relationships []*RelationshipProperty
	relsByKey     map[string]*RelationshipProperty
	listeners     *listeners
	registry      *Registry
	configured    bool
}

// NewMapper creates an unregistered mapper for class over table. Every table
// column is mapped under its own name unless a property maps it otherwise.
func NewMapper(className string, class any, table *Table, columns []*ColumnProperty) (*Mapper, error) {
	m := &Mapper{
		ClassName:    className,
		Class:        class,
		Table:        table,
		columnsByKey: make(map[string]*ColumnProperty),
		attrByColumn: make(map[*Column]string),
		relsByKey:    make(map[string]*RelationshipProperty),
		listeners:    newListeners(),
	}
	for _, cp := range columns {
		if cp.Column.Table() != table {
			return nil, errs.Configf(className, cp.Key, "column %q does not belong to table %q", cp.Column.Name, table.Name)
		}
		if err := m.addColumn(cp); err != nil {
			return nil, err
		}
	}
	for _, col := range table.Columns() {
		if _, mapped := m.attrByColumn[col]; !mapped {
			if err := m.addColumn(&ColumnProperty{Key: col.Name, Column: col}); err != nil {
				return nil, err
			}
		}
	}
	if len(table.PrimaryKey()) == 0 {
		return nil, errs.Configf(className, "", "mapper could not assemble any primary key columns for mapped table %q", table.Name)
	}
	return m, nil
}

func (m *Mapper) addColumn(cp *ColumnProperty) error {
	if _, exists := m.columnsByKey[cp.Key]; exists {
		return errs.Configf(m.ClassName, cp.Key, "attribute is mapped twice")
	}
	m.columns = append(m.columns, cp)
	m.columnsByKey[cp.Key] = cp
	m.attrByColumn[cp.Column] = cp.Key
	return nil
}

// AddRelationship attaches a relationship under key.
func (m *Mapper) AddRelationship(key string, p *RelationshipProperty) error {
	if _, exists := m.columnsByKey[key]; exists {
		return errs.Configf(m.ClassName, key, "relationship conflicts with a column attribute")
	}
	if _, exists := m.relsByKey[key]; exists {
		return errs.Configf(m.ClassName, key, "relationship is declared twice")
	}
	p.Key = key
	p.Parent = m
	m.relationships = append(m.relationships, p)
	m.relsByKey[key] = p
	m.configured = false
	if m.registry != nil {
		m.registry.markUnconfigured()
	}
	return nil
}

// ColumnProperties returns the column attributes in table order.
func (m *Mapper) ColumnProperties() []*ColumnProperty {
	return append([]*ColumnProperty(nil), m.columns...)
}

// ColumnProperty looks up a column attribute by key.
func (m *Mapper) ColumnProperty(key string) *ColumnProperty {
	return m.columnsByKey[key]
}

// AttrFor returns the attribute key mapping col, or "".
func (m *Mapper) AttrFor(col *Column) string {
	return m.attrByColumn[col]
}

// Relationships returns the relationship attributes in declaration order.
func (m *Mapper) Relationships() []*RelationshipProperty {
	return append([]*RelationshipProperty(nil), m.relationships...)
}

// Relationship looks up a relationship attribute by key.
func (m *Mapper) Relationship(key string) *RelationshipProperty {
	return m.relsByKey[key]
}

// IsInstrumented reports whether key is a mapped attribute of either kind.
func (m *Mapper) IsInstrumented(key string) bool {
	if _, ok := m.columnsByKey[key]; ok {
		return true
	}
	_, ok := m.relsByKey[key]
	return ok
}

// PrimaryKeyAttrs returns the attribute keys of the primary key columns.
func (m *Mapper) PrimaryKeyAttrs() []string {
	var keys []string
	for _, col := range m.Table.PrimaryKey() {
		keys = append(keys, m.attrByColumn[col])
	}
	return keys
}

// Registry returns the registry the mapper is registered with.
func (m *Mapper) Registry() *Registry { return m.registry }

// Listen registers fn for events of type t on attribute key; an empty key
// listens to every attribute.
func (m *Mapper) Listen(t EventType, key string, fn Listener) {
	m.listeners.register(t, key, fn)
}

// HasListeners reports whether any listener is registered for t.
func (m *Mapper) HasListeners(t EventType) bool {
	return m.listeners.has(t)
}

// Configured reports whether relationships have been resolved.
func (m *Mapper) Configured() bool { return m.configured }

// NewState creates the persistence state of a fresh instance. dict is shared
// with the caller and receives every attribute write. Relationships are
// configured first if needed.
func (m *Mapper) NewState(obj any, dict map[string]any) (*InstanceState, error) {
	if !m.configured {
		if m.registry == nil {
			return nil, errs.New(errs.KindNotMapped, "class "+m.ClassName+" is not registered with a registry")
		}
		if err := m.registry.Configure(); err != nil {
			return nil, err
		}
	}
	return newInstanceState(m, obj, dict), nil
}

func (m *Mapper) configure() error {
	if m.configured {
		return nil
	}
	for _, p := range m.relationships {
		if p.resolved {
			continue
		}
		if err := p.resolveJoin(); err != nil {
			return err
		}
	}
	for _, p := range m.relationships {
		if p.resolved {
			continue
		}
		if err := p.resolveBack(); err != nil {
			return err
		}
		p.resolved = true
	}
	m.configured = true
	return nil
}
