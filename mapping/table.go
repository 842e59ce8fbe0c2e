package mapping

import (
	"github.com/nazmi/sqlmodel/internal/errs"
)

// Table is an ordered set of columns under a name.
type Table struct {
	Name string

	columns  []*Column
	byName   map[string]*Column
	metadata *MetaData
}

// NewTable creates a table and attaches the given columns in order.
func NewTable(name string, columns ...*Column) (*Table, error) {
	t := &Table{Name: name, byName: make(map[string]*Column)}
	for _, c := range columns {
		if err := t.Append(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Append attaches a column. A column belongs to at most one table.
func (t *Table) Append(c *Column) error {
	if c.Name == "" {
		return errs.Newf(errs.KindConfiguration, "column of table %q has no name", t.Name)
	}
	if c.table != nil && c.table != t {
		return errs.Newf(errs.KindConfiguration, "column %q is already assigned to table %q", c.Name, c.table.Name)
	}
	if _, exists := t.byName[c.Name]; exists {
		return errs.Newf(errs.KindConfiguration, "table %q already has a column named %q", t.Name, c.Name)
	}
	c.table = t
	t.columns = append(t.columns, c)
	t.byName[c.Name] = c
	return nil
}

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.columns...)
}

// Column looks up a column by name.
func (t *Table) Column(name string) *Column {
	return t.byName[name]
}

// PrimaryKey returns the primary key columns in declaration order.
func (t *Table) PrimaryKey() []*Column {
	var pk []*Column
	for _, c := range t.columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// ForeignKeys returns every foreign key declared on the table's columns.
func (t *Table) ForeignKeys() []*ForeignKey {
	var fks []*ForeignKey
	for _, c := range t.columns {
		fks = append(fks, c.ForeignKeys...)
	}
	return fks
}

// References returns the foreign keys of t that point at other.
func (t *Table) References(other *Table) []*ForeignKey {
	var fks []*ForeignKey
	for _, fk := range t.ForeignKeys() {
		if fk.TargetTable() == other.Name {
			fks = append(fks, fk)
		}
	}
	return fks
}

// IndexedColumns returns columns flagged with Index.
func (t *Table) IndexedColumns() []*Column {
	var cols []*Column
	for _, c := range t.columns {
		if c.Index {
			cols = append(cols, c)
		}
	}
	return cols
}

// MetaData returns the metadata the table was added to, if any.
func (t *Table) MetaData() *MetaData { return t.metadata }
