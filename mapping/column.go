package mapping

import (
	"fmt"
	"strings"

	"github.com/nazmi/sqlmodel/internal/errs"
)

// ForeignKey points a column at "table.column".
type ForeignKey struct {
	Target   string
	OnDelete string
	OnUpdate string

	parent *Column
}

// NewForeignKey creates a foreign key argument for NewColumn.
func NewForeignKey(target string) *ForeignKey {
	return &ForeignKey{Target: target}
}

// TargetTable returns the table part of Target.
func (fk *ForeignKey) TargetTable() string {
	table, _, _ := strings.Cut(fk.Target, ".")
	return table
}

// TargetColumn returns the column part of Target.
func (fk *ForeignKey) TargetColumn() string {
	_, column, _ := strings.Cut(fk.Target, ".")
	return column
}

// Parent returns the column holding the key.
func (fk *ForeignKey) Parent() *Column { return fk.parent }

// Column resolves the referenced column through the parent table's metadata.
func (fk *ForeignKey) Column() (*Column, error) {
	if fk.parent == nil || fk.parent.table == nil || fk.parent.table.metadata == nil {
		return nil, errs.Newf(errs.KindConfiguration, "foreign key %q is not attached to a table in a metadata", fk.Target)
	}
	md := fk.parent.table.metadata
	table := md.Table(fk.TargetTable())
	if table == nil {
		return nil, errs.Newf(errs.KindConfiguration,
			"foreign key associated with column %q could not find table %q with which to generate a foreign key to target column %q",
			fk.parent.FullName(), fk.TargetTable(), fk.TargetColumn())
	}
	col := table.Column(fk.TargetColumn())
	if col == nil {
		return nil, errs.Newf(errs.KindConfiguration,
			"foreign key associated with column %q could not find column %q on table %q",
			fk.parent.FullName(), fk.TargetColumn(), table.Name)
	}
	return col, nil
}

func (fk *ForeignKey) copy() *ForeignKey {
	return &ForeignKey{Target: fk.Target, OnDelete: fk.OnDelete, OnUpdate: fk.OnUpdate}
}

// CheckConstraint is a table-level CHECK expression contributed by a column.
type CheckConstraint struct {
	Name string
	Expr string
}

// NewCheck creates a CHECK constraint argument for NewColumn.
func NewCheck(expr string) *CheckConstraint {
	return &CheckConstraint{Expr: expr}
}

// Column is a table column.
type Column struct {
	Name          string
	Type          SQLType
	PrimaryKey    bool
	Nullable      bool
	Index         bool
	Unique        bool
	Default       any
	ServerDefault string
	Comment       string
	// Autoincrement is nil for the automatic rule: a lone integer primary key
	// without foreign keys.
	Autoincrement *bool
	ForeignKeys   []*ForeignKey
	Checks        []*CheckConstraint

	table *Table
}

var columnKwargs = map[string]bool{
	"name": true, "primary_key": true, "nullable": true, "index": true, "unique": true,
	"default": true, "server_default": true, "comment": true, "autoincrement": true,
}

// NewColumn constructs a column from positional arguments and keyword options.
//
// Positional arguments may be a column name (string), *ForeignKey or
// *CheckConstraint. Keyword options are the column attributes by their
// snake_case names. Nullability defaults to "not a primary key".
func NewColumn(typ SQLType, args []any, kwargs map[string]any) (*Column, error) {
	col := &Column{Type: typ}

	for i, arg := range args {
		switch a := arg.(type) {
		case string:
			col.Name = a
		case *ForeignKey:
			fk := a.copy()
			fk.parent = col
			col.ForeignKeys = append(col.ForeignKeys, fk)
		case ForeignKey:
			fk := a.copy()
			fk.parent = col
			col.ForeignKeys = append(col.ForeignKeys, fk)
		case *CheckConstraint:
			col.Checks = append(col.Checks, &CheckConstraint{Name: a.Name, Expr: a.Expr})
		default:
			return nil, errs.Newf(errs.KindConfiguration, "unsupported column argument %d of type %T", i, arg)
		}
	}

	nullableSet := false
	for key, value := range kwargs {
		if !columnKwargs[key] {
			return nil, errs.Newf(errs.KindConfiguration, "unexpected column keyword argument %q", key)
		}
		var err error
		switch key {
		case "name":
			col.Name, err = asString(key, value)
		case "primary_key":
			col.PrimaryKey, err = asBool(key, value)
		case "nullable":
			col.Nullable, err = asBool(key, value)
			nullableSet = true
		case "index":
			col.Index, err = asBool(key, value)
		case "unique":
			col.Unique, err = asBool(key, value)
		case "default":
			col.Default = value
		case "server_default":
			col.ServerDefault, err = asString(key, value)
		case "comment":
			col.Comment, err = asString(key, value)
		case "autoincrement":
			var b bool
			b, err = asBool(key, value)
			col.Autoincrement = &b
		}
		if err != nil {
			return nil, err
		}
	}
	if !nullableSet {
		col.Nullable = !col.PrimaryKey
	}
	return col, nil
}

func asBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errs.Newf(errs.KindConfiguration, "column keyword %q expects a bool, got %T", key, v)
	}
	return b, nil
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errs.Newf(errs.KindConfiguration, "column keyword %q expects a string, got %T", key, v)
	}
	return s, nil
}

// Table returns the table the column is attached to, or nil.
func (c *Column) Table() *Table { return c.table }

// FullName returns "table.column" once attached.
func (c *Column) FullName() string {
	if c.table == nil {
		return c.Name
	}
	return c.table.Name + "." + c.Name
}

// IsAutoincrement reports whether the database generates the column value.
func (c *Column) IsAutoincrement() bool {
	if c.Autoincrement != nil {
		return *c.Autoincrement
	}
	if !c.PrimaryKey || !c.Type.IsInteger() || len(c.ForeignKeys) > 0 {
		return false
	}
	return c.table != nil && len(c.table.PrimaryKey()) == 1
}

// DefaultValue evaluates the client-side default. Callable defaults
// (func() any) are invoked for every call.
func (c *Column) DefaultValue() (any, bool) {
	switch d := c.Default.(type) {
	case nil:
		return nil, false
	case func() any:
		return d(), true
	default:
		return d, true
	}
}

// Copy returns an unattached copy of the column.
func (c *Column) Copy() *Column {
	cp := *c
	cp.table = nil
	cp.ForeignKeys = make([]*ForeignKey, 0, len(c.ForeignKeys))
	for _, fk := range c.ForeignKeys {
		n := fk.copy()
		n.parent = &cp
		cp.ForeignKeys = append(cp.ForeignKeys, n)
	}
	cp.Checks = append([]*CheckConstraint(nil), c.Checks...)
	if c.Autoincrement != nil {
		b := *c.Autoincrement
		cp.Autoincrement = &b
	}
	return &cp
}

func (c *Column) String() string {
	return fmt.Sprintf("Column(%s, %s)", c.FullName(), c.Type)
}
