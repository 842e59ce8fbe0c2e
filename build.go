package sqlmodel

import (
	"maps"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
	"github.com/nazmi/sqlmodel/schema"
)

// buildTable derives one column per field, in field order.
func (m *Model) buildTable(name string) (*mapping.Table, error) {
	cols := make([]*mapping.Column, 0, len(m.fields))
	for _, f := range m.schema.Fields() {
		decl := m.fieldDecl(f.Name)
		col, err := m.buildColumn(name, decl)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	table, err := mapping.NewTable(name, cols...)
	if err != nil {
		return nil, withModel(err, m.name)
	}
	return table, nil
}

func (m *Model) fieldDecl(name string) *schema.FieldDecl {
	for i := len(m.fields) - 1; i >= 0; i-- {
		if m.fields[i].Name == name {
			return m.fields[i]
		}
	}
	return nil
}

// buildColumn turns a field into a column. An explicit column is copied so
// that declaring two classes from one descriptor never shares it.
func (m *Model) buildColumn(table string, f *schema.FieldDecl) (*mapping.Column, error) {
	info := f.Info
	if info.SAColumn != nil {
		col := info.SAColumn.Copy()
		if col.Name == "" {
			col.Name = f.Name
		}
		return col, nil
	}

	typ, err := m.columnType(table, f)
	if err != nil {
		return nil, err
	}

	nullable := !info.PrimaryKey && (f.Type.Nullable || (info.IsSet("default") && info.Default == nil))
	if info.IsSet("nullable") {
		nullable = info.Nullable
	}

	args := []any{f.Name}
	if info.ForeignKey != "" {
		args = append(args, mapping.NewForeignKey(info.ForeignKey))
	}
	args = append(args, info.SAColumnArgs...)

	kwargs := map[string]any{
		"primary_key": info.PrimaryKey,
		"nullable":    nullable,
		"index":       info.Index,
		"unique":      info.Unique,
	}
	switch {
	case info.DefaultFactory != nil:
		kwargs["default"] = info.DefaultFactory
	case info.Default != nil:
		kwargs["default"] = info.Default
	}
	maps.Copy(kwargs, info.SAColumnKwargs)

	col, err := mapping.NewColumn(typ, args, kwargs)
	if err != nil {
		if e, ok := err.(*errs.Error); ok && e.Model == "" {
			e.Model, e.Attr = m.name, f.Name
		}
		return nil, err
	}
	return col, nil
}

// columnType maps an annotation to a SQL type. An explicit sa_type wins.
func (m *Model) columnType(table string, f *schema.FieldDecl) (mapping.SQLType, error) {
	info := f.Info
	if info.IsSet("sa_type") {
		return info.SAType, nil
	}
	t := f.Type
	if t.IsList() {
		return mapping.SQLType{}, errs.Configf(m.name, f.Name, "%s has no column type; use sa_type or sa_column", t)
	}
	switch t.BaseType {
	case schema.TypeString, schema.TypeEmail, schema.TypeURL:
		n := 0
		switch {
		case info.MaxLength != nil:
			n = *info.MaxLength
		case t.Length != nil:
			n = *t.Length
		}
		return mapping.String(n), nil
	case schema.TypeText:
		return mapping.Text(), nil
	case schema.TypeInt:
		return mapping.Integer(), nil
	case schema.TypeBigInt:
		return mapping.BigInteger(), nil
	case schema.TypeFloat:
		return mapping.Float(), nil
	case schema.TypeDecimal:
		p, s := deref(t.Precision), deref(t.Scale)
		if info.MaxDigits != nil {
			p = *info.MaxDigits
		}
		if info.DecimalPlaces != nil {
			s = *info.DecimalPlaces
		}
		return mapping.Numeric(p, s), nil
	case schema.TypeBool:
		return mapping.Boolean(), nil
	case schema.TypeTimestamp:
		return mapping.DateTime(), nil
	case schema.TypeDate:
		return mapping.Date(), nil
	case schema.TypeTime:
		return mapping.Time(), nil
	case schema.TypeDuration:
		return mapping.Interval(), nil
	case schema.TypeUUID:
		return mapping.UUID(), nil
	case schema.TypeJSON:
		return mapping.JSON(), nil
	case schema.TypeBytes:
		return mapping.LargeBinary(), nil
	case schema.TypeEnum:
		return mapping.Enum(table+"_"+f.Name, t.EnumValues...), nil
	}
	return mapping.SQLType{}, errs.Configf(m.name, f.Name, "%s has no column type; use sa_type or sa_column", t)
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
