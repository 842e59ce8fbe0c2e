package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
)

// Get returns the instance of m with the given primary key, from the
// identity map when present, else from the database.
func (s *Session) Get(ctx context.Context, m *mapping.Mapper, pk ...any) (*mapping.InstanceState, error) {
	if s.closed {
		return nil, ErrClosed
	}
	cols := m.Table.PrimaryKey()
	if len(pk) != len(cols) {
		return nil, errs.Newf(errs.KindConfiguration, "%s has %d primary key columns, got %d values", m.ClassName, len(cols), len(pk))
	}
	if st, ok := s.identity[identityKey(m.Table, pk)]; ok && !s.isDeleted(st) {
		return st, nil
	}

	where := make([]string, len(cols))
	for i, c := range cols {
		where[i] = s.qualified(m.Table, c)
	}
	states, err := s.selectStates(ctx, m, "", where, pk, "")
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%s %v: %w", m.ClassName, pk, ErrNotFound)
	}
	return states[0], nil
}

// Load populates a relationship of st from the database and returns its
// members. The loaded collection has no history.
func (s *Session) Load(ctx context.Context, st *mapping.InstanceState, key string) ([]*mapping.InstanceState, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.registry.Configure(); err != nil {
		return nil, err
	}
	m := st.Mapper()
	p := m.Relationship(key)
	if p == nil {
		return nil, errs.UnknownAttribute(m.ClassName, key)
	}
	target := p.Target

	var (
		join  string
		where []string
		args  []any
	)
	switch p.Direction {
	case mapping.ManyToOne:
		for _, pair := range p.Synchronize {
			v, _ := st.Value(m.AttrFor(pair.Referencing))
			if v == nil {
				st.LoadRelated(key, nil)
				return nil, nil
			}
			where = append(where, s.qualified(target.Table, pair.Referenced))
			args = append(args, v)
		}
	case mapping.OneToMany:
		for _, pair := range p.Synchronize {
			v, _ := st.Value(m.AttrFor(pair.Referenced))
			where = append(where, s.qualified(target.Table, pair.Referencing))
			args = append(args, v)
		}
	case mapping.ManyToMany:
		on := make([]string, len(p.SecondarySynchronize))
		for i, pair := range p.SecondarySynchronize {
			on[i] = fmt.Sprintf("%s = %s", s.qualified(p.Secondary, pair.Referencing), s.qualified(target.Table, pair.Referenced))
		}
		join = fmt.Sprintf(" JOIN %s ON %s", s.dialect.Quote(p.Secondary.Name), strings.Join(on, " AND "))
		for _, pair := range p.Synchronize {
			v, _ := st.Value(m.AttrFor(pair.Referenced))
			where = append(where, s.qualified(p.Secondary, pair.Referencing))
			args = append(args, v)
		}
	default:
		return nil, errs.Configf(m.ClassName, key, "relationship is not configured")
	}

	orderBy := ""
	if c := target.Table.Column(p.OrderBy); p.OrderBy != "" && c != nil {
		orderBy = s.qualified(target.Table, c)
	}
	items, err := s.selectStates(ctx, target, join, where, args, orderBy)
	if err != nil {
		return nil, err
	}
	st.LoadRelated(key, items)
	return items, nil
}

func (s *Session) qualified(t *mapping.Table, c *mapping.Column) string {
	return s.dialect.Quote(t.Name) + "." + s.dialect.Quote(c.Name)
}

// selectStates runs a SELECT of m's columns. Rows whose identity is
// already in the session resolve to the tracked instance, unchanged.
func (s *Session) selectStates(ctx context.Context, m *mapping.Mapper, join string, where []string, args []any, orderBy string) ([]*mapping.InstanceState, error) {
	props := m.ColumnProperties()
	cols := make([]string, len(props))
	for i, cp := range props {
		cols[i] = s.qualified(m.Table, cp.Column)
	}

	conds := make([]string, len(where))
	encoded := make([]any, len(args))
	for i, w := range where {
		conds[i] = fmt.Sprintf("%s = %s", w, s.dialect.Placeholder(i+1))
		if c := columnOf(m, w, s); c != nil {
			v, err := encodeValue(s.dialect, c, args[i])
			if err != nil {
				return nil, err
			}
			encoded[i] = v
		} else {
			encoded[i] = args[i]
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", strings.Join(cols, ", "), s.dialect.Quote(m.Table.Name), join)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if orderBy == "" {
		pk := make([]string, 0, len(m.Table.PrimaryKey()))
		for _, c := range m.Table.PrimaryKey() {
			pk = append(pk, s.qualified(m.Table, c))
		}
		orderBy = strings.Join(pk, ", ")
	}
	b.WriteString(" ORDER BY " + orderBy)

	rows, err := s.query(ctx, b.String(), encoded...)
	if err != nil {
		return nil, storageError(m.ClassName, "selecting from "+m.Table.Name, err)
	}
	defer rows.Close()

	var out []*mapping.InstanceState
	for rows.Next() {
		raw := make([]any, len(props))
		dest := make([]any, len(props))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, storageError(m.ClassName, "scanning "+m.Table.Name, err)
		}
		values := make(map[string]any, len(props))
		for i, cp := range props {
			v, err := decodeValue(cp.Column, raw[i])
			if err != nil {
				return nil, err
			}
			values[cp.Key] = v
		}
		st, err := s.materialize(m, values)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(m.ClassName, "reading "+m.Table.Name, err)
	}
	return out, nil
}

// columnOf finds the column behind a qualified expression, if it belongs
// to m's table.
func columnOf(m *mapping.Mapper, expr string, s *Session) *mapping.Column {
	for _, c := range m.Table.Columns() {
		if s.qualified(m.Table, c) == expr {
			return c
		}
	}
	return nil
}

func (s *Session) materialize(m *mapping.Mapper, values map[string]any) (*mapping.InstanceState, error) {
	pk := make([]any, 0, len(m.Table.PrimaryKey()))
	for _, key := range m.PrimaryKeyAttrs() {
		pk = append(pk, values[key])
	}
	if st, ok := s.identity[identityKey(m.Table, pk)]; ok {
		return st, nil
	}

	mat, ok := m.Class.(Materializer)
	if !ok {
		return nil, errs.Newf(errs.KindNotMapped, "class %s cannot build instances from rows", m.ClassName)
	}
	st, err := mat.Materialize()
	if err != nil {
		return nil, err
	}
	for _, cp := range m.ColumnProperties() {
		st.Load(cp.Key, values[cp.Key])
	}
	st.Commit()
	st.SetStatus(mapping.Persistent)
	s.track(st)
	s.identity[identityKey(m.Table, st.Identity())] = st
	return st, nil
}
