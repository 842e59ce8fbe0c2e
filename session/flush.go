package session

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/nazmi/sqlmodel/ddl"
	"github.com/nazmi/sqlmodel/mapping"
)

// flush is the state of one Flush call.
type flush struct {
	*Session

	// inserted records states inserted by this flush and the key of a
	// generated primary key, if any.
	inserted  []*mapping.InstanceState
	generated map[*mapping.InstanceState]string
	// links holds the link rows already written, so a many-to-many pair
	// seen from both sides is written once.
	links map[string]bool
}

func (f *flush) run(ctx context.Context) error {
	tables, err := f.registry.MetaData.SortedTables()
	if err != nil {
		return err
	}

	for _, st := range f.deleted {
		if err := f.orphanChildren(st); err != nil {
			return err
		}
	}

	for _, t := range tables {
		for _, st := range f.states {
			if st.Mapper().Table != t || f.isDeleted(st) {
				continue
			}
			if err := f.save(ctx, st); err != nil {
				return err
			}
		}
	}
	// rows of a self-referential table can be written before their parent
	for _, st := range f.states {
		if f.isDeleted(st) || len(columnChanges(st)) == 0 {
			continue
		}
		if err := f.update(ctx, st); err != nil {
			return err
		}
	}

	for _, st := range f.states {
		if f.isDeleted(st) {
			continue
		}
		if err := f.syncLinks(ctx, st); err != nil {
			return err
		}
	}

	slices.Reverse(tables)
	for _, t := range tables {
		for _, st := range f.deleted {
			if st.Mapper().Table != t {
				continue
			}
			if err := f.delete(ctx, st); err != nil {
				return err
			}
		}
	}
	return nil
}

// undo puts inserted states back to pending after a failed flush.
func (f *flush) undo() {
	for _, st := range f.inserted {
		st.SetStatus(mapping.Pending)
		if key, ok := f.generated[st]; ok {
			st.Restore(key, nil, false)
		}
	}
}

func (f *flush) save(ctx context.Context, st *mapping.InstanceState) error {
	if err := f.pullForeignKeys(st); err != nil {
		return err
	}
	switch {
	case st.Status() == mapping.Pending:
		if err := f.insert(ctx, st); err != nil {
			return err
		}
	case len(columnChanges(st)) > 0:
		if err := f.update(ctx, st); err != nil {
			return err
		}
	}
	return f.pushForeignKeys(st)
}

// columnChanges returns the changed attributes that map columns.
func columnChanges(st *mapping.InstanceState) []string {
	var keys []string
	for _, key := range st.ChangedAttrs() {
		if st.Mapper().ColumnProperty(key) != nil {
			keys = append(keys, key)
		}
	}
	return keys
}

// pullForeignKeys copies the primary key of many-to-one parents into the
// local foreign key attributes.
func (f *flush) pullForeignKeys(st *mapping.InstanceState) error {
	m := st.Mapper()
	for _, p := range m.Relationships() {
		if p.Direction != mapping.ManyToOne || p.Viewonly {
			continue
		}
		coll := st.Collection(p.Key)
		parent := coll.First()
		if parent != nil && f.isDeleted(parent) {
			parent = nil
		} else if parent == nil && len(coll.Removed()) == 0 {
			continue
		}
		for _, pair := range p.Synchronize {
			key := m.AttrFor(pair.Referencing)
			var v any
			if parent != nil {
				v, _ = parent.Value(parent.Mapper().AttrFor(pair.Referenced))
			}
			if cur, _ := st.Value(key); !sameValue(cur, v) {
				if err := st.Sync(key, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// pushForeignKeys writes the primary key of st into the foreign keys of
// its one-to-many children, and clears it on removed children that still
// point at st.
func (f *flush) pushForeignKeys(st *mapping.InstanceState) error {
	for _, p := range st.Mapper().Relationships() {
		if p.Direction != mapping.OneToMany || p.Viewonly {
			continue
		}
		coll := st.Collection(p.Key)
		for _, child := range coll.Items() {
			for _, pair := range p.Synchronize {
				key := child.Mapper().AttrFor(pair.Referencing)
				v, _ := st.Value(st.Mapper().AttrFor(pair.Referenced))
				if cur, _ := child.Value(key); !sameValue(cur, v) {
					if err := child.Sync(key, v); err != nil {
						return err
					}
				}
			}
		}
		for _, child := range coll.Removed() {
			for _, pair := range p.Synchronize {
				key := child.Mapper().AttrFor(pair.Referencing)
				v, _ := st.Value(st.Mapper().AttrFor(pair.Referenced))
				if cur, _ := child.Value(key); v != nil && sameValue(cur, v) {
					if err := child.Sync(key, nil); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// orphanChildren clears the foreign keys of loaded children of a deleted
// parent that are not deleted themselves.
func (f *flush) orphanChildren(st *mapping.InstanceState) error {
	for _, p := range st.Mapper().Relationships() {
		if p.Direction != mapping.OneToMany || p.Viewonly {
			continue
		}
		for _, child := range st.Related(p.Key) {
			if f.isDeleted(child) {
				continue
			}
			for _, pair := range p.Synchronize {
				if err := child.Sync(child.Mapper().AttrFor(pair.Referencing), nil); err != nil {
					return err
				}
			}
			f.track(child)
		}
	}
	return nil
}

// sameValue compares key values, which may be byte slices.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

func (f *flush) insert(ctx context.Context, st *mapping.InstanceState) error {
	m := st.Mapper()
	t := m.Table

	var (
		cols    []string
		args    []any
		written []string
		genKey  string
		genCol  *mapping.Column
	)
	for _, cp := range m.ColumnProperties() {
		col := cp.Column
		v, present := st.Value(cp.Key)
		if v == nil && col.IsAutoincrement() {
			genKey, genCol = cp.Key, col
			continue
		}
		if !present {
			if dv, ok := col.DefaultValue(); ok {
				if err := st.SetAttribute(cp.Key, dv); err != nil {
					return err
				}
				v = dv
			} else if col.ServerDefault != "" {
				continue
			}
		}
		arg, err := encodeValue(f.dialect, col, v)
		if err != nil {
			return err
		}
		cols = append(cols, f.dialect.Quote(col.Name))
		args = append(args, arg)
		written = append(written, cp.Key)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s ", f.dialect.Quote(t.Name))
	switch {
	case len(cols) > 0:
		fmt.Fprintf(&b, "(%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(f.placeholders(len(cols), 0), ", "))
	case f.dialect.Name() == ddl.MySQL:
		b.WriteString("() VALUES ()")
	default:
		b.WriteString("DEFAULT VALUES")
	}

	if genCol != nil && f.dialect.SupportsReturning() {
		fmt.Fprintf(&b, " RETURNING %s", f.dialect.Quote(genCol.Name))
		rows, err := f.query(ctx, b.String(), args...)
		if err != nil {
			return storageError(m.ClassName, "inserting into "+t.Name, err)
		}
		var raw any
		if rows.Next() {
			err = rows.Scan(&raw)
		}
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			err = rows.Err()
		}
		if err != nil {
			return storageError(m.ClassName, "reading generated key of "+t.Name, err)
		}
		if err := f.loadGenerated(st, genKey, genCol, raw); err != nil {
			return err
		}
	} else {
		res, err := f.exec(ctx, b.String(), args...)
		if err != nil {
			return storageError(m.ClassName, "inserting into "+t.Name, err)
		}
		if genCol != nil {
			id, err := res.LastInsertId()
			if err != nil {
				return storageError(m.ClassName, "reading generated key of "+t.Name, err)
			}
			if err := f.loadGenerated(st, genKey, genCol, id); err != nil {
				return err
			}
		}
	}

	st.Flushed(written...)
	st.SetStatus(mapping.Persistent)
	f.inserted = append(f.inserted, st)
	return nil
}

func (f *flush) loadGenerated(st *mapping.InstanceState, key string, col *mapping.Column, raw any) error {
	v, err := decodeValue(col, raw)
	if err != nil {
		return err
	}
	st.Load(key, v)
	if f.generated == nil {
		f.generated = make(map[*mapping.InstanceState]string)
	}
	f.generated[st] = key
	return nil
}

// primaryKeyWhere renders the WHERE clause matching the stored row of st.
func (f *flush) primaryKeyWhere(st *mapping.InstanceState, offset int) (string, []any, error) {
	m := st.Mapper()
	pk := m.Table.PrimaryKey()
	identity := st.Identity()

	conds := make([]string, len(pk))
	args := make([]any, len(pk))
	for i, col := range pk {
		key := m.AttrFor(col)
		var v any
		switch {
		case len(identity) == len(pk):
			v = identity[i]
		case st.Change(key) != nil && !st.Change(key).Added:
			v = st.Committed(key)
		default:
			v, _ = st.Value(key)
		}
		if v == nil {
			return "", nil, fmt.Errorf("%s instance has no primary key value for %s", m.ClassName, col.Name)
		}
		arg, err := encodeValue(f.dialect, col, v)
		if err != nil {
			return "", nil, err
		}
		conds[i] = fmt.Sprintf("%s = %s", f.dialect.Quote(col.Name), f.dialect.Placeholder(offset+i+1))
		args[i] = arg
	}
	return strings.Join(conds, " AND "), args, nil
}

func (f *flush) update(ctx context.Context, st *mapping.InstanceState) error {
	m := st.Mapper()
	changed := columnChanges(st)
	if len(changed) == 0 {
		return nil
	}

	sets := make([]string, len(changed))
	args := make([]any, 0, len(changed)+1)
	for i, key := range changed {
		col := m.ColumnProperty(key).Column
		v, _ := st.Value(key)
		arg, err := encodeValue(f.dialect, col, v)
		if err != nil {
			return err
		}
		sets[i] = fmt.Sprintf("%s = %s", f.dialect.Quote(col.Name), f.dialect.Placeholder(i+1))
		args = append(args, arg)
	}
	where, whereArgs, err := f.primaryKeyWhere(st, len(changed))
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", f.dialect.Quote(m.Table.Name), strings.Join(sets, ", "), where)
	if _, err := f.exec(ctx, query, append(args, whereArgs...)...); err != nil {
		return storageError(m.ClassName, "updating "+m.Table.Name, err)
	}
	st.Flushed(changed...)
	return nil
}

func (f *flush) delete(ctx context.Context, st *mapping.InstanceState) error {
	m := st.Mapper()
	for _, p := range m.Relationships() {
		if p.Direction != mapping.ManyToMany || p.Viewonly || p.Secondary == nil {
			continue
		}
		row := make(map[*mapping.Column]any, len(p.Synchronize))
		for _, pair := range p.Synchronize {
			row[pair.Referencing], _ = st.Value(m.AttrFor(pair.Referenced))
		}
		if err := f.deleteLinks(ctx, p.Secondary, row); err != nil {
			return err
		}
	}

	where, args, err := f.primaryKeyWhere(st, 0)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", f.dialect.Quote(m.Table.Name), where)
	res, err := f.exec(ctx, query, args...)
	if err != nil {
		return storageError(m.ClassName, "deleting from "+m.Table.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		f.logger.Warn(ctx, "delete matched an unexpected number of rows", "table", m.Table.Name, "rows", n)
	}
	return nil
}

// syncLinks writes the link rows of many-to-many collections from their
// add/remove history.
func (f *flush) syncLinks(ctx context.Context, st *mapping.InstanceState) error {
	for _, p := range st.Mapper().Relationships() {
		if p.Direction != mapping.ManyToMany || p.Viewonly || p.Secondary == nil {
			continue
		}
		coll := st.Collection(p.Key)
		for _, child := range coll.Removed() {
			row := linkRow(p, st, child)
			if f.seenLink("-", p.Secondary, row) {
				continue
			}
			if err := f.deleteLinks(ctx, p.Secondary, row); err != nil {
				return err
			}
		}
		for _, child := range coll.Added() {
			if f.isDeleted(child) {
				continue
			}
			row := linkRow(p, st, child)
			if f.seenLink("+", p.Secondary, row) {
				continue
			}
			if err := f.insertLink(ctx, p.Secondary, row); err != nil {
				return err
			}
		}
	}
	return nil
}

func linkRow(p *mapping.RelationshipProperty, parent, child *mapping.InstanceState) map[*mapping.Column]any {
	row := make(map[*mapping.Column]any, len(p.Synchronize)+len(p.SecondarySynchronize))
	for _, pair := range p.Synchronize {
		row[pair.Referencing], _ = parent.Value(parent.Mapper().AttrFor(pair.Referenced))
	}
	for _, pair := range p.SecondarySynchronize {
		row[pair.Referencing], _ = child.Value(child.Mapper().AttrFor(pair.Referenced))
	}
	return row
}

func sortedColumns(row map[*mapping.Column]any) []*mapping.Column {
	cols := make([]*mapping.Column, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

func (f *flush) seenLink(op string, t *mapping.Table, row map[*mapping.Column]any) bool {
	var b strings.Builder
	b.WriteString(op + t.Name)
	for _, c := range sortedColumns(row) {
		fmt.Fprintf(&b, "|%s=%v", c.Name, row[c])
	}
	key := b.String()
	if f.links[key] {
		return true
	}
	f.links[key] = true
	return false
}

// linkColumns orders a link row by table column order.
func linkColumns(t *mapping.Table, row map[*mapping.Column]any) []*mapping.Column {
	var cols []*mapping.Column
	for _, c := range t.Columns() {
		if _, ok := row[c]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

func (f *flush) insertLink(ctx context.Context, t *mapping.Table, row map[*mapping.Column]any) error {
	cols := linkColumns(t, row)
	names := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		arg, err := encodeValue(f.dialect, c, row[c])
		if err != nil {
			return err
		}
		args[i] = arg
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", f.dialect.Quote(t.Name),
		strings.Join(f.quoteAll(names), ", "), strings.Join(f.placeholders(len(cols), 0), ", "))
	if _, err := f.exec(ctx, query, args...); err != nil {
		return storageError("", "inserting into "+t.Name, err)
	}
	return nil
}

func (f *flush) deleteLinks(ctx context.Context, t *mapping.Table, row map[*mapping.Column]any) error {
	cols := linkColumns(t, row)
	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		conds[i] = fmt.Sprintf("%s = %s", f.dialect.Quote(c.Name), f.dialect.Placeholder(i+1))
		arg, err := encodeValue(f.dialect, c, row[c])
		if err != nil {
			return err
		}
		args[i] = arg
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", f.dialect.Quote(t.Name), strings.Join(conds, " AND "))
	if _, err := f.exec(ctx, query, args...); err != nil {
		return storageError("", "deleting from "+t.Name, err)
	}
	return nil
}
