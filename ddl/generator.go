package ddl

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
)

// IndexNamer names the index of an indexed column.
type IndexNamer func(table, column string) string

// DefaultIndexName is "ix_<table>_<column>".
func DefaultIndexName(table, column string) string {
	return fmt.Sprintf("ix_%s_%s", table, column)
}

// Generator renders DDL for one dialect.
type Generator struct {
	dialect   Dialect
	indexName IndexNamer
}

// Option configures a Generator.
type Option func(*Generator)

// WithIndexNamer overrides how column indexes are named.
func WithIndexNamer(fn IndexNamer) Option {
	return func(g *Generator) {
		if fn != nil {
			g.indexName = fn
		}
	}
}

// NewGenerator creates a generator for d.
func NewGenerator(d Dialect, opts ...Option) *Generator {
	g := &Generator{dialect: d, indexName: DefaultIndexName}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dialect returns the generator dialect.
func (g *Generator) Dialect() Dialect { return g.dialect }

// CreateTable returns the statements creating t: enum types where the
// dialect names them, the table, then its indexes.
func (g *Generator) CreateTable(t *mapping.Table) ([]string, error) {
	if t == nil {
		return nil, errs.New(errs.KindConfiguration, "table cannot be nil")
	}
	cols := t.Columns()
	if len(cols) == 0 {
		return nil, errs.Newf(errs.KindConfiguration, "table %q has no columns", t.Name)
	}

	var stmts []string
	if g.dialect.NamedEnums() {
		stmts = append(stmts, g.enumTypes(t)...)
	}

	defs := make([]string, 0, len(cols)+4)
	for _, c := range cols {
		def, err := g.ColumnDefinition(c)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.FullName(), err)
		}
		defs = append(defs, def)
	}
	defs = append(defs, g.constraints(t)...)

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", g.dialect.Quote(t.Name))
	for i, def := range defs {
		b.WriteString("\t")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	stmts = append(stmts, b.String())

	if g.dialect.Name() == Postgres {
		for _, c := range cols {
			if c.Comment != "" {
				stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
					g.dialect.Quote(t.Name), g.dialect.Quote(c.Name), QuoteLiteral(c.Comment)))
			}
		}
	}
	return append(stmts, g.CreateIndexes(t)...), nil
}

// ColumnDefinition renders one column line of CREATE TABLE.
func (g *Generator) ColumnDefinition(c *mapping.Column) (string, error) {
	if c.Name == "" {
		return "", errs.New(errs.KindConfiguration, "column has no name")
	}
	parts := []string{g.dialect.Quote(c.Name)}

	typ, clause := g.dialect.ColumnType(c.Type), ""
	if c.IsAutoincrement() {
		typ, clause = g.dialect.IdentityColumn(c.Type)
	}
	parts = append(parts, typ)

	if c.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if c.ServerDefault != "" {
		parts = append(parts, "DEFAULT "+c.ServerDefault)
	}
	if clause != "" {
		parts = append(parts, clause)
	}
	if c.Comment != "" && g.dialect.Name() == MySQL {
		parts = append(parts, "COMMENT "+QuoteLiteral(c.Comment))
	}
	return strings.Join(parts, " "), nil
}

func (g *Generator) constraints(t *mapping.Table) []string {
	var out []string
	if pk := t.PrimaryKey(); len(pk) > 0 {
		out = append(out, "PRIMARY KEY ("+g.columnList(pk)+")")
	}
	for _, c := range t.Columns() {
		if c.Unique && !c.Index {
			out = append(out, "UNIQUE ("+g.dialect.Quote(c.Name)+")")
		}
	}
	for _, fk := range t.ForeignKeys() {
		def := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			g.dialect.Quote(fk.Parent().Name), g.dialect.Quote(fk.TargetTable()), g.dialect.Quote(fk.TargetColumn()))
		if fk.OnDelete != "" {
			def += " ON DELETE " + strings.ToUpper(fk.OnDelete)
		}
		if fk.OnUpdate != "" {
			def += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
		}
		out = append(out, def)
	}
	for _, c := range t.Columns() {
		for _, ck := range c.Checks {
			if ck.Name != "" {
				out = append(out, fmt.Sprintf("CONSTRAINT %s CHECK (%s)", g.dialect.Quote(ck.Name), ck.Expr))
			} else {
				out = append(out, "CHECK ("+ck.Expr+")")
			}
		}
		if c.Type.Kind == mapping.KindEnum && !g.dialect.NamedEnums() && g.dialect.Name() != MySQL {
			out = append(out, fmt.Sprintf("CHECK (%s IN (%s))", g.dialect.Quote(c.Name), quoteLiterals(c.Type.Values)))
		}
	}
	return out
}

func (g *Generator) columnList(cols []*mapping.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = g.dialect.Quote(c.Name)
	}
	return strings.Join(names, ", ")
}

// CreateIndexes returns one CREATE INDEX per indexed column. Unique
// indexed columns get a unique index.
func (g *Generator) CreateIndexes(t *mapping.Table) []string {
	var stmts []string
	for _, c := range t.IndexedColumns() {
		kind := "INDEX"
		if c.Unique {
			kind = "UNIQUE INDEX"
		}
		ifNotExists := ""
		if g.dialect.IndexIfNotExists() {
			ifNotExists = "IF NOT EXISTS "
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s %s%s ON %s (%s)", kind, ifNotExists,
			g.dialect.Quote(g.indexName(t.Name, c.Name)), g.dialect.Quote(t.Name), g.dialect.Quote(c.Name)))
	}
	return stmts
}

func (g *Generator) enumTypes(t *mapping.Table) []string {
	var stmts []string
	seen := make(map[string]bool)
	for _, c := range t.Columns() {
		if c.Type.Kind != mapping.KindEnum || seen[c.Type.EnumName] {
			continue
		}
		seen[c.Type.EnumName] = true
		stmts = append(stmts, fmt.Sprintf(
			"DO $$ BEGIN CREATE TYPE %s AS ENUM (%s); EXCEPTION WHEN duplicate_object THEN NULL; END $$",
			g.dialect.Quote(c.Type.EnumName), quoteLiterals(c.Type.Values)))
	}
	return stmts
}

// DropTable returns the statements dropping t and, where the dialect
// names them, its enum types.
func (g *Generator) DropTable(t *mapping.Table) []string {
	stmts := []string{fmt.Sprintf("DROP TABLE IF EXISTS %s", g.dialect.Quote(t.Name))}
	if g.dialect.NamedEnums() {
		seen := make(map[string]bool)
		for _, c := range t.Columns() {
			if c.Type.Kind == mapping.KindEnum && !seen[c.Type.EnumName] {
				seen[c.Type.EnumName] = true
				stmts = append(stmts, fmt.Sprintf("DROP TYPE IF EXISTS %s", g.dialect.Quote(c.Type.EnumName)))
			}
		}
	}
	return stmts
}

// CreateAll returns the statements creating every table of md, referenced
// tables first.
func (g *Generator) CreateAll(md *mapping.MetaData) ([]string, error) {
	tables, err := md.SortedTables()
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "ordering tables", err)
	}
	var stmts []string
	for _, t := range tables {
		s, err := g.CreateTable(t)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s...)
	}
	return stmts, nil
}

// DropAll returns the statements dropping every table of md, dependents
// first.
func (g *Generator) DropAll(md *mapping.MetaData) ([]string, error) {
	tables, err := md.SortedTables()
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "ordering tables", err)
	}
	slices.Reverse(tables)
	var stmts []string
	for _, t := range tables {
		stmts = append(stmts, g.DropTable(t)...)
	}
	return stmts, nil
}
