package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazmi/sqlmodel/internal/errs"
	"github.com/nazmi/sqlmodel/mapping"
)

func column(t *testing.T, typ mapping.SQLType, args []any, kwargs map[string]any) *mapping.Column {
	t.Helper()
	c, err := mapping.NewColumn(typ, args, kwargs)
	require.NoError(t, err)
	return c
}

func heroMetaData(t *testing.T) *mapping.MetaData {
	t.Helper()
	md := mapping.NewMetaData()

	team, err := mapping.NewTable("team",
		column(t, mapping.Integer(), []any{"id"}, map[string]any{"primary_key": true}),
		column(t, mapping.String(0), []any{"name"}, map[string]any{"nullable": false, "index": true}),
		column(t, mapping.String(0), []any{"headquarters"}, map[string]any{"nullable": false}),
	)
	require.NoError(t, err)

	hero, err := mapping.NewTable("hero",
		column(t, mapping.Integer(), []any{"id"}, map[string]any{"primary_key": true}),
		column(t, mapping.String(0), []any{"name"}, map[string]any{"nullable": false, "index": true}),
		column(t, mapping.String(0), []any{"secret_name"}, map[string]any{"nullable": false, "unique": true}),
		column(t, mapping.Integer(), []any{"age"}, map[string]any{"index": true}),
		column(t, mapping.Integer(), []any{"team_id", &mapping.ForeignKey{Target: "team.id", OnDelete: "cascade"}}, nil),
	)
	require.NoError(t, err)

	require.NoError(t, md.Add(hero))
	require.NoError(t, md.Add(team))
	return md
}

func TestLookup(t *testing.T) {
	for name, want := range map[string]string{
		"postgres": Postgres, "pgx": Postgres, "PostgreSQL": Postgres,
		"sqlite3": SQLite, "sqlite": SQLite, "mysql": MySQL,
	} {
		d, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name(), name)
	}

	_, err := Lookup("oracle")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestDialectBasics(t *testing.T) {
	pg, _ := Lookup(Postgres)
	lite, _ := Lookup(SQLite)
	my, _ := Lookup(MySQL)

	assert.Equal(t, `"we""ird"`, pg.Quote(`we"ird`))
	assert.Equal(t, "`hero`", my.Quote("hero"))
	assert.Equal(t, "$3", pg.Placeholder(3))
	assert.Equal(t, "?", lite.Placeholder(3))
	assert.True(t, pg.SupportsReturning())
	assert.False(t, my.SupportsReturning())

	assert.Equal(t, "VARCHAR(20)", pg.ColumnType(mapping.String(20)))
	assert.Equal(t, "VARCHAR(255)", my.ColumnType(mapping.String(0)))
	assert.Equal(t, "JSONB", pg.ColumnType(mapping.JSON()))
	assert.Equal(t, "CHAR(36)", lite.ColumnType(mapping.UUID()))
	assert.Equal(t, "NUMERIC(10, 2)", lite.ColumnType(mapping.Numeric(10, 2)))
	assert.Equal(t, "ENUM('red', 'o''range')", my.ColumnType(mapping.Enum("color", "red", "o'range")))
	assert.Equal(t, "VARCHAR(7)", lite.ColumnType(mapping.Enum("color", "red", "o'range")))
}

func TestCreateTableSQLite(t *testing.T) {
	md := heroMetaData(t)
	lite, _ := Lookup(SQLite)
	g := NewGenerator(lite)

	stmts, err := g.CreateTable(md.Table("hero"))
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "hero" (
	"id" INTEGER NOT NULL,
	"name" VARCHAR NOT NULL,
	"secret_name" VARCHAR NOT NULL,
	"age" INTEGER NULL,
	"team_id" INTEGER NULL,
	PRIMARY KEY ("id"),
	UNIQUE ("secret_name"),
	FOREIGN KEY ("team_id") REFERENCES "team" ("id") ON DELETE CASCADE
)`, stmts[0])
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "ix_hero_name" ON "hero" ("name")`, stmts[1])
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "ix_hero_age" ON "hero" ("age")`, stmts[2])
}

func TestCreateTablePostgres(t *testing.T) {
	md := mapping.NewMetaData()
	tbl, err := mapping.NewTable("item",
		column(t, mapping.BigInteger(), []any{"id"}, map[string]any{"primary_key": true}),
		column(t, mapping.Enum("item_color", "red", "blue"), []any{"color"}, map[string]any{"nullable": false, "comment": "paint"}),
		column(t, mapping.DateTime(), []any{"created_at", mapping.NewCheck("created_at > '2000-01-01'")},
			map[string]any{"server_default": "CURRENT_TIMESTAMP"}),
	)
	require.NoError(t, err)
	require.NoError(t, md.Add(tbl))

	pg, _ := Lookup(Postgres)
	stmts, err := NewGenerator(pg).CreateTable(tbl)
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	assert.Contains(t, stmts[0], `CREATE TYPE "item_color" AS ENUM ('red', 'blue')`)
	assert.Contains(t, stmts[1], `"id" BIGSERIAL NOT NULL`)
	assert.Contains(t, stmts[1], `"color" "item_color" NOT NULL`)
	assert.Contains(t, stmts[1], `"created_at" TIMESTAMP WITH TIME ZONE NULL DEFAULT CURRENT_TIMESTAMP`)
	assert.Contains(t, stmts[1], `CHECK (created_at > '2000-01-01')`)
	assert.Equal(t, `COMMENT ON COLUMN "item"."color" IS 'paint'`, stmts[2])

	assert.Equal(t, []string{`DROP TABLE IF EXISTS "item"`, `DROP TYPE IF EXISTS "item_color"`}, NewGenerator(pg).DropTable(tbl))
}

func TestCreateTableMySQL(t *testing.T) {
	md := heroMetaData(t)
	my, _ := Lookup(MySQL)
	g := NewGenerator(my, WithIndexNamer(func(table, column string) string { return table + "_" + column + "_idx" }))

	stmts, err := g.CreateTable(md.Table("hero"))
	require.NoError(t, err)
	assert.Contains(t, stmts[0], "`id` INTEGER NOT NULL AUTO_INCREMENT")
	assert.Contains(t, stmts[0], "FOREIGN KEY (`team_id`) REFERENCES `team` (`id`) ON DELETE CASCADE")
	assert.Equal(t, "CREATE INDEX `hero_name_idx` ON `hero` (`name`)", stmts[1])
}

func TestCreateAndDropAllOrder(t *testing.T) {
	md := heroMetaData(t)
	lite, _ := Lookup(SQLite)
	g := NewGenerator(lite)

	create, err := g.CreateAll(md)
	require.NoError(t, err)
	require.NotEmpty(t, create)
	assert.Contains(t, create[0], `CREATE TABLE IF NOT EXISTS "team"`)

	drop, err := g.DropAll(md)
	require.NoError(t, err)
	assert.Equal(t, []string{`DROP TABLE IF EXISTS "hero"`, `DROP TABLE IF EXISTS "team"`}, drop)
}

func TestCreateTableErrors(t *testing.T) {
	lite, _ := Lookup(SQLite)
	g := NewGenerator(lite)

	_, err := g.CreateTable(nil)
	assert.ErrorIs(t, err, errs.ErrConfiguration)

	empty, err := mapping.NewTable("empty")
	require.NoError(t, err)
	_, err = g.CreateTable(empty)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
