package sqlmodel

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazmi/sqlmodel/logger"
	"github.com/nazmi/sqlmodel/session"
)

type tutorial struct {
	r    *Registry
	link *Model
	team *Model
	hero *Model
}

func declareTutorial(t *testing.T) *tutorial {
	t.Helper()
	r, base := newBase(t)
	link := MustModel("HeroTeamLink", Extends(base), Table(true),
		Attr("team_id", Optional(Int()), Field(Default(nil), ForeignKey("team.id"), PrimaryKey(true))),
		Attr("hero_id", Optional(Int()), Field(Default(nil), ForeignKey("hero.id"), PrimaryKey(true))),
	)
	team := MustModel("Team", Extends(base), Table(true),
		Attr("id", Optional(Int()), Field(Default(nil), PrimaryKey(true))),
		Attr("name", String(), Field(Index(true))),
		Attr("headquarters", String()),
		Attr("heroes", List(Ref("Hero")), Relationship(BackPopulates("teams"), LinkModel(link))),
	)
	hero := MustModel("Hero", Extends(base), Table(true),
		Attr("id", Optional(Int()), Field(Default(nil), PrimaryKey(true))),
		Attr("name", String(), Field(Index(true))),
		Attr("secret_name", String()),
		Attr("age", Optional(Int()), Field(Default(nil), Index(true))),
		Attr("teams", List(Of(team)), Relationship(BackPopulates("heroes"), LinkModel(link))),
	)
	return &tutorial{r: r, link: link, team: team, hero: hero}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func instanceNames(t *testing.T, v any) []string {
	t.Helper()
	insts, ok := v.([]*Instance)
	require.True(t, ok, "expected []*Instance, got %T", v)
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i], _ = inst.MustGet("name").(string)
	}
	return out
}

func TestManyToManyTutorial(t *testing.T) {
	tu := declareTutorial(t)
	ctx := context.Background()
	db := openDB(t)

	s, err := tu.r.Session(db, session.WithLogger(logger.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateAll(ctx))
	assert.Equal(t, []string{"team", "hero", "heroteamlink"}, tableNames(t, tu.r))

	preventers := tu.team.MustNew(map[string]any{"name": "Preventers", "headquarters": "Sharp Tower"})
	zForce := tu.team.MustNew(map[string]any{"name": "Z-Force", "headquarters": "Sister Margaret's Bar"})

	deadpond := tu.hero.MustNew(map[string]any{
		"name": "Deadpond", "secret_name": "Dive Wilson",
		"teams": []*Instance{zForce, preventers},
	})
	rusty := tu.hero.MustNew(map[string]any{
		"name": "Rusty-Man", "secret_name": "Tommy Sharp", "age": 48,
		"teams": []*Instance{preventers},
	})
	spider := tu.hero.MustNew(map[string]any{
		"name": "Spider-Boy", "secret_name": "Pedro Parqueador",
		"teams": []*Instance{preventers},
	})

	require.NoError(t, s.Add(deadpond, rusty, spider))
	require.NoError(t, s.Commit(ctx))

	assert.Equal(t, []string{"Z-Force", "Preventers"}, instanceNames(t, deadpond.MustGet("teams")))
	assert.Equal(t, []string{"Preventers"}, instanceNames(t, rusty.MustGet("teams")))
	assert.Equal(t, []string{"Preventers"}, instanceNames(t, spider.MustGet("teams")))
	assert.Equal(t, []string{"Deadpond"}, instanceNames(t, zForce.MustGet("heroes")))
	assert.Equal(t, []string{"Deadpond", "Rusty-Man", "Spider-Boy"}, instanceNames(t, preventers.MustGet("heroes")))
	assert.NotNil(t, deadpond.MustGet("id"))
	assert.NotNil(t, zForce.MustGet("id"))
	assert.Equal(t, 4, countRows(t, db, "heroteamlink"))

	require.NoError(t, spider.Append("teams", zForce))
	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, []string{"Preventers", "Z-Force"}, instanceNames(t, spider.MustGet("teams")))
	assert.Equal(t, []string{"Deadpond", "Spider-Boy"}, instanceNames(t, zForce.MustGet("heroes")))
	assert.Equal(t, 5, countRows(t, db, "heroteamlink"))

	require.NoError(t, zForce.Remove("heroes", spider))
	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, []string{"Deadpond"}, instanceNames(t, zForce.MustGet("heroes")))
	assert.Equal(t, []string{"Preventers"}, instanceNames(t, spider.MustGet("teams")))
	assert.Equal(t, 4, countRows(t, db, "heroteamlink"))

	fresh, err := tu.r.Session(db, session.WithLogger(logger.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { fresh.Close() })

	loaded, err := fresh.Get(ctx, tu.team, zForce.MustGet("id"))
	require.NoError(t, err)
	assert.NotSame(t, zForce, loaded)
	assert.Equal(t, "Sister Margaret's Bar", loaded.MustGet("headquarters"))
	assert.ElementsMatch(t, []string{"id", "name", "headquarters"}, loaded.FieldsSet())

	members, err := fresh.Load(ctx, loaded, "heroes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Deadpond"}, instanceNames(t, members))

	rustyAgain, err := fresh.Get(ctx, tu.hero, rusty.MustGet("id"))
	require.NoError(t, err)
	assert.Equal(t, int64(48), rustyAgain.MustGet("age"))
	teams, err := fresh.Load(ctx, rustyAgain, "teams")
	require.NoError(t, err)
	assert.Equal(t, []string{"Preventers"}, instanceNames(t, teams))

	_, err = fresh.Get(ctx, tu.hero, int64(999))
	assert.ErrorIs(t, err, ErrNotFound)
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSessionRejectsNonTableInstances(t *testing.T) {
	tu := declareTutorial(t)
	read := MustModel("HeroRead", Extends(tu.hero))
	s, err := tu.r.Session(openDB(t), session.WithLogger(logger.Discard))
	require.NoError(t, err)

	inst := read.MustNew(map[string]any{"name": "Deadpond", "secret_name": "Dive Wilson"})
	assert.ErrorIs(t, s.Add(inst), ErrNotMapped)
	_, err = s.Get(context.Background(), read, 1)
	assert.ErrorIs(t, err, ErrNotMapped)
}

func TestSessionRollbackKeepsInstancesTransient(t *testing.T) {
	tu := declareTutorial(t)
	ctx := context.Background()
	s, err := tu.r.Session(openDB(t), session.WithLogger(logger.Discard))
	require.NoError(t, err)
	require.NoError(t, s.CreateAll(ctx))

	hero := tu.hero.MustNew(map[string]any{"name": "Deadpond", "secret_name": "Dive Wilson"})
	require.NoError(t, s.Add(hero))
	assert.True(t, s.Contains(hero))
	require.NoError(t, s.Rollback())
	assert.False(t, s.Contains(hero))
	assert.Nil(t, hero.MustGet("id"))
}

func TestFlushedForeignKeysCountAsSet(t *testing.T) {
	h := declareHeroes(t)
	ctx := context.Background()
	s, err := h.r.Session(openDB(t), session.WithLogger(logger.Discard))
	require.NoError(t, err)
	require.NoError(t, s.CreateAll(ctx))

	team := h.team.MustNew(map[string]any{"name": "Preventers", "headquarters": "Sharp Tower"})
	hero := h.newHero(t, "Rusty-Man", "Tommy Sharp")
	require.NoError(t, hero.Set("team", team))
	assert.NotContains(t, hero.Dump(DumpOptions{ExcludeUnset: true}), "team_id")

	require.NoError(t, s.Add(hero))
	require.NoError(t, s.Commit(ctx))

	teamID := team.MustGet("id")
	require.NotNil(t, teamID)
	assert.Equal(t, teamID, hero.MustGet("team_id"))
	assert.Equal(t, map[string]any{
		"id": hero.MustGet("id"), "name": "Rusty-Man", "secret_name": "Tommy Sharp", "team_id": teamID,
	}, hero.Dump(DumpOptions{ExcludeUnset: true}))
	assert.Contains(t, hero.FieldsSet(), "team_id")
}
