package sqlmodel

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazmi/sqlmodel/config"
	"github.com/nazmi/sqlmodel/logger"
	"github.com/nazmi/sqlmodel/mapping"
	"github.com/nazmi/sqlmodel/validation"
)

func newBase(t *testing.T, opts ...RegistryOption) (*Registry, *Model) {
	t.Helper()
	r := NewRegistry(append([]RegistryOption{WithLogger(logger.Discard)}, opts...)...)
	base, err := NewModel("SQLModel", WithRegistry(r))
	require.NoError(t, err)
	return r, base
}

type heroes struct {
	r    *Registry
	base *Model
	team *Model
	hero *Model
}

func declareHeroes(t *testing.T, heroOpts ...ModelOption) *heroes {
	t.Helper()
	r, base := newBase(t)
	team, err := NewModel("Team", Extends(base), Table(true),
		Attr("id", Optional(Int()), Field(Default(nil), PrimaryKey(true))),
		Attr("name", String(), Field(Index(true))),
		Attr("headquarters", String()),
		Attr("heroes", List(Ref("Hero")), Relationship(BackPopulates("team"))),
	)
	require.NoError(t, err)

	opts := []ModelOption{Extends(base), Table(true),
		Attr("id", Optional(Int()), Field(Default(nil), PrimaryKey(true))),
		Attr("name", String(), Field(Index(true))),
		Attr("secret_name", String()),
		Attr("age", Optional(Int()), Field(Default(nil), Index(true))),
		Attr("team_id", Optional(Int()), Field(Default(nil), ForeignKey("team.id"))),
		Attr("team", Optional(Of(team)), Relationship(BackPopulates("heroes"))),
	}
	hero, err := NewModel("Hero", append(opts, heroOpts...)...)
	require.NoError(t, err)
	return &heroes{r: r, base: base, team: team, hero: hero}
}

func (h *heroes) newHero(t *testing.T, name, secret string) *Instance {
	t.Helper()
	inst, err := h.hero.New(map[string]any{"name": name, "secret_name": secret})
	require.NoError(t, err)
	return inst
}

func TestFieldRejectsOptionsConflictingWithColumn(t *testing.T) {
	col, err := mapping.NewColumn(mapping.Integer(), nil, map[string]any{"primary_key": true})
	require.NoError(t, err)

	for name, opt := range map[string]FieldOption{
		"primary_key":      PrimaryKey(true),
		"nullable":         Nullable(true),
		"foreign_key":      ForeignKey("team.id"),
		"unique":           Unique(true),
		"index":            Index(true),
		"sa_type":          SAType(mapping.Text()),
		"sa_column_args":   SAColumnArgs("x"),
		"sa_column_kwargs": SAColumnKwargs(map[string]any{"comment": "x"}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewField(SAColumn(col), opt)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), name)
		})
	}

	t.Run("deferred to declaration", func(t *testing.T) {
		_, base := newBase(t)
		_, err := NewModel("Hero", Extends(base), Table(true),
			Attr("id", Int(), Field(SAColumn(col), PrimaryKey(true))),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Contains(t, err.Error(), "Hero.id")
	})
}

func TestRelationshipRejectsArgsWithExplicitProperty(t *testing.T) {
	p, err := mapping.NewRelationship("Team", nil, nil)
	require.NoError(t, err)

	_, err = NewRelationship(SARelationship(p), SARelationshipArgs("x"))
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewRelationship(SARelationship(p), SARelationshipKwargs(map[string]any{"lazy": "joined"}))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewRelationship(SARelationshipArgs("x"), SARelationshipKwargs(map[string]any{"lazy": "joined"}))
	assert.NoError(t, err)
}

func TestAttrTakesOneValue(t *testing.T) {
	_, err := NewModel("Hero", Attr("name", String(), "a", "b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "Hero.name")
}

func TestTableClassesGetEmptyDefaults(t *testing.T) {
	_, base := newBase(t)
	table := MustModel("Item", Extends(base), Table(true),
		Attr("id", Optional(Int()), Field(Default(nil), PrimaryKey(true))),
		Attr("title", String()),
	)
	schemaOnly := MustModel("ItemCreate", Extends(base),
		Attr("title", String()),
	)

	inst, err := table.New(map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, inst.ValidationErrors())
	assert.Nil(t, inst.MustGet("title"))
	assert.Empty(t, inst.FieldsSet())

	_, err = schemaOnly.New(map[string]any{})
	require.Error(t, err)
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{validation.CodeRequired}, ve.Codes())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTableSwallowsValidationErrors(t *testing.T) {
	h := declareHeroes(t)

	inst, err := h.hero.New(map[string]any{"name": "Deadpond", "secret_name": "Dive Wilson", "age": "old"})
	require.NoError(t, err)
	require.NotNil(t, inst.ValidationErrors())
	assert.Equal(t, []string{validation.CodeInvalidType}, inst.ValidationErrors().Codes())
	assert.Contains(t, inst.ValidationErrors().Fields(), "age")
	assert.Equal(t, "Deadpond", inst.MustGet("name"))
	assert.Nil(t, inst.MustGet("age"))

	_, err = h.hero.Validate(map[string]any{"name": "Deadpond", "secret_name": "Dive Wilson", "age": "old"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStrictTableOnlyToleratesMissingFields(t *testing.T) {
	h := declareHeroes(t, WithConfig(ModelConfig{StrictTable: Bool(true)}))

	inst, err := h.hero.New(map[string]any{"secret_name": "Dive Wilson"})
	require.NoError(t, err)
	require.NotNil(t, inst.ValidationErrors())
	assert.Equal(t, []string{validation.CodeRequired}, inst.ValidationErrors().Codes())

	_, err = h.hero.New(map[string]any{"name": "Deadpond", "age": "old"})
	require.Error(t, err)
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{validation.CodeInvalidType}, ve.Codes())
}

func TestTableColumns(t *testing.T) {
	h := declareHeroes(t)
	table := h.hero.Table()
	require.NotNil(t, table)
	assert.Equal(t, "hero", table.Name)

	var names []string
	for _, c := range table.Columns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "name", "secret_name", "age", "team_id"}, names)

	id := table.Column("id")
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.Nullable)
	assert.True(t, id.IsAutoincrement())
	assert.Equal(t, mapping.KindInteger, id.Type.Kind)

	name := table.Column("name")
	assert.False(t, name.Nullable)
	assert.True(t, name.Index)
	assert.Equal(t, mapping.KindString, name.Type.Kind)

	assert.True(t, table.Column("age").Nullable)
	fks := table.Column("team_id").ForeignKeys
	require.Len(t, fks, 1)
	assert.Equal(t, "team.id", fks[0].Target)

	assert.Equal(t, []string{"team", "hero"}, tableNames(t, h.r))
}

func tableNames(t *testing.T, r *Registry) []string {
	t.Helper()
	tables, err := r.MetaData().SortedTables()
	require.NoError(t, err)
	out := make([]string, len(tables))
	for i, tb := range tables {
		out[i] = tb.Name
	}
	return out
}

func TestColumnTypesFromAnnotations(t *testing.T) {
	_, base := newBase(t)
	m := MustModel("Sample", Extends(base), Table(true),
		Attr("id", Int(), Field(PrimaryKey(true))),
		Attr("code", StringN(8)),
		Attr("title", String(), Field(MaxLength(20))),
		Attr("body", Text()),
		Attr("price", Decimal(10, 2)),
		Attr("active", Boolean(), Field(Default(true))),
		Attr("seen", Timestamp()),
		Attr("ref", UUID()),
		Attr("color", Enum("red", "blue")),
		Attr("note", String(), Field(SAType(mapping.Text()))),
		Attr("legacy", Int(), Field(SAColumn(&mapping.Column{Type: mapping.BigInteger(), Nullable: true}))),
	)
	table := m.Table()

	assert.Equal(t, 8, table.Column("code").Type.Length)
	assert.Equal(t, 20, table.Column("title").Type.Length)
	assert.Equal(t, mapping.KindText, table.Column("body").Type.Kind)
	assert.Equal(t, mapping.Numeric(10, 2), table.Column("price").Type)
	assert.Equal(t, true, table.Column("active").Default)
	assert.Equal(t, mapping.KindDateTime, table.Column("seen").Type.Kind)
	assert.Equal(t, mapping.KindUUID, table.Column("ref").Type.Kind)
	assert.Equal(t, mapping.Enum("sample_color", "red", "blue"), table.Column("color").Type)
	assert.Equal(t, mapping.KindText, table.Column("note").Type.Kind)
	assert.Equal(t, mapping.KindBigInteger, table.Column("legacy").Type.Kind)
	assert.Same(t, table, table.Column("legacy").Table())

	_, err := NewModel("Bad", Extends(base), Table(true),
		Attr("id", Int(), Field(PrimaryKey(true))),
		Attr("tags", List(String())),
	)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNonTableSubclassDoesNotMapAgain(t *testing.T) {
	h := declareHeroes(t)
	read, err := NewModel("HeroRead", Extends(h.hero))
	require.NoError(t, err)

	assert.False(t, read.IsTable())
	assert.Nil(t, read.Table())
	assert.Equal(t, []string{"team", "hero"}, tableNames(t, h.r))
	assert.Equal(t, []string{"id", "name", "secret_name", "age", "team_id"}, read.Schema().Names())
	assert.Empty(t, read.Relationships())

	inst, err := read.New(map[string]any{"id": 1, "name": "Deadpond", "secret_name": "Dive Wilson"})
	require.NoError(t, err)
	assert.Nil(t, inst.State())
	assert.Equal(t, int64(1), inst.MustGet("id"))
}

func TestInvalidTableDeclarations(t *testing.T) {
	h := declareHeroes(t)

	_, err := NewModel("SuperHero", Extends(h.hero), Table(true))
	assert.ErrorIs(t, err, ErrConfiguration)

	r := NewRegistry(WithLogger(logger.Discard))
	_, err = NewModel("Anchor", WithRegistry(r), Table(true))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewModel("Again", Extends(h.base), Table(true), TableName("hero"),
		Attr("id", Int(), Field(PrimaryKey(true))),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "hero" is already defined`)

	_, err = NewModel("NoKey", Extends(h.base), Table(true), Attr("name", String()))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigTableFlagWinsOverKeyword(t *testing.T) {
	_, base := newBase(t)
	m := MustModel("Flagged", Extends(base), Table(false),
		WithConfig(ModelConfig{Table: Bool(true)}),
		Attr("id", Int(), Field(PrimaryKey(true))),
	)
	assert.True(t, m.IsTable())

	sub := MustModel("FlaggedView", Extends(m))
	assert.False(t, sub.IsTable())
	assert.False(t, *sub.Config().Table)
}

func TestConfigInheritsOnlyDeclaredValues(t *testing.T) {
	r, base := newBase(t)
	strictBase := MustModel("StrictBase", Extends(base),
		WithConfig(ModelConfig{StrictTable: Bool(false), Extra: ExtraForbid}),
	)
	assert.False(t, *base.Config().StrictTable)

	r.mu.Lock()
	r.strict = true
	r.mu.Unlock()

	plain := MustModel("Plain", Extends(base), Table(true),
		Attr("id", Int(), Field(PrimaryKey(true))),
	)
	assert.True(t, *plain.Config().StrictTable, "registry default reaches subclasses of earlier bases")
	assert.Equal(t, ExtraIgnore, plain.Config().Extra)

	pinned := MustModel("Pinned", Extends(strictBase), Table(true),
		Attr("id", Int(), Field(PrimaryKey(true))),
	)
	assert.False(t, *pinned.Config().StrictTable, "a value set on a base wins over the registry default")
	assert.Equal(t, ExtraForbid, pinned.Config().Extra)

	own := MustModel("Own", Extends(strictBase), WithConfig(ModelConfig{Extra: ExtraAllow}))
	assert.Equal(t, ExtraAllow, own.Config().Extra)
	assert.True(t, *own.Config().ReadFromAttributes)
}

func TestSetWritesPersistenceStateFirst(t *testing.T) {
	h := declareHeroes(t, WithConfig(ModelConfig{ValidateAssignment: Bool(true)}))
	inst := h.newHero(t, "Deadpond", "Dive Wilson")

	var seen []any
	h.hero.Mapper().Listen(mapping.EventSet, "age", func(ev mapping.Event) {
		v, _ := ev.State.Value("age")
		seen = append(seen, v)
	})

	require.NoError(t, inst.Set("age", "42"))
	assert.Equal(t, []any{"42"}, seen)
	assert.Equal(t, int64(42), inst.MustGet("age"))
	v, _ := inst.State().Value("age")
	assert.Equal(t, int64(42), v)

	err := inst.Set("age", "old")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, int64(42), inst.MustGet("age"))
	v, _ = inst.State().Value("age")
	assert.Equal(t, int64(42), v)
}

func TestSetRecordsValidatedValueInHistory(t *testing.T) {
	h := declareHeroes(t, WithConfig(ModelConfig{ValidateAssignment: Bool(true)}))
	inst := h.newHero(t, "Deadpond", "Dive Wilson")

	require.NoError(t, inst.Set("age", "42"))
	change := inst.State().Change("age")
	require.NotNil(t, change)
	assert.Equal(t, int64(42), change.NewValue)

	inst.State().Commit()
	assert.Equal(t, int64(42), inst.State().Committed("age"))
	assert.Empty(t, inst.State().ChangedAttrs())

	require.NoError(t, inst.Set("age", "42"))
	assert.Empty(t, inst.State().ChangedAttrs(), "same value in another input form is not a change")
	assert.False(t, inst.State().Modified())

	require.NoError(t, inst.Set("age", 43))
	assert.Equal(t, []string{"age"}, inst.State().ChangedAttrs())
	assert.Equal(t, int64(43), inst.State().Change("age").NewValue)
	assert.Equal(t, int64(42), inst.State().Change("age").OldValue)
}

func TestSetImmutableField(t *testing.T) {
	_, base := newBase(t)
	m := MustModel("Token", Extends(base),
		Attr("value", String(), Field(AllowMutation(false))),
	)
	inst := m.MustNew(map[string]any{"value": "abc"})

	err := inst.Set("value", "def")
	require.Error(t, err)
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{validation.CodeImmutable}, ve.Codes())
	assert.Equal(t, "abc", inst.MustGet("value"))
}

func TestSetRelationshipSkipsValidation(t *testing.T) {
	h := declareHeroes(t, WithConfig(ModelConfig{ValidateAssignment: Bool(true)}))
	deadpond := h.newHero(t, "Deadpond", "Dive Wilson")
	team, err := h.team.New(map[string]any{"name": "Z-Force", "headquarters": "Sister Margaret's Bar"})
	require.NoError(t, err)

	require.NoError(t, deadpond.Set("team", team))
	assert.Same(t, team, deadpond.MustGet("team"))
	assert.Equal(t, []*Instance{deadpond}, team.MustGet("heroes"))
	assert.NotContains(t, deadpond.FieldsSet(), "team")

	require.NoError(t, deadpond.Set("team", nil))
	assert.Nil(t, deadpond.MustGet("team"))
	assert.Empty(t, team.MustGet("heroes"))

	err = deadpond.Set("team", "Z-Force")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSetInternalAndUnknownKeys(t *testing.T) {
	h := declareHeroes(t)
	inst := h.newHero(t, "Deadpond", "Dive Wilson")

	require.NoError(t, inst.Set("_sa_instance_state", "bookkeeping"))
	assert.Equal(t, "bookkeeping", inst.MustGet("_sa_instance_state"))
	assert.NotContains(t, inst.Dump(DumpOptions{}), "_sa_instance_state")
	assert.NotContains(t, inst.FieldsSet(), "_sa_instance_state")

	err := inst.Set("power", "healing")
	assert.ErrorIs(t, err, ErrUnknownAttribute)
	_, err = inst.Get("power")
	assert.ErrorIs(t, err, ErrUnknownAttribute)

	read := MustModel("HeroRead", Extends(h.hero))
	r := read.MustNew(map[string]any{"name": "Deadpond", "secret_name": "Dive Wilson"})
	assert.ErrorIs(t, r.Set("team", nil), ErrUnknownAttribute)

	loose := MustModel("Loose", Extends(h.base), WithConfig(ModelConfig{Extra: ExtraAllow}),
		Attr("name", String()),
	)
	l := loose.MustNew(map[string]any{"name": "x", "color": "red"})
	assert.Equal(t, "red", l.MustGet("color"))
	require.NoError(t, l.Set("size", 3))
	assert.Equal(t, map[string]any{"name": "x", "color": "red", "size": 3}, l.Dump(DumpOptions{}))
}

func TestRelationshipsOnNonTableClasses(t *testing.T) {
	_, base := newBase(t)
	m := MustModel("Draft", Extends(base),
		Attr("name", String()),
		Attr("team", Optional(Ref("Team")), Relationship()),
	)
	inst := m.MustNew(map[string]any{"name": "x"})
	assert.ErrorIs(t, inst.Set("team", nil), ErrConfiguration)
	_, err := inst.Get("team")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDump(t *testing.T) {
	h := declareHeroes(t)
	inst := h.newHero(t, "Deadpond", "Dive Wilson")
	team := h.team.MustNew(map[string]any{"name": "Z-Force", "headquarters": "Sister Margaret's Bar"})
	require.NoError(t, inst.Set("team", team))

	assert.Equal(t, map[string]any{
		"id": nil, "name": "Deadpond", "secret_name": "Dive Wilson", "age": nil, "team_id": nil,
	}, inst.Dump(DumpOptions{}))
	assert.Equal(t, map[string]any{"name": "Deadpond", "secret_name": "Dive Wilson"},
		inst.Dump(DumpOptions{ExcludeUnset: true}))
	assert.Equal(t, map[string]any{"name": "Deadpond", "secret_name": "Dive Wilson"},
		inst.Dump(DumpOptions{ExcludeNone: true}))
	assert.Equal(t, map[string]any{"name": "Deadpond"},
		inst.Dump(DumpOptions{Include: []string{"name"}}))
	assert.Equal(t, map[string]any{"id": nil, "name": "Deadpond", "age": nil, "team_id": nil},
		inst.Dump(DumpOptions{Exclude: []string{"secret_name"}}))

	withTeam := inst.Dump(DumpOptions{Include: []string{"name", "team"}})
	assert.Equal(t, map[string]any{
		"name": "Deadpond",
		"team": map[string]any{"id": nil, "name": "Z-Force", "headquarters": "Sister Margaret's Bar"},
	}, withTeam)

	b, err := inst.DumpJSON(DumpOptions{})
	require.NoError(t, err)
	assert.Equal(t, `{"id":null,"name":"Deadpond","secret_name":"Dive Wilson","age":null,"team_id":null}`, string(b))

	assert.Equal(t, `Hero(id=None, name="Deadpond", secret_name="Dive Wilson", age=None, team_id=None)`, inst.String())
}

func TestDumpRoundTrip(t *testing.T) {
	h := declareHeroes(t)
	inst := h.hero.MustNew(map[string]any{"name": "Rusty-Man", "secret_name": "Tommy Sharp", "age": 48})
	team := h.team.MustNew(map[string]any{"name": "Preventers", "headquarters": "Sharp Tower"})
	require.NoError(t, inst.Set("team", team))
	require.NoError(t, inst.Set("_sa_marker", "internal"))

	dumped := inst.Dump(DumpOptions{})
	assert.NotContains(t, dumped, "team")
	assert.NotContains(t, dumped, "_sa_marker")

	rebuilt, err := h.hero.New(dumped)
	require.NoError(t, err)
	assert.Equal(t, dumped, rebuilt.Dump(DumpOptions{}))
	assert.Nil(t, rebuilt.MustGet("team"))
	assert.Nil(t, rebuilt.ValidationErrors())

	b, err := inst.DumpJSON(DumpOptions{})
	require.NoError(t, err)
	parsed, err := h.hero.ParseJSON(b)
	require.NoError(t, err)
	assert.Equal(t, dumped, parsed.Dump(DumpOptions{}))
	assert.Nil(t, parsed.MustGet("team"))
}

func TestDumpFieldFlags(t *testing.T) {
	_, base := newBase(t)
	m := MustModel("User", Extends(base),
		Attr("name", String(), Field(Alias("userName"))),
		Attr("password", String(), Field(Exclude(), Repr(false))),
		Attr("role", String(), Field(Default("member"), Include())),
	)
	inst, err := m.New(map[string]any{"userName": "ana", "password": "secret"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"name": "ana", "role": "member"}, inst.Dump(DumpOptions{}))
	assert.Equal(t, map[string]any{"userName": "ana", "role": "member"}, inst.Dump(DumpOptions{ByAlias: true}))
	assert.Equal(t, map[string]any{"name": "ana"}, inst.Dump(DumpOptions{ExcludeDefaults: true}))
	assert.Equal(t, map[string]any{"name": "ana", "role": "member"}, inst.Dump(DumpOptions{Include: []string{"name"}}))
	assert.Equal(t, `User(name="ana", role="member")`, inst.String())
}

func TestNestedModelField(t *testing.T) {
	_, base := newBase(t)
	power := MustModel("Power", Extends(base), Attr("name", String()))
	mission := MustModel("Mission", Extends(base),
		Attr("code", String()),
		Attr("powers", List(Ref("Power"))),
	)

	inst, err := mission.New(map[string]any{
		"code":   "m1",
		"powers": []any{map[string]any{"name": "healing"}, power.MustNew(map[string]any{"name": "strength"})},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"code":   "m1",
		"powers": []any{map[string]any{"name": "healing"}, map[string]any{"name": "strength"}},
	}, inst.Dump(DumpOptions{}))

	_, err = mission.New(map[string]any{"code": "m2", "powers": []any{map[string]any{}}})
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields(), "powers.0.name")

	js := mission.JSONSchema()
	assert.Equal(t, "Mission", js["title"])
	assert.Contains(t, js, "definitions")
}

func TestValidate(t *testing.T) {
	h := declareHeroes(t)
	inst := h.newHero(t, "Deadpond", "Dive Wilson")

	cp, err := h.hero.Validate(inst)
	require.NoError(t, err)
	assert.NotSame(t, inst, cp)
	assert.Equal(t, inst.Dump(DumpOptions{}), cp.Dump(DumpOptions{}))

	same := MustModel("Same", Extends(h.base), WithConfig(ModelConfig{CopyOnValidate: Bool(false)}),
		Attr("name", String()),
	)
	s := same.MustNew(map[string]any{"name": "x"})
	got, err := same.Validate(s)
	require.NoError(t, err)
	assert.Same(t, s, got)

	closed := MustModel("Closed", Extends(h.base), WithConfig(ModelConfig{ReadFromAttributes: Bool(false)}),
		Attr("name", String()),
	)
	_, err = closed.Validate(42)
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{validation.CodeInvalidType}, ve.Codes())
	assert.Contains(t, ve.Fields(), "__root__")
	_, err = closed.FromORM(map[string]any{"name": "x"}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

type heroRow struct {
	Name       string `json:"name"`
	SecretName string `json:"secret_name"`
	Age        int    `json:"age"`
}

func TestFromORM(t *testing.T) {
	h := declareHeroes(t)
	read := MustModel("HeroRead", Extends(h.hero))

	inst, err := read.FromORM(heroRow{Name: "Deadpond", SecretName: "Dive Wilson", Age: 30}, map[string]any{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(7), inst.MustGet("id"))
	assert.Equal(t, int64(30), inst.MustGet("age"))

	table := h.newHero(t, "Rusty-Man", "Tommy Sharp")
	require.NoError(t, table.Set("id", int64(3)))
	inst, err = read.Validate(table)
	require.NoError(t, err)
	assert.Equal(t, int64(3), inst.MustGet("id"))
	assert.Equal(t, "Rusty-Man", inst.MustGet("name"))

	_, err = read.FromORM(heroRow{Name: "Deadpond"}, map[string]any{"age": "old"})
	assert.ErrorIs(t, err, ErrValidation)

	var row heroRow
	require.NoError(t, inst.Decode(&row))
	assert.Equal(t, heroRow{Name: "Rusty-Man", SecretName: "Tommy Sharp"}, row)
}

func TestParse(t *testing.T) {
	_, base := newBase(t)
	create := MustModel("HeroCreate", Extends(base),
		Attr("name", String()),
		Attr("secret_name", String()),
		Attr("age", Optional(Int()), Field(Default(nil))),
	)

	inst, err := create.ParseJSON([]byte(`{"name":"Deadpond","secret_name":"Dive Wilson","age":"35"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(35), inst.MustGet("age"))

	inst, err = create.ParseYAML([]byte("name: Rusty-Man\nsecret_name: Tommy Sharp\n"))
	require.NoError(t, err)
	assert.Equal(t, "Rusty-Man", inst.MustGet("name"))
	assert.Nil(t, inst.MustGet("age"))

	inst, err = create.ParseObj(map[string]any{"name": "Spider-Boy"}, map[string]any{"secret_name": "Pedro Parqueador"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "secret_name"}, inst.FieldsSet())

	_, err = create.ParseJSON([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = create.ParseObj("Deadpond", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCopy(t *testing.T) {
	h := declareHeroes(t)
	inst := h.newHero(t, "Deadpond", "Dive Wilson")

	cp, err := inst.Copy(map[string]any{"age": int64(48)})
	require.NoError(t, err)
	assert.Equal(t, "Deadpond", cp.MustGet("name"))
	assert.Equal(t, int64(48), cp.MustGet("age"))
	assert.Nil(t, inst.MustGet("age"))
	assert.NotSame(t, inst.State(), cp.State())
}

func TestFieldValidators(t *testing.T) {
	_, base := newBase(t)
	m := MustModel("Signup", Extends(base),
		Attr("name", String()),
		FieldValidator("name", func(v any, _ map[string]any) (any, error) {
			if v == "" {
				return nil, errors.New("name must not be empty")
			}
			return v, nil
		}),
	)
	_, err := m.New(map[string]any{"name": ""})
	ve, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{validation.CodeValueError}, ve.Codes())

	_, err = NewModel("Broken", Extends(base),
		Attr("name", String()),
		FieldValidator("missing", func(v any, _ map[string]any) (any, error) { return v, nil }),
	)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLinkModelMustBeTable(t *testing.T) {
	_, base := newBase(t)
	link := MustModel("HeroTeamLink", Extends(base),
		Attr("team_id", Optional(Int())),
		Attr("hero_id", Optional(Int())),
	)
	_, err := NewModel("Team", Extends(base), Table(true),
		Attr("id", Optional(Int()), Field(Default(nil), PrimaryKey(true))),
		Attr("heroes", List(Ref("Hero")), Relationship(LinkModel(link))),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "couldn't find the secondary table for model HeroTeamLink")
}

func TestForwardReferenceResolvesOnFirstInstance(t *testing.T) {
	_, base := newBase(t)
	team := MustModel("Team", Extends(base), Table(true),
		Attr("id", Optional(Int()), Field(Default(nil), PrimaryKey(true))),
		Attr("heroes", List(Ref("Hero")), Relationship(BackPopulates("team"))),
	)

	_, err := team.Construct()
	assert.ErrorIs(t, err, ErrConfiguration)

	hero := MustModel("Hero", Extends(base), Table(true),
		Attr("id", Optional(Int()), Field(Default(nil), PrimaryKey(true))),
		Attr("team_id", Optional(Int()), Field(Default(nil), ForeignKey("team.id"))),
		Attr("team", Optional(Ref("Team")), Relationship(BackPopulates("heroes"))),
	)
	_, err = team.Construct()
	require.NoError(t, err)

	assert.Equal(t, mapping.OneToMany, team.Mapper().Relationship("heroes").Direction)
	p := hero.Mapper().Relationship("team")
	assert.Equal(t, mapping.ManyToOne, p.Direction)
	assert.False(t, p.IsCollection())
}

func declareGhost(t *testing.T, base *Model) {
	t.Helper()
	_, err := NewModel("Ghost", Extends(base), Table(true),
		Attr("id", Int(), Field(PrimaryKey(true))),
	)
	require.NoError(t, err)
}

func TestRegistryHoldsClassesWeakly(t *testing.T) {
	r, base := newBase(t)
	declareGhost(t, base)

	assert.Eventually(t, func() bool {
		runtime.GC()
		return r.Model("Ghost") == nil && r.Mapping().Mapper("Ghost") == nil
	}, 2*time.Second, 10*time.Millisecond)

	declareGhost(t, base)
	assert.NotNil(t, r.Model("Ghost"))
	assert.Equal(t, []string{"ghost"}, tableNames(t, r))
	runtime.KeepAlive(base)
}

func TestRegistryReset(t *testing.T) {
	h := declareHeroes(t)
	assert.Len(t, h.r.Models(), 3)
	assert.Same(t, h.hero, h.r.Model("Hero"))

	h.r.Reset()
	assert.Empty(t, h.r.Models())
	assert.Empty(t, h.r.MetaData().Tables())

	_, err := NewModel("Hero", Extends(h.base), Table(true),
		Attr("id", Int(), Field(PrimaryKey(true))),
	)
	assert.NoError(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	prev := DefaultRegistry()
	t.Cleanup(func() { defaultRegistry.Store(prev) })

	r := ResetDefaultRegistry(WithLogger(logger.Discard))
	assert.NotSame(t, prev, r)
	assert.Same(t, r, DefaultRegistry())

	m := MustModel("Widget", Table(true), Attr("id", Int(), Field(PrimaryKey(true))))
	assert.Same(t, r, m.Registry())
	assert.NotNil(t, r.MetaData().Table("widget"))
}

func TestApplySettings(t *testing.T) {
	r, base := newBase(t)
	s := config.Default()
	s.Naming.Strategy = "snake"
	s.Naming.TablePrefix = "app_"
	s.Log.Level = "silent"
	s.Validation.StrictTable = true
	require.NoError(t, r.ApplySettings(s))

	m := MustModel("HeroTeamLink", Extends(base), Table(true),
		Attr("id", Int(), Field(PrimaryKey(true))),
	)
	assert.Equal(t, "app_hero_team_link", m.Table().Name)
	assert.True(t, *m.Config().StrictTable)

	s.Log.Backend = "syslog"
	assert.ErrorIs(t, r.ApplySettings(s), ErrConfiguration)
}
