package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/qsql/internal/testutil"
	"github.com/leapstack-labs/qsql/pkg/compiler"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/dialects/postgres"
	"github.com/leapstack-labs/qsql/pkg/parser"
	"github.com/leapstack-labs/qsql/pkg/sqlgen"
	"github.com/leapstack-labs/qsql/pkg/token"
)

func options(t *testing.T) *compiler.Options {
	return &compiler.Options{
		Schema: testutil.StudyCatalog(t),
		Logger: testutil.NewTestLogger(t),
	}
}

func TestParseAndResolve(t *testing.T) {
	t.Run("resolved tree", func(t *testing.T) {
		tr, err := compiler.ParseAndResolve("SELECT age FROM demographics WHERE age > 30", options(t))
		require.NoError(t, err)
		require.NotNil(t, tr)
		assert.NotEmpty(t, tr.ID)
		assert.Empty(t, tr.Errors)
		assert.NotEmpty(t, tr.Info.Fields)
	})

	t.Run("parse error passes through", func(t *testing.T) {
		tr, err := compiler.ParseAndResolve("SELECT FROM", options(t))
		assert.Nil(t, tr)
		var perr *parser.ParseError
		require.ErrorAs(t, err, &perr)
	})

	t.Run("semantic errors keep the tree", func(t *testing.T) {
		tr, err := compiler.ParseAndResolve("SELECT nope, frob(age) FROM demographics", options(t))
		require.Error(t, err)
		require.NotNil(t, tr)

		var errs diag.ErrorList
		require.ErrorAs(t, err, &errs)
		assert.True(t, errs.Has(diag.UnknownField))
		assert.True(t, errs.Has(diag.UnknownMethod))
		assert.Equal(t, errs, tr.Errors)
	})

	t.Run("compile ids are distinct", func(t *testing.T) {
		a, err := compiler.ParseAndResolve("SELECT 1 AS one", nil)
		require.NoError(t, err)
		b, err := compiler.ParseAndResolve("SELECT 1 AS one", nil)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestEmitSourceRoundTrip(t *testing.T) {
	inputs := []string{
		"select age, gender from demographics where age>30 and gender='F' order by age desc limit 5",
		"PARAMETERS (MinAge INTEGER DEFAULT 18) SELECT d.age FROM demographics d WHERE d.age >= MinAge",
		"WITH s AS (SELECT site FROM visits) SELECT site FROM s UNION ALL SELECT site FROM lists.sites",
		"SELECT site, visit, max(score) AS best FROM visits GROUP BY site, visit PIVOT best BY visit IN (1, 2)",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			tr, err := compiler.ParseAndResolve(input, options(t))
			require.NoError(t, err)
			first := compiler.EmitSource(tr)

			again, err := compiler.ParseAndResolve(first, options(t))
			require.NoError(t, err, first)
			assert.Equal(t, first, compiler.EmitSource(again))
		})
	}
}

func TestEmitSQL(t *testing.T) {
	tr, err := compiler.ParseAndResolve("PARAMETERS (MinAge INTEGER) SELECT age FROM demographics WHERE age >= MinAge", options(t))
	require.NoError(t, err)

	res, err := compiler.EmitSQL(tr, &sqlgen.Options{
		Dialect: postgres.Postgres,
		Params:  map[string]any{"minage": 21},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT demographics.age FROM study.demographics AS demographics WHERE demographics.age >= $1", res.SQL)
	assert.Equal(t, []any{int64(21)}, res.Args)

	_, err = compiler.EmitSQL(nil, &sqlgen.Options{Dialect: postgres.Postgres})
	require.ErrorIs(t, err, diag.ErrUnresolvedField)

	_, err = compiler.EmitSQL(tr, nil)
	require.ErrorIs(t, err, sqlgen.ErrNoDialect)
}

func TestEmitSQLDegradedMethod(t *testing.T) {
	tr, err := compiler.ParseAndResolve("SELECT frob(age) AS f FROM demographics", options(t))
	require.Error(t, err)

	res, err := compiler.EmitSQL(tr, &sqlgen.Options{Dialect: postgres.Postgres})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "'#ERROR: unknown method frob'")
}

func TestSyntaxCheck(t *testing.T) {
	tr, err := compiler.ParseAndResolve("SELECT site, visit, max(score) AS best FROM visits GROUP BY site PIVOT best BY visit IN (1)", options(t))
	require.NoError(t, err)

	errs := compiler.SyntaxCheck(tr)
	assert.True(t, errs.Has(diag.InvalidPivot))

	tr, err = compiler.ParseAndResolve("SELECT nope FROM demographics WHERE count(age) > 1", options(t))
	require.Error(t, err)
	all := compiler.Check(tr)
	assert.True(t, all.Has(diag.UnknownField))
	assert.True(t, all.Has(diag.AggregateInWhere))

	assert.Nil(t, compiler.Check(nil))
}

func TestMaterialize(t *testing.T) {
	src := "WITH recent AS (SELECT participantid, score FROM visits WHERE score > 1) SELECT count(participantid) AS n FROM recent"
	tr, err := compiler.ParseAndResolve(src, options(t))
	require.NoError(t, err)

	before, err := compiler.EmitSQL(tr, &sqlgen.Options{Dialect: postgres.Postgres})
	require.NoError(t, err)

	m, err := compiler.Materialize(tr, "RECENT")
	require.NoError(t, err)
	assert.NotEqual(t, tr.ID, m.ID)
	assert.NotEqual(t, tr.Root, m.Root)

	res, err := compiler.EmitSQL(m, &sqlgen.Options{Dialect: postgres.Postgres})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.SQL,
		") SELECT visits.participantid, visits.score FROM study.visits AS visits WHERE visits.score > 1"), res.SQL)

	// The original tree is untouched.
	after, err := compiler.EmitSQL(tr, &sqlgen.Options{Dialect: postgres.Postgres})
	require.NoError(t, err)
	assert.Equal(t, before.SQL, after.SQL)

	// Shared sub-trees are read-only while both trees hold them.
	a := tr.Arena
	params := a.Child(tr.Root, 0)
	require.Equal(t, token.PARAMETERS, a.Kind(params))
	assert.True(t, a.Shared(params))
	decl := a.NewNode(token.PARAM_DECL, "x", token.Position{})
	require.ErrorIs(t, a.AppendChild(params, decl), diag.ErrSharedNode)

	_, err = compiler.Materialize(tr, "missing")
	require.ErrorIs(t, err, diag.ErrUnresolvedField)
}

func TestPhaseLogging(t *testing.T) {
	logger, rec := testutil.NewLogRecorder(t)
	tr, err := compiler.ParseAndResolve("SELECT nope FROM demographics", &compiler.Options{
		Schema: testutil.StudyCatalog(t),
		Logger: logger,
	})
	require.Error(t, err)

	compiler.SyntaxCheck(tr)
	_, err = compiler.EmitSQL(tr, &sqlgen.Options{Dialect: postgres.Postgres})
	require.Error(t, err)

	phases := map[string]int64{}
	for _, r := range rec.Records("compile phase") {
		assert.Equal(t, tr.ID, r.Attrs["compile_id"])
		phases[r.Attrs["phase"].(string)] = r.Attrs["errors"].(int64)
	}
	assert.Equal(t, map[string]int64{"parse": 0, "resolve": 1, "validate": 0, "emit": 1}, phases)

	emit := rec.Records("compile phase")[3]
	assert.Equal(t, "postgres", emit.Attrs["dialect"])
}
