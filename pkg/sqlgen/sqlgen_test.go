package sqlgen_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/qsql/internal/testutil"
	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/dialects/mysql"
	"github.com/leapstack-labs/qsql/pkg/dialects/postgres"
	"github.com/leapstack-labs/qsql/pkg/dialects/sqlite"
	"github.com/leapstack-labs/qsql/pkg/dialects/sqlserver"
	"github.com/leapstack-labs/qsql/pkg/parser"
	"github.com/leapstack-labs/qsql/pkg/resolve"
	"github.com/leapstack-labs/qsql/pkg/sqlgen"
)

// generate parses, resolves and generates src. Resolution errors are ignored
// so that degraded output can be tested.
func generate(t *testing.T, d *dialect.Dialect, src string, opts *sqlgen.Options) (*sqlgen.Result, error) {
	t.Helper()
	a, root, err := parser.Parse(src)
	require.NoError(t, err)
	stmt, err := ast.Build(a, root)
	require.NoError(t, err)

	info, _ := resolve.Resolve(stmt, &resolve.Config{
		Schema: testutil.StudyCatalog(t),
		Logger: testutil.NewTestLogger(t),
	})
	if opts == nil {
		opts = &sqlgen.Options{}
	}
	opts.Dialect = d
	opts.Logger = testutil.NewTestLogger(t)
	return sqlgen.Generate(stmt, info, opts)
}

func mustGenerate(t *testing.T, d *dialect.Dialect, src string, opts *sqlgen.Options) *sqlgen.Result {
	t.Helper()
	res, err := generate(t, d, src, opts)
	require.NoError(t, err)
	return res
}

func TestGenerate_Postgres(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple select",
			input:    "SELECT age, gender FROM demographics WHERE age > 30",
			expected: "SELECT demographics.age, demographics.gender FROM study.demographics AS demographics WHERE demographics.age > 30",
		},
		{
			name:  "join with aliases",
			input: "SELECT d.age, v.score FROM demographics d JOIN visits v ON d.participantid = v.participantid WHERE v.site = 'A' AND (d.age < 20 OR d.age > 60)",
			expected: "SELECT d.age, v.score FROM study.demographics AS d INNER JOIN study.visits AS v ON d.participantid = v.participantid " +
				"WHERE v.site = 'A' AND (d.age < 20 OR d.age > 60)",
		},
		{
			name:     "membership conjuncts are parenthesized",
			input:    "SELECT age FROM demographics WHERE gender IN ('M', 'F') AND age NOT BETWEEN 1 AND 10",
			expected: "SELECT demographics.age FROM study.demographics AS demographics WHERE (demographics.gender IN ('M', 'F')) AND (demographics.age NOT BETWEEN 1 AND 10)",
		},
		{
			name:     "expanded star",
			input:    "SELECT * FROM lists.sites",
			expected: "SELECT sites.site, sites.country FROM lists.sites AS sites",
		},
		{
			name:     "aliases are substituted in having and order by",
			input:    "SELECT gender, count(participantid) AS n FROM demographics GROUP BY gender HAVING n > 5 ORDER BY n DESC, gender LIMIT 10",
			expected: "SELECT demographics.gender, COUNT(demographics.participantid) AS n FROM study.demographics AS demographics GROUP BY demographics.gender HAVING COUNT(demographics.participantid) > 5 ORDER BY COUNT(demographics.participantid) DESC, demographics.gender LIMIT 10",
		},
		{
			name:     "derived table and scalar sub-query",
			input:    "SELECT s.n FROM (SELECT count(participantid) AS n FROM visits) s WHERE s.n > (SELECT max(age) FROM demographics)",
			expected: "SELECT s.n FROM (SELECT COUNT(visits.participantid) AS n FROM study.visits AS visits) AS s WHERE s.n > (SELECT MAX(demographics.age) AS expr1 FROM study.demographics AS demographics)",
		},
		{
			name:     "methods render through the dialect",
			input:    "SELECT ucase(gender) AS g, year(startdate) AS y FROM demographics",
			expected: "SELECT UPPER(demographics.gender) AS g, EXTRACT(YEAR FROM demographics.startdate) AS y FROM study.demographics AS demographics",
		},
		{
			name:     "aggregates",
			input:    "SELECT stddev(age) AS s, variance(age) AS v, group_concat(DISTINCT gender) AS g FROM demographics",
			expected: "SELECT STDDEV_SAMP(demographics.age) AS s, VAR_SAMP(demographics.age) AS v, STRING_AGG(DISTINCT demographics.gender::text, ',') AS g FROM study.demographics AS demographics",
		},
		{
			name:     "ifdefined",
			input:    "SELECT ifdefined(d.nosuch) AS x, ifdefined(d.age) AS y FROM demographics d",
			expected: "SELECT NULL AS x, d.age AS y FROM study.demographics AS d",
		},
		{
			name:     "date literal",
			input:    "SELECT age FROM demographics WHERE startdate >= {d '2020-01-31'}",
			expected: "SELECT demographics.age FROM study.demographics AS demographics WHERE demographics.startdate >= CAST('2020-01-31' AS DATE)",
		},
		{
			name:     "boolean and expression items",
			input:    "SELECT TRUE AS t, age + 1 FROM demographics",
			expected: "SELECT TRUE AS t, demographics.age + 1 AS expr2 FROM study.demographics AS demographics",
		},
		{
			name:     "comparison operand of a bitwise operator",
			input:    "SELECT age & (3 = 1) AS b FROM demographics",
			expected: "SELECT demographics.age & (3 = 1) AS b FROM study.demographics AS demographics",
		},
		{
			name:     "comparison of a comparison",
			input:    "SELECT age FROM demographics WHERE (age = 1) = TRUE",
			expected: "SELECT demographics.age FROM study.demographics AS demographics WHERE (demographics.age = 1) = TRUE",
		},
		{
			name:     "bitwise operand of arithmetic",
			input:    "SELECT (age & 3) + 1 AS b FROM demographics",
			expected: "SELECT (demographics.age & 3) + 1 AS b FROM study.demographics AS demographics",
		},
		{
			name:     "left operand of a non-associative operator",
			input:    "SELECT (age - 1) - 2 AS a, age - (1 - 2) AS b FROM demographics",
			expected: "SELECT demographics.age - 1 - 2 AS a, demographics.age - (1 - 2) AS b FROM study.demographics AS demographics",
		},
		{
			name:     "non-literal limit applies no limit",
			input:    "PARAMETERS (N INTEGER DEFAULT 5) SELECT age FROM demographics LIMIT N",
			expected: "SELECT demographics.age FROM study.demographics AS demographics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustGenerate(t, postgres.Postgres, tt.input, nil)
			assert.Equal(t, tt.expected, res.SQL)
		})
	}
}

func TestGenerate_Parameters(t *testing.T) {
	input := `PARAMETERS (MinAge INTEGER REQUIRED, Label VARCHAR DEFAULT 'x')
SELECT age, Label AS tag FROM demographics WHERE age >= MinAge AND age <= MinAge + 10`

	t.Run("runtime value converted to declared type", func(t *testing.T) {
		res := mustGenerate(t, postgres.Postgres, input, &sqlgen.Options{
			Params: map[string]any{"minage": "30"},
		})
		assert.Equal(t, "SELECT demographics.age, $1 AS tag FROM study.demographics AS demographics WHERE demographics.age >= $2 AND demographics.age <= $3 + 10", res.SQL)
		assert.Equal(t, []any{"x", int64(30), int64(30)}, res.Args)
	})

	t.Run("question placeholders follow text order", func(t *testing.T) {
		res := mustGenerate(t, sqlite.SQLite, input, &sqlgen.Options{
			Params: map[string]any{"MINAGE": 40, "label": "y"},
		})
		assert.Equal(t, 3, strings.Count(res.SQL, "?"))
		assert.Equal(t, []any{"y", int64(40), int64(40)}, res.Args)
	})

	t.Run("missing required parameter", func(t *testing.T) {
		_, err := generate(t, postgres.Postgres, input, nil)
		require.ErrorIs(t, err, diag.ErrMissingParameter)
		assert.Contains(t, err.Error(), "MinAge")
	})

	t.Run("value that does not convert", func(t *testing.T) {
		_, err := generate(t, postgres.Postgres, input, &sqlgen.Options{
			Params: map[string]any{"minage": "old"},
		})
		require.ErrorIs(t, err, diag.ErrMalformedLiteral)
	})

	t.Run("fractional value for an integer", func(t *testing.T) {
		_, err := generate(t, postgres.Postgres, input, &sqlgen.Options{
			Params: map[string]any{"minage": 2.7},
		})
		require.ErrorIs(t, err, diag.ErrMalformedLiteral)
		assert.Contains(t, err.Error(), "whole number")

		res := mustGenerate(t, postgres.Postgres, input, &sqlgen.Options{
			Params: map[string]any{"minage": 30.0},
		})
		assert.Equal(t, []any{"x", int64(30), int64(30)}, res.Args)
	})

	t.Run("optional parameter without default is null", func(t *testing.T) {
		res := mustGenerate(t, postgres.Postgres, "PARAMETERS (G VARCHAR) SELECT age FROM demographics WHERE gender = G", nil)
		assert.Equal(t, "SELECT demographics.age FROM study.demographics AS demographics WHERE demographics.gender = NULL", res.SQL)
		assert.Empty(t, res.Args)
	})

	t.Run("timestamp parameter", func(t *testing.T) {
		res := mustGenerate(t, postgres.Postgres, "PARAMETERS (Since TIMESTAMP) SELECT visit FROM visits WHERE visitdate >= Since", &sqlgen.Options{
			Params: map[string]any{"since": "2024-01-31 10:00"},
		})
		require.Len(t, res.Args, 1)
		assert.Equal(t, time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC), res.Args[0])
	})
}

func TestGenerate_Session(t *testing.T) {
	res := mustGenerate(t, sqlserver.SQLServer, "SELECT userid() AS u, username() AS n FROM demographics", &sqlgen.Options{
		Session: map[string]any{"UserId": 7},
	})
	assert.Equal(t, "SELECT @p1 AS u, NULL AS n FROM study.demographics AS demographics", res.SQL)
	assert.Equal(t, []any{7}, res.Args)
}

func TestGenerate_SQLServer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "top and numeric booleans",
			input:    "SELECT gender, TRUE AS t FROM demographics ORDER BY gender LIMIT 10",
			expected: "SELECT TOP 10 demographics.gender, 1 AS t FROM study.demographics AS demographics ORDER BY demographics.gender",
		},
		{
			name:     "concatenation with plus",
			input:    "SELECT gender || '-' || site AS label FROM visits v, demographics",
			expected: "SELECT demographics.gender + '-' + v.site AS label FROM study.visits AS v, study.demographics AS demographics",
		},
		{
			name:     "cast types",
			input:    "SELECT CAST(age AS VARCHAR) AS a, CAST(age AS DOUBLE) AS b FROM demographics",
			expected: "SELECT CAST(demographics.age AS NVARCHAR(4000)) AS a, CAST(demographics.age AS FLOAT) AS b FROM study.demographics AS demographics",
		},
		{
			name:     "limited union is wrapped",
			input:    "SELECT site FROM visits UNION SELECT site FROM lists.sites ORDER BY site LIMIT 5",
			expected: "SELECT TOP 5 * FROM ((SELECT visits.site FROM study.visits AS visits) UNION (SELECT sites.site FROM lists.sites AS sites)) AS combined ORDER BY site",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustGenerate(t, sqlserver.SQLServer, tt.input, nil)
			assert.Equal(t, tt.expected, res.SQL)
		})
	}
}

func TestGenerate_Concat(t *testing.T) {
	input := "SELECT gender || '-' || age AS label FROM demographics"

	tests := []struct {
		dialect  *dialect.Dialect
		expected string
	}{
		{postgres.Postgres, "SELECT demographics.gender || '-' || demographics.age AS label FROM study.demographics AS demographics"},
		{mysql.MySQL, "SELECT CONCAT(demographics.gender, '-', demographics.age) AS label FROM study.demographics AS demographics"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mustGenerate(t, tt.dialect, input, nil).SQL)
		})
	}
}

func TestGenerate_SetOperations(t *testing.T) {
	input := "SELECT site FROM visits UNION SELECT site FROM lists.sites ORDER BY site LIMIT 5"

	t.Run("parenthesized members", func(t *testing.T) {
		res := mustGenerate(t, postgres.Postgres, input, nil)
		assert.Equal(t, "(SELECT visits.site FROM study.visits AS visits) UNION (SELECT sites.site FROM lists.sites AS sites) ORDER BY site LIMIT 5", res.SQL)
	})

	t.Run("sub-query members", func(t *testing.T) {
		res := mustGenerate(t, sqlite.SQLite, input, nil)
		assert.Equal(t, "SELECT * FROM (SELECT visits.site FROM study.visits AS visits) AS set1 UNION SELECT * FROM (SELECT sites.site FROM lists.sites AS sites) AS set2 ORDER BY site LIMIT 5", res.SQL)
	})

	t.Run("custom resolver", func(t *testing.T) {
		var got []ast.SetOp
		res := mustGenerate(t, postgres.Postgres, "SELECT site FROM visits EXCEPT SELECT site FROM lists.sites", &sqlgen.Options{
			SetOps: sqlgen.SetOperationFunc(func(_ *dialect.Dialect, members []string, ops []ast.SetOp) string {
				got = ops
				return strings.Join(members, " MINUS ")
			}),
		})
		assert.Equal(t, []ast.SetOp{ast.SetExcept}, got)
		assert.Equal(t, "SELECT visits.site FROM study.visits AS visits MINUS SELECT sites.site FROM lists.sites AS sites", res.SQL)
	})
}

func TestGenerate_RecursiveWith(t *testing.T) {
	input := "WITH n AS (SELECT 1 AS i UNION ALL SELECT i + 1 AS i FROM n WHERE i < 5) SELECT i FROM n"

	res := mustGenerate(t, postgres.Postgres, input, nil)
	assert.Equal(t, "WITH RECURSIVE n AS ((SELECT 1 AS i) UNION ALL (SELECT n.i + 1 AS i FROM n WHERE n.i < 5)) SELECT n.i FROM n", res.SQL)

	res = mustGenerate(t, sqlserver.SQLServer, input, nil)
	assert.True(t, strings.HasPrefix(res.SQL, "WITH n AS ("), res.SQL)
}

func TestGenerate_Pivot(t *testing.T) {
	t.Run("explicit values", func(t *testing.T) {
		res := mustGenerate(t, postgres.Postgres,
			"SELECT site, visit, max(score) AS best FROM visits GROUP BY site, visit PIVOT best BY visit IN (1, 2 AS two)", nil)
		assert.Equal(t, `SELECT site, MAX(CASE WHEN visit = 1 THEN best END) AS "1::best", MAX(CASE WHEN visit = 2 THEN best END) AS "two::best" `+
			"FROM (SELECT visits.site, visits.visit, MAX(visits.score) AS best FROM study.visits AS visits GROUP BY visits.site, visits.visit) AS pivot GROUP BY site",
			res.SQL)
		assert.Empty(t, res.Args)
	})

	t.Run("supplied values are bound", func(t *testing.T) {
		res := mustGenerate(t, postgres.Postgres,
			"SELECT site, visit, max(score) AS best FROM visits GROUP BY site, visit PIVOT best BY visit", &sqlgen.Options{
				PivotValues: map[string][]any{"Visit": {1, 2}},
			})
		assert.Contains(t, res.SQL, `MAX(CASE WHEN visit = $1 THEN best END) AS "1::best"`)
		assert.Contains(t, res.SQL, `MAX(CASE WHEN visit = $2 THEN best END) AS "2::best"`)
		assert.Equal(t, []any{1, 2}, res.Args)
	})

	t.Run("other aggregates are carried, not grouped", func(t *testing.T) {
		res := mustGenerate(t, postgres.Postgres,
			"SELECT site, visit, max(score) AS best, count(score) AS n FROM visits GROUP BY site, visit PIVOT best BY visit IN (1 AS one, 2)", nil)
		assert.Equal(t, `SELECT site, MAX(n) AS n, MAX(CASE WHEN visit = 1 THEN best END) AS "one::best", MAX(CASE WHEN visit = 2 THEN best END) AS "2::best" `+
			"FROM (SELECT visits.site, visits.visit, MAX(visits.score) AS best, COUNT(visits.score) AS n FROM study.visits AS visits GROUP BY visits.site, visits.visit) AS pivot GROUP BY site",
			res.SQL)
	})

	t.Run("unknown values", func(t *testing.T) {
		_, err := generate(t, postgres.Postgres,
			"SELECT site, visit, max(score) AS best FROM visits GROUP BY site, visit PIVOT best BY visit", nil)
		require.ErrorIs(t, err, diag.ErrPivotValues)
	})
}

func TestGenerate_Contracts(t *testing.T) {
	t.Run("unsafe requires opt-in", func(t *testing.T) {
		_, err := generate(t, postgres.Postgres, "SELECT unsafe_sql('now()') AS t", nil)
		require.ErrorIs(t, err, diag.ErrUnsafeExpression)

		res := mustGenerate(t, postgres.Postgres, "SELECT unsafe_sql('now()') AS t", &sqlgen.Options{AllowUnsafe: true})
		assert.Equal(t, "SELECT now() AS t", res.SQL)
	})

	t.Run("unknown method renders an error marker", func(t *testing.T) {
		res := mustGenerate(t, postgres.Postgres, "SELECT frobnicate(age) AS f FROM demographics", nil)
		assert.Equal(t, "SELECT '#ERROR: unknown method frobnicate' AS f FROM study.demographics AS demographics", res.SQL)
	})

	t.Run("unresolved tree", func(t *testing.T) {
		a, root, err := parser.Parse("SELECT age FROM demographics")
		require.NoError(t, err)
		stmt, err := ast.Build(a, root)
		require.NoError(t, err)

		_, err = sqlgen.Generate(stmt, &resolve.Info{}, &sqlgen.Options{Dialect: postgres.Postgres})
		require.ErrorIs(t, err, diag.ErrUnresolvedField)
	})

	t.Run("unresolved limit bound", func(t *testing.T) {
		for _, d := range []*dialect.Dialect{postgres.Postgres, sqlserver.SQLServer} {
			_, err := generate(t, d, "SELECT age FROM demographics LIMIT p", nil)
			require.ErrorIs(t, err, diag.ErrUnresolvedField, d.Name)
			assert.Contains(t, err.Error(), "LIMIT p")
		}
	})

	t.Run("dialect required", func(t *testing.T) {
		_, err := sqlgen.Generate(&ast.Statement{}, &resolve.Info{}, &sqlgen.Options{})
		require.ErrorIs(t, err, sqlgen.ErrNoDialect)
	})
}
