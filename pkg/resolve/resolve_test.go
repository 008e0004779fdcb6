package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/qsql/internal/testutil"
	"github.com/leapstack-labs/qsql/pkg/ast"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/parser"
	"github.com/leapstack-labs/qsql/pkg/resolve"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func resolveSource(t *testing.T, src string) (*ast.Statement, *resolve.Info, diag.ErrorList) {
	t.Helper()
	a, root, err := parser.Parse(src)
	require.NoError(t, err)
	stmt, err := ast.Build(a, root)
	require.NoError(t, err)
	info, errs := resolve.Resolve(stmt, &resolve.Config{
		Schema: testutil.StudyCatalog(t),
		Logger: testutil.NewTestLogger(t),
	})
	return stmt, info, errs
}

func items(stmt *ast.Statement) []*ast.SelectItem {
	return stmt.Body.(*ast.Select).Items
}

func codes(errs diag.ErrorList) []diag.Code {
	out := make([]diag.Code, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestResolveFields(t *testing.T) {
	stmt, info, errs := resolveSource(t, "SELECT d.age, gender FROM demographics d")
	require.Empty(t, errs)

	age := info.Fields[items(stmt)[0].X]
	require.NotNil(t, age)
	assert.Equal(t, "d", age.Relation.RefName())
	assert.Equal(t, "age", age.Column.Name)
	assert.Equal(t, types.Integer, info.TypeOf(items(stmt)[0].X))

	gender := info.Fields[items(stmt)[1].X]
	require.NotNil(t, gender)
	assert.Equal(t, resolve.RelTable, gender.Relation.Kind)
	assert.Equal(t, "study.demographics", gender.Relation.Source.String())
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []diag.Code
	}{
		{"unknown field", "SELECT nope FROM demographics", []diag.Code{diag.UnknownField}},
		{"unknown qualifier", "SELECT x.age FROM demographics d", []diag.Code{diag.UnknownField}},
		{"unknown column", "SELECT d.nope FROM demographics d", []diag.Code{diag.UnknownField}},
		{"unknown table absorbs its fields", "SELECT a, b FROM missing", []diag.Code{diag.UnknownTable}},
		{"ambiguous field", "SELECT participantid FROM demographics d, visits v", []diag.Code{diag.AmbiguousField}},
		{"duplicate table name", "SELECT d.age FROM demographics d, visits d", []diag.Code{diag.AmbiguousField}},
		{"unknown method", "SELECT frobnicate(age) FROM demographics", []diag.Code{diag.UnknownMethod}},
		{"arity", "SELECT round() FROM demographics", []diag.Code{diag.InvalidArguments}},
		{"several errors in one pass", "SELECT d.nope, frob(1) FROM demographics d JOIN missing m ON d.age = m.x",
			[]diag.Code{diag.UnknownTable, diag.UnknownField, diag.UnknownMethod}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, errs := resolveSource(t, tt.input)
			assert.ElementsMatch(t, tt.want, codes(errs))
		})
	}
}

func TestTypeInference(t *testing.T) {
	tests := []struct {
		expr      string
		want      types.Type
		aggregate bool
	}{
		{"count(*)", types.Integer, true},
		{"count(v.score)", types.Integer, true},
		{"count(DISTINCT v.site)", types.Integer, true},
		{"1.5 + 2", types.Double, false},
		{"d.age + 1", types.Integer, false},
		{"d.age * v.score", types.Double, false},
		{"min(d.startdate)", types.Date, true},
		{"avg(d.age)", types.Double, true},
		{"sum(d.age) + 1", types.Integer, true},
		{"d.gender || 'x'", types.Varchar, false},
		{"d.age > 3 AND v.site = 'a'", types.Boolean, false},
		{"v.site IN ('a', 'b')", types.Boolean, false},
		{"CASE WHEN d.age > 1 THEN 1 ELSE 2.5 END", types.Double, false},
		{"CAST(d.age AS VARCHAR)", types.Varchar, false},
		{"abs(v.score)", types.Double, false},
		{"upper(d.gender)", types.Varchar, false},
		{"now()", types.Timestamp, false},
		{"(SELECT max(s.country) FROM lists.sites s)", types.Varchar, false},
		{"-d.age", types.Integer, false},
		{"NULL", types.Null, false},
		{"DATE '2024-01-01'", types.Date, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			stmt, info, errs := resolveSource(t,
				"SELECT "+tt.expr+" AS x FROM demographics d JOIN visits v ON d.participantid = v.participantid")
			require.Empty(t, errs)
			x := items(stmt)[0].X
			assert.Equal(t, tt.want, info.TypeOf(x))
			assert.Equal(t, tt.aggregate, info.IsAggregate(x))
		})
	}
}

func TestInheritedAttrs(t *testing.T) {
	stmt, info, errs := resolveSource(t, "SELECT min(startdate) AS earliest FROM demographics")
	require.Empty(t, errs)
	tv := info.Types[items(stmt)[0].X]
	assert.Equal(t, types.Date, tv.Type)
	assert.Equal(t, "yyyy-MM-dd", tv.Attrs.Format)
	assert.Equal(t, "Start Date", tv.Attrs.Label)

	out := info.Outputs[stmt.Body]
	require.Len(t, out, 1)
	assert.Equal(t, "earliest", out[0].Name)
	assert.Equal(t, "yyyy-MM-dd", out[0].Attrs.Format)
}

func TestConstants(t *testing.T) {
	tests := []struct {
		expr     string
		constant bool
	}{
		{"1 + 2", true},
		{"'a' || 'b'", true},
		{"round(1.25, 1)", true},
		{"rand()", false},
		{"age + 1", false},
		{"MinAge * 2", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			stmt, info, errs := resolveSource(t, "PARAMETERS (MinAge INTEGER) SELECT "+tt.expr+" AS x FROM demographics")
			require.Empty(t, errs)
			assert.Equal(t, tt.constant, info.IsConstant(items(stmt)[0].X))
		})
	}
}

func TestResolveParameters(t *testing.T) {
	stmt, info, errs := resolveSource(t, "PARAMETERS (MinAge INTEGER, Since TIMESTAMP) SELECT age FROM demographics WHERE age > minage")
	require.Empty(t, errs)

	where := stmt.Body.(*ast.Select).Where[0].(*ast.Operation)
	p, ok := info.Params[where.Args[1]]
	require.True(t, ok)
	assert.Equal(t, "MinAge", p.Name)
	assert.Equal(t, types.Integer, info.TypeOf(where.Args[1]))
	assert.NotContains(t, info.Fields, where.Args[1])
}

func TestColumnsShadowParameters(t *testing.T) {
	stmt, info, errs := resolveSource(t, "PARAMETERS (Age INTEGER) SELECT age FROM demographics")
	require.Empty(t, errs)
	assert.Contains(t, info.Fields, items(stmt)[0].X)
	assert.NotContains(t, info.Params, items(stmt)[0].X)
}

func TestOrderByAlias(t *testing.T) {
	stmt, info, errs := resolveSource(t, "SELECT age * 2 AS age, gender FROM demographics ORDER BY age DESC, gender")
	require.Empty(t, errs)

	order := stmt.Body.(*ast.Select).OrderBy
	byAlias := info.Fields[order[0].X]
	require.NotNil(t, byAlias)
	assert.Nil(t, byAlias.Relation, "ORDER BY prefers the select alias")

	byColumn := info.Fields[order[1].X]
	require.NotNil(t, byColumn)
	assert.Nil(t, byColumn.Relation, "gender is also an output name")
}

func TestUnionOrderBy(t *testing.T) {
	stmt, info, errs := resolveSource(t,
		"SELECT age AS n FROM demographics UNION SELECT score FROM visits ORDER BY n")
	require.Empty(t, errs)

	u := stmt.Body.(*ast.Union)
	out := info.Outputs[u]
	require.Len(t, out, 1)
	assert.Equal(t, "n", out[0].Name)
	assert.Equal(t, types.Double, out[0].Type, "member types widen")
	assert.Contains(t, info.Fields, u.OrderBy[0].X)
}

func TestStarExpansion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"bare star", "SELECT * FROM lists.sites", []string{"site", "country"}},
		{"qualified star", "SELECT s.*, d.age FROM lists.sites s, demographics d", []string{"site", "country", "age"}},
		{"star over derived table", "SELECT * FROM (SELECT age AS a FROM demographics) t", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, info, errs := resolveSource(t, tt.input)
			require.Empty(t, errs)
			var names []string
			for _, c := range info.Outputs[stmt.Body] {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.want, names)
			for _, item := range items(stmt) {
				assert.NotNil(t, info.Fields[item.X], "every expanded item is resolved")
			}
		})
	}

	stmt, _, errs := resolveSource(t, "SELECT * FROM missing")
	assert.Equal(t, []diag.Code{diag.UnknownTable}, codes(errs))
	assert.IsType(t, &ast.RowStar{}, items(stmt)[0].X, "stars over unknown columns are kept")
}

func TestRecursiveCTE(t *testing.T) {
	stmt, info, errs := resolveSource(t, `WITH RECURSIVE n AS (
		SELECT 1 AS k UNION ALL SELECT k + 1 FROM n WHERE k < 10
	)
	SELECT k FROM n`)
	require.Empty(t, errs)

	cte := stmt.With.CTEs[0]
	assert.True(t, info.Recursive[cte])
	rel := info.CTEs[cte]
	require.NotNil(t, rel)
	require.Len(t, rel.Columns, 1)
	assert.Equal(t, types.Integer, rel.Columns[0].Type)
	assert.Equal(t, types.Integer, info.TypeOf(items(stmt)[0].X))
}

func TestCTEVisibility(t *testing.T) {
	_, info, errs := resolveSource(t, `WITH older AS (SELECT participantid, age FROM demographics WHERE age > 60)
		SELECT o.age, v.site FROM older o JOIN visits v ON o.participantid = v.participantid`)
	require.Empty(t, errs)
	for term, rel := range info.Relations {
		if term.Name != nil && term.Name.Name() == "older" {
			assert.Equal(t, resolve.RelCTE, rel.Kind)
		}
	}
	assert.Empty(t, info.Recursive)
}

func TestCorrelatedSubquery(t *testing.T) {
	_, _, errs := resolveSource(t, `SELECT participantid FROM demographics d
		WHERE EXISTS (SELECT 1 FROM visits v WHERE v.participantid = d.participantid AND v.score > d.age)`)
	assert.Empty(t, errs)
}

func TestIfDefined(t *testing.T) {
	stmt, info, errs := resolveSource(t, "SELECT IFDEFINED(d.nothere) AS a, IFDEFINED(d.age) AS b FROM demographics d")
	require.Empty(t, errs, "an undefined field is not an error")

	undefined := items(stmt)[0].X.(*ast.IfDefined)
	assert.False(t, info.Defined[undefined])
	assert.Equal(t, types.Unknown, info.TypeOf(undefined))
	assert.False(t, info.IsConstant(undefined))

	defined := items(stmt)[1].X.(*ast.IfDefined)
	assert.True(t, info.Defined[defined])
	assert.Equal(t, types.Integer, info.TypeOf(defined))
}

func TestPivotOutputs(t *testing.T) {
	stmt, info, errs := resolveSource(t, `SELECT site, visit, max(score) AS best FROM visits
		GROUP BY site, visit PIVOT best BY visit IN (1, 2 AS two)`)
	require.Empty(t, errs)

	var names []string
	for _, c := range info.Outputs[stmt.Body] {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"site", "1::best", "two::best"}, names)
	assert.Equal(t, types.Double, info.Outputs[stmt.Body][1].Type)
}

func TestMethodBinding(t *testing.T) {
	stmt, info, errs := resolveSource(t, "SELECT lcase(gender) FROM demographics")
	require.Empty(t, errs)
	call := items(stmt)[0].X.(*ast.Call)
	m, ok := info.Methods[call]
	require.True(t, ok)
	assert.Equal(t, "lcase", m.Name)
}
