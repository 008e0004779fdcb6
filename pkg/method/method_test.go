package method

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func TestLookup(t *testing.T) {
	r := NewRegistry()

	mm, ok := r.Lookup("UCase", []types.Type{types.Varchar})
	require.True(t, ok)
	assert.Equal(t, "ucase", mm.Name)

	_, ok = r.Lookup("no_such_method", nil)
	assert.False(t, ok)

	r.Register(&Method{Name: "Custom", MinArgs: 0, MaxArgs: 0})
	_, ok = r.Lookup("custom", nil)
	assert.True(t, ok)
	assert.Contains(t, r.Names(), "custom")
}

func TestCheckArity(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name    string
		n       int
		wantErr string
	}{
		{"abs", 1, ""},
		{"abs", 2, "abs expects 1 arguments, got 2"},
		{"round", 0, "round expects at least 1 arguments, got 0"},
		{"round", 3, "round expects at most 2 arguments, got 3"},
		{"coalesce", 7, ""},
		{"concat", 1, "concat expects at least 2 arguments, got 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mm, ok := r.Lookup(tt.name, nil)
			require.True(t, ok)
			err := mm.CheckArity(tt.n)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestReturnType(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		args []types.Type
		want types.Type
	}{
		{"abs", []types.Type{types.BigInt}, types.BigInt},
		{"sqrt", []types.Type{types.Integer}, types.Double},
		{"coalesce", []types.Type{types.Null, types.Integer, types.Double}, types.Double},
		{"coalesce", []types.Type{types.Varchar, types.Varchar}, types.Varchar},
		{"coalesce", []types.Type{types.Null}, types.Unknown},
		{"now", nil, types.Timestamp},
		{"startswith", []types.Type{types.Varchar, types.Varchar}, types.Boolean},
		{"username", nil, types.Varchar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mm, ok := r.Lookup(tt.name, tt.args)
			require.True(t, ok)
			assert.Equal(t, tt.want, mm.ReturnType(tt.args))
		})
	}
}

func TestRender(t *testing.T) {
	r := NewRegistry()
	d := dialect.NewDialect("ansi").Build()

	isequal, _ := r.Lookup("isequal", nil)
	assert.Equal(t, "(a = b OR (a IS NULL AND b IS NULL))", isequal.Render(d, []string{"a", "b"}))

	months, _ := r.Lookup("age_in_months", nil)
	assert.Equal(t,
		"((YEAR(t) - YEAR(f)) * 12 + MONTH(t) - MONTH(f) - CASE WHEN DAYOFMONTH(t) < DAYOFMONTH(f) THEN 1 ELSE 0 END)",
		months.Render(d, []string{"f", "t"}))

	upper, _ := r.Lookup("upper", nil)
	assert.Equal(t, "UPPER(x)", upper.Render(d, []string{"x"}))
}

func TestVolatileAndSession(t *testing.T) {
	r := NewRegistry()

	rand, _ := r.Lookup("rand", nil)
	assert.True(t, rand.Volatile)

	user, _ := r.Lookup("userid", nil)
	assert.Equal(t, "userid", user.Session)

	abs, _ := r.Lookup("abs", nil)
	assert.False(t, abs.Volatile)
	assert.Empty(t, abs.Session)
}
