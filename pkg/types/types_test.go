package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupParameter(t *testing.T) {
	tests := []struct {
		name     string
		expected Type
		ok       bool
	}{
		{"Integer", Integer, true},
		{"INTEGER", Integer, true},
		{"integer", Integer, true},
		{"Timestamp", Timestamp, true},
		{"varchar(50)", Varchar, true},
		{"BIT", Boolean, true},
		{"Date", Unknown, false},
		{"time", Unknown, false},
		{"geometry", Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LookupParameter(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLookupGeneralCatalog(t *testing.T) {
	got, ok := Lookup("Date")
	assert.True(t, ok)
	assert.Equal(t, Date, got)

	assert.Equal(t, Varchar, FromSQL("character varying"))
	assert.Equal(t, Timestamp, FromSQL("TIMESTAMP  WITH TIME ZONE"))
	assert.Equal(t, Unknown, FromSQL("geometry"))
}

func TestWiden(t *testing.T) {
	tests := []struct {
		a, b     Type
		expected Type
	}{
		{Double, Integer, Double},
		{Integer, Double, Double},
		{SmallInt, BigInt, BigInt},
		{Decimal, Real, Real},
		{Null, Integer, Integer},
		{Varchar, Integer, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"_"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, Widen(tt.a, tt.b))
		})
	}
}

func TestClasses(t *testing.T) {
	assert.True(t, Integer.IsNumeric())
	assert.True(t, Integer.IsInteger())
	assert.False(t, Double.IsInteger())
	assert.True(t, LongVarchar.IsText())
	assert.True(t, Timestamp.IsTemporal())
	assert.False(t, Boolean.IsNumeric())
	assert.Equal(t, "OTHER", Type(99).String())
}
