// Package types defines the expression type catalog, the parameter type
// catalog, and numeric widening.
package types

import (
	"strings"
)

// Type is a value type of the query language.
type Type int

// Types in the general expression catalog.
const (
	Unknown Type = iota // open/neutral type
	Null
	Boolean
	TinyInt
	SmallInt
	Integer
	BigInt
	Numeric
	Decimal
	Real
	Float
	Double
	Char
	Varchar
	LongVarchar
	Date
	Time
	Timestamp
	Binary
)

var typeNames = [...]string{
	Unknown:     "OTHER",
	Null:        "NULL",
	Boolean:     "BOOLEAN",
	TinyInt:     "TINYINT",
	SmallInt:    "SMALLINT",
	Integer:     "INTEGER",
	BigInt:      "BIGINT",
	Numeric:     "NUMERIC",
	Decimal:     "DECIMAL",
	Real:        "REAL",
	Float:       "FLOAT",
	Double:      "DOUBLE",
	Char:        "CHAR",
	Varchar:     "VARCHAR",
	LongVarchar: "LONGVARCHAR",
	Date:        "DATE",
	Time:        "TIME",
	Timestamp:   "TIMESTAMP",
	Binary:      "BINARY",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "OTHER"
}

// IsNumeric reports whether t is an exact or approximate number.
func (t Type) IsNumeric() bool {
	return t >= TinyInt && t <= Double
}

// IsInteger reports whether t is an integral number.
func (t Type) IsInteger() bool {
	return t >= TinyInt && t <= BigInt
}

// IsText reports whether t is a character type.
func (t Type) IsText() bool {
	return t >= Char && t <= LongVarchar
}

// IsTemporal reports whether t is a date or time type.
func (t Type) IsTemporal() bool {
	return t >= Date && t <= Timestamp
}

// Widen returns the wider of two numeric types, following the order
// TINYINT < SMALLINT < INTEGER < BIGINT < NUMERIC < DECIMAL < REAL < FLOAT < DOUBLE.
// NULL yields to the other operand; a non-numeric operand yields Unknown.
func Widen(a, b Type) Type {
	switch {
	case a == Null:
		return b
	case b == Null:
		return a
	case !a.IsNumeric() || !b.IsNumeric():
		return Unknown
	case a > b:
		return a
	default:
		return b
	}
}

// Attrs are display attributes inherited from a column through expressions
// that preserve its type (min, max, sum, ...).
type Attrs struct {
	Format string `yaml:"format,omitempty"`
	Label  string `yaml:"label,omitempty"`
}

// catalog maps normalized SQL type names, including common driver spellings,
// to types.
var catalog = map[string]Type{
	"null":        Null,
	"bit":         Boolean,
	"bool":        Boolean,
	"boolean":     Boolean,
	"tinyint":     TinyInt,
	"smallint":    SmallInt,
	"int2":        SmallInt,
	"integer":     Integer,
	"int":         Integer,
	"int4":        Integer,
	"serial":      Integer,
	"bigint":      BigInt,
	"int8":        BigInt,
	"bigserial":   BigInt,
	"hugeint":     BigInt,
	"numeric":     Numeric,
	"decimal":     Decimal,
	"real":        Real,
	"float4":      Real,
	"float":       Float,
	"double":      Double,
	"float8":      Double,
	"char":        Char,
	"character":   Char,
	"bpchar":      Char,
	"varchar":     Varchar,
	"nvarchar":    Varchar,
	"string":      Varchar,
	"longvarchar": LongVarchar,
	"text":        LongVarchar,
	"clob":        LongVarchar,
	"date":        Date,
	"time":        Time,
	"timestamp":   Timestamp,
	"timestamptz": Timestamp,
	"datetime":    Timestamp,
	"datetime2":   Timestamp,
	"binary":      Binary,
	"varbinary":   Binary,
	"blob":        Binary,
	"bytea":       Binary,

	"double precision":            Double,
	"character varying":           Varchar,
	"timestamp with time zone":    Timestamp,
	"timestamp without time zone": Timestamp,
}

// parameterCatalog is the subset of types a PARAMETERS declaration may use.
// Date and time-of-day are excluded; timestamp is retained.
var parameterCatalog = map[string]Type{
	"bigint":      BigInt,
	"bit":         Boolean,
	"boolean":     Boolean,
	"char":        Char,
	"decimal":     Decimal,
	"double":      Double,
	"float":       Float,
	"integer":     Integer,
	"longvarchar": LongVarchar,
	"numeric":     Numeric,
	"real":        Real,
	"smallint":    SmallInt,
	"timestamp":   Timestamp,
	"tinyint":     TinyInt,
	"varchar":     Varchar,
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return strings.Join(strings.Fields(name), " ")
}

// Lookup resolves a type name from the general catalog, case-insensitively.
// Precision suffixes such as VARCHAR(20) are ignored.
func Lookup(name string) (Type, bool) {
	t, ok := catalog[normalize(name)]
	return t, ok
}

// LookupParameter resolves a parameter type name. An unrecognized name, or a
// type outside the parameter catalog, yields ok=false.
func LookupParameter(name string) (Type, bool) {
	t, ok := parameterCatalog[normalize(name)]
	return t, ok
}

// FromSQL maps a driver-reported data type to a type, falling back to Unknown.
func FromSQL(dataType string) Type {
	if t, ok := Lookup(dataType); ok {
		return t
	}
	return Unknown
}
