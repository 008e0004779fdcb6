package method

import (
	"fmt"

	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/types"
)

func fixed(t types.Type) func([]types.Type) types.Type {
	return func([]types.Type) types.Type { return t }
}

func firstArg(args []types.Type) types.Type {
	if len(args) == 0 {
		return types.Unknown
	}
	return args[0]
}

// common is the type shared by all arguments: the widest numeric type, or
// the first non-null type when the arguments are not all numeric.
func common(args []types.Type) types.Type {
	result := types.Null
	for _, t := range args {
		if t == types.Null {
			continue
		}
		if result == types.Null {
			result = t
			continue
		}
		if w := types.Widen(result, t); w != types.Unknown {
			result = w
		}
	}
	if result == types.Null {
		return types.Unknown
	}
	return result
}

var (
	double  = fixed(types.Double)
	integer = fixed(types.Integer)
	varchar = fixed(types.Varchar)
	boolean = fixed(types.Boolean)
)

func m(name string, minArgs, maxArgs int, returns func([]types.Type) types.Type) *Method {
	return &Method{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Returns: returns}
}

func volatile(mm *Method) *Method {
	mm.Volatile = true
	return mm
}

func session(name string, t types.Type) *Method {
	mm := m(name, 0, 0, fixed(t))
	mm.Session = name
	return mm
}

func rendered(mm *Method, render func(*dialect.Dialect, []string) string) *Method {
	mm.render = render
	return mm
}

var builtins = []*Method{
	// Math
	m("abs", 1, 1, firstArg),
	m("acos", 1, 1, double),
	m("asin", 1, 1, double),
	m("atan", 1, 1, double),
	m("atan2", 2, 2, double),
	m("ceiling", 1, 1, firstArg),
	m("cos", 1, 1, double),
	m("cot", 1, 1, double),
	m("degrees", 1, 1, double),
	m("exp", 1, 1, double),
	m("floor", 1, 1, firstArg),
	m("log", 1, 1, double),
	m("log10", 1, 1, double),
	m("mod", 2, 2, common),
	m("pi", 0, 0, double),
	m("power", 2, 2, double),
	m("radians", 1, 1, double),
	volatile(m("rand", 0, 1, double)),
	m("round", 1, 2, firstArg),
	m("sign", 1, 1, integer),
	m("sin", 1, 1, double),
	m("sqrt", 1, 1, double),
	m("tan", 1, 1, double),
	m("truncate", 2, 2, firstArg),

	// String
	m("concat", 2, Variadic, varchar),
	m("lcase", 1, 1, varchar),
	m("lower", 1, 1, varchar),
	m("ucase", 1, 1, varchar),
	m("upper", 1, 1, varchar),
	m("left", 2, 2, varchar),
	m("length", 1, 1, integer),
	m("locate", 2, 3, integer),
	m("ltrim", 1, 1, varchar),
	m("rtrim", 1, 1, varchar),
	m("repeat", 2, 2, varchar),
	m("substring", 2, 3, varchar),
	m("startswith", 2, 2, boolean),

	// Date
	volatile(m("curdate", 0, 0, fixed(types.Date))),
	volatile(m("curtime", 0, 0, fixed(types.Time))),
	volatile(m("now", 0, 0, fixed(types.Timestamp))),
	m("dayofmonth", 1, 1, integer),
	m("dayofweek", 1, 1, integer),
	m("dayofyear", 1, 1, integer),
	m("hour", 1, 1, integer),
	m("minute", 1, 1, integer),
	m("second", 1, 1, integer),
	m("month", 1, 1, integer),
	m("monthname", 1, 1, varchar),
	m("quarter", 1, 1, integer),
	m("week", 1, 1, integer),
	m("year", 1, 1, integer),
	rendered(m("age_in_years", 2, 2, integer), ageInYears),
	rendered(m("age_in_months", 2, 2, integer), ageInMonths),

	// Null handling
	m("coalesce", 1, Variadic, common),
	m("ifnull", 2, 2, common),
	m("nullif", 2, 2, firstArg),
	m("greatest", 1, Variadic, common),
	m("least", 1, Variadic, common),
	rendered(m("isequal", 2, 2, boolean), func(_ *dialect.Dialect, args []string) string {
		return dialect.Expand("(%1 = %2 OR (%1 IS NULL AND %2 IS NULL))", args)
	}),

	// Host context
	session("userid", types.Integer),
	session("username", types.Varchar),
	session("foldername", types.Varchar),
}

// ageInYears counts completed years from args[0] to args[1].
func ageInYears(d *dialect.Dialect, args []string) string {
	from, to := args[0], args[1]
	part := func(name, x string) string { return d.RenderCall(name, []string{x}) }
	return fmt.Sprintf("(%s - %s - CASE WHEN %s < %s OR (%s = %s AND %s < %s) THEN 1 ELSE 0 END)",
		part("year", to), part("year", from),
		part("month", to), part("month", from),
		part("month", to), part("month", from),
		part("dayofmonth", to), part("dayofmonth", from))
}

// ageInMonths counts completed months from args[0] to args[1].
func ageInMonths(d *dialect.Dialect, args []string) string {
	from, to := args[0], args[1]
	part := func(name, x string) string { return d.RenderCall(name, []string{x}) }
	return fmt.Sprintf("((%s - %s) * 12 + %s - %s - CASE WHEN %s < %s THEN 1 ELSE 0 END)",
		part("year", to), part("year", from),
		part("month", to), part("month", from),
		part("dayofmonth", to), part("dayofmonth", from))
}
