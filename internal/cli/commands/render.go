package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/qsql/internal/config"
	"github.com/leapstack-labs/qsql/pkg/diag"
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/sqlgen"
)

// fileError is one semantic error of one file.
type fileError struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func fileErrors(file string, errs diag.ErrorList) []fileError {
	out := make([]fileError, len(errs))
	for i, e := range errs {
		out[i] = fileError{
			File:    file,
			Line:    e.Pos.Line,
			Column:  e.Pos.Column,
			Code:    string(e.Code),
			Message: e.Message,
		}
	}
	return out
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderErrors(w io.Writer, errs []fileError, format string) error {
	switch format {
	case config.OutputJSON:
		return renderJSON(w, errs)
	case config.OutputTable:
		if len(errs) == 0 {
			_, _ = fmt.Fprintln(w, "No problems found")
			return nil
		}
		t := newTable(w)
		t.AppendHeader(table.Row{"File", "Line", "Col", "Code", "Message"})
		for _, e := range errs {
			t.AppendRow(table.Row{e.File, e.Line, e.Column, e.Code, e.Message})
		}
		t.Render()
	default:
		for _, e := range errs {
			_, _ = fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", e.File, e.Line, e.Column, e.Code, e.Message)
		}
	}
	return nil
}

// compiled is the output of compiling one file.
type compiled struct {
	File string `json:"file"`
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

func renderCompiled(w io.Writer, d *dialect.Dialect, results []compiled, format string) error {
	if format == config.OutputJSON {
		return renderJSON(w, results)
	}
	for i, r := range results {
		if len(results) > 1 {
			if i > 0 {
				_, _ = fmt.Fprintln(w)
			}
			_, _ = fmt.Fprintf(w, "-- %s\n", r.File)
		}
		_, _ = fmt.Fprintln(w, r.SQL)
		if len(r.Args) == 0 {
			continue
		}
		if format == config.OutputTable {
			t := newTable(w)
			t.AppendHeader(table.Row{"Placeholder", "Value", "Type"})
			for j, arg := range r.Args {
				t.AppendRow(table.Row{d.FormatPlaceholder(j + 1), fmt.Sprint(arg), fmt.Sprintf("%T", arg)})
			}
			t.Render()
			continue
		}
		for j, arg := range r.Args {
			_, _ = fmt.Fprintf(w, "-- %s = %s\n", d.FormatPlaceholder(j+1), formatArg(arg))
		}
	}
	return nil
}

func formatArg(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprint(v)
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resultOf(file string, res *sqlgen.Result) compiled {
	args := res.Args
	if args == nil {
		args = []any{}
	}
	return compiled{File: file, SQL: res.SQL, Args: args}
}
