package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/qsql/internal/config"
	"github.com/leapstack-labs/qsql/pkg/lineage"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Column string
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <file>",
		Short: "Show which catalog columns each output column comes from",
		Long: `Trace every output column of a query back through WITH bindings, derived
tables and set operations to the catalog columns it is computed from.`,
		Example: `  # Show lineage for every output column
  qsql lineage report.qsql

  # Show one column only
  qsql lineage report.qsql --column best

  # Output as JSON
  qsql lineage report.qsql -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Column, "column", "", "Only show this output column")
	return cmd
}

func runLineage(cmd *cobra.Command, file string, opts *LineageOptions) error {
	ctx := cmd.Context()
	rt := GetRuntime(ctx)
	copts, err := rt.CompilerOptions(ctx)
	if err != nil {
		return err
	}

	t, err := compileFile(file, copts)
	if err != nil {
		return err
	}
	if len(t.Errors) > 0 {
		return fmt.Errorf("%s: %w", file, t.Errors)
	}

	l := lineage.Extract(t.Statement, t.Info)
	rt.Logger.Debug("extracted lineage", "compile_id", t.ID, "columns", len(l.Columns), "tables", len(l.Sources))
	if opts.Column != "" {
		var cols []*lineage.ColumnLineage
		for _, c := range l.Columns {
			if strings.EqualFold(c.Name, opts.Column) {
				cols = append(cols, c)
			}
		}
		if len(cols) == 0 {
			return fmt.Errorf("no output column %s in %s", opts.Column, file)
		}
		l.Columns = cols
	}
	return renderLineage(cmd, l, rt.Config.Output)
}

func renderLineage(cmd *cobra.Command, l *lineage.QueryLineage, format string) error {
	w := cmd.OutOrStdout()
	if format == config.OutputJSON {
		return renderJSON(w, l)
	}

	if format == config.OutputTable {
		tw := newTable(w)
		tw.SetTitle(strings.Join(l.Sources, ", "))
		tw.AppendHeader(table.Row{"Column", "Sources", "Transform", "Function"})
		for _, c := range l.Columns {
			transform := string(c.Transform)
			if c.Transform == lineage.TransformDirect {
				transform = "direct"
			}
			tw.AppendRow(table.Row{c.Name, formatSources(c.Sources), transform, c.Function})
		}
		tw.Render()
		return nil
	}

	_, _ = fmt.Fprintf(w, "Sources: %s\n", strings.Join(l.Sources, ", "))
	for _, c := range l.Columns {
		line := fmt.Sprintf("  %s <- %s", c.Name, formatSources(c.Sources))
		if c.Function != "" {
			line += " [" + c.Function + "]"
		}
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

func formatSources(sources []lineage.SourceColumn) string {
	if len(sources) == 0 {
		return "-"
	}
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = s.Table + "." + s.Column
	}
	return strings.Join(parts, ", ")
}
