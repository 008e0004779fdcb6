package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/qsql/internal/config"
	"github.com/leapstack-labs/qsql/pkg/fieldkey"
	"github.com/leapstack-labs/qsql/pkg/schema"
)

// SchemaOptions holds options for the schema command.
type SchemaOptions struct {
	YAML bool
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	opts := &SchemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema [table]",
		Short: "Show the tables queries resolve against",
		Long: `List the tables of the configured catalog, or the columns of one table.

With --yaml the catalog is written in the schema file format, which turns an
introspected database into a file usable as schema.file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt := GetRuntime(ctx)
			cat, err := rt.Catalog(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.YAML {
				return schema.WriteYAML(w, cat)
			}
			if len(args) == 1 {
				t, ok := cat.Table(fieldkey.Parse(args[0]))
				if !ok {
					return fmt.Errorf("table not found: %s", args[0])
				}
				return renderColumns(cmd, t, rt.Config.Output)
			}
			return renderTables(cmd, cat, rt.Config.Output)
		},
	}

	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "Write the catalog as a schema file")
	return cmd
}

func renderTables(cmd *cobra.Command, cat *schema.Catalog, format string) error {
	w := cmd.OutOrStdout()
	tables := cat.Tables()
	if format == config.OutputJSON {
		return renderJSON(w, tables)
	}
	if len(tables) == 0 {
		_, _ = fmt.Fprintln(w, "No tables")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Schema", "Table", "Columns"})
	for _, tbl := range tables {
		names := make([]string, len(tbl.Columns))
		for i, c := range tbl.Columns {
			names[i] = c.Name
		}
		t.AppendRow(table.Row{tbl.Schema, tbl.Name, strings.Join(names, ", ")})
	}
	t.Render()
	return nil
}

func renderColumns(cmd *cobra.Command, tbl *schema.Table, format string) error {
	w := cmd.OutOrStdout()
	if format == config.OutputJSON {
		return renderJSON(w, tbl)
	}

	t := newTable(w)
	t.SetTitle(tbl.Key().String())
	t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Format", "Label"})
	for _, c := range tbl.Columns {
		t.AppendRow(table.Row{c.Name, c.Type.String(), c.Nullable, c.Format, c.Label})
	}
	t.Render()
	return nil
}
