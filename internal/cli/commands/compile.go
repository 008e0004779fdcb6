package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/qsql/pkg/compiler"
)

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <file>...",
		Short: "Compile queries to SQL",
		Long: `Compile each query file to SQL for the configured dialect and print it
with its ordered parameter values.

Runtime parameter values come from params in qsql.yaml, QSQL_PARAMS_<NAME>
environment variables or --param name=value.`,
		Example: `  qsql compile visits.qsql
  qsql compile --dialect sqlserver --param MinAge=30 queries/*.qsql
  qsql compile -o json report.qsql`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCompile,
	}
	return cmd
}

func runCompile(cmd *cobra.Command, files []string) error {
	ctx := cmd.Context()
	rt := GetRuntime(ctx)

	copts, err := rt.CompilerOptions(ctx)
	if err != nil {
		return err
	}
	sopts, err := rt.SQLOptions()
	if err != nil {
		return err
	}

	// One tree per goroutine; the catalog is safe for concurrent lookups.
	results := make([]compiled, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			t, err := compileFile(file, copts)
			if err != nil {
				return err
			}
			if errs := compiler.Check(t); len(errs) > 0 {
				return fmt.Errorf("%s: %w", file, errs)
			}
			o := *sopts
			res, err := compiler.EmitSQL(t, &o)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			results[i] = resultOf(file, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rt.Logger.Debug("compiled files", "count", len(files), "dialect", sopts.Dialect.Name)
	return renderCompiled(cmd.OutOrStdout(), sopts.Dialect, results, rt.Config.Output)
}
