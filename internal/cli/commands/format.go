package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/qsql/pkg/compiler"
)

// FormatOptions holds options for the format command.
type FormatOptions struct {
	Write bool
	Check bool
}

// NewFormatCommand creates the format command.
func NewFormatCommand() *cobra.Command {
	opts := &FormatOptions{}

	cmd := &cobra.Command{
		Use:   "format <file>...",
		Short: "Print queries in canonical form",
		Long: `Regenerate the canonical source text of each query file.

Formatting only needs the statement to parse; unresolved names are kept as
written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			return runFormat(cmd, files, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "Write the result back to each file")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Fail if any file is not already formatted")
	return cmd
}

func runFormat(cmd *cobra.Command, files []string, opts *FormatOptions) error {
	ctx := cmd.Context()
	rt := GetRuntime(ctx)
	copts, err := rt.CompilerOptions(ctx)
	if err != nil {
		return err
	}

	var unformatted []string
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		t, err := compiler.ParseAndResolve(string(src), copts)
		if t == nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		out := compiler.EmitSource(t)

		switch {
		case opts.Check:
			if out != string(src) {
				unformatted = append(unformatted, file)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), file)
			}
		case opts.Write:
			if out == string(src) {
				continue
			}
			if err := os.WriteFile(file, []byte(out), 0o644); err != nil { //nolint:gosec // query files are not secrets
				return err
			}
			rt.Logger.Debug("formatted file", "path", file)
		default:
			_, _ = fmt.Fprint(cmd.OutOrStdout(), out)
		}
	}

	if len(unformatted) > 0 {
		return fmt.Errorf("%d file(s) need formatting", len(unformatted))
	}
	return nil
}
