package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/schema"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display qsql version, build information and the compiled-in dialects and schema sources.`,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "qsql v%s (%s)\n", version, runtime.Version())
			_, _ = fmt.Fprintf(w, "Dialects: %s\n", strings.Join(dialect.List(), ", "))
			_, _ = fmt.Fprintf(w, "Schema sources: %s\n", strings.Join(schema.ListSources(), ", "))
		},
	}
}
