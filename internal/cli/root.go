// Package cli provides the command-line interface for qsql.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/qsql/internal/cli/commands"
	"github.com/leapstack-labs/qsql/internal/config"
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/schema"

	// Dialects and schema sources register themselves.
	_ "github.com/leapstack-labs/qsql/pkg/dialects/duckdb"
	_ "github.com/leapstack-labs/qsql/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/qsql/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/qsql/pkg/dialects/sqlite"
	_ "github.com/leapstack-labs/qsql/pkg/dialects/sqlserver"
	_ "github.com/leapstack-labs/qsql/pkg/schema/sources/duckdb"
	_ "github.com/leapstack-labs/qsql/pkg/schema/sources/mysql"
	_ "github.com/leapstack-labs/qsql/pkg/schema/sources/postgres"
	_ "github.com/leapstack-labs/qsql/pkg/schema/sources/sqlite"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "qsql",
		Short: "qsql - query compiler",
		Long: `qsql compiles queries written in the qsql dialect into SQL for a target
database. Queries are resolved against a catalog of tables loaded from a
schema file or introspected from a live database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			loaded, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return err
			}

			level := slog.LevelWarn
			if loaded.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			if loaded.File != "" {
				logger.Debug("using config file", "path", loaded.File)
			}

			cmd.SetContext(commands.WithRuntime(cmd.Context(), &commands.Runtime{
				Config: loaded.Config,
				Logger: logger,
			}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./qsql.yaml, searched upward)")
	flags.StringP("dialect", "d", "", "Target SQL dialect")
	flags.String("schema-file", "", "YAML catalog file")
	flags.String("schema-source", "", "Database to introspect for the catalog")
	flags.String("dsn", "", "Connection string for --schema-source")
	flags.StringSlice("schemas", nil, "Database schemas to introspect")
	flags.StringToString("param", nil, "Runtime parameter value (name=value)")
	flags.StringToString("session", nil, "Session value (name=value)")
	flags.Bool("allow-unsafe", false, "Allow methods marked unsafe")
	flags.StringP("output", "o", "", "Output format (text|table|json)")
	flags.BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.OutputText, config.OutputTable, config.OutputJSON}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return dialect.List(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("schema-source", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return schema.ListSources(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewFormatCommand())
	rootCmd.AddCommand(commands.NewSchemaCommand())
	rootCmd.AddCommand(commands.NewLineageCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for qsql.

To load completions:

Bash:
  $ source <(qsql completion bash)

Zsh:
  $ qsql completion zsh > "${fpath[1]}/_qsql"

Fish:
  $ qsql completion fish | source

PowerShell:
  PS> qsql completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
