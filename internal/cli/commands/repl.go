package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/qsql/pkg/compiler"
	"github.com/leapstack-labs/qsql/pkg/dialect"
	"github.com/leapstack-labs/qsql/pkg/schema"
	"github.com/leapstack-labs/qsql/pkg/sqlgen"
)

const (
	prompt         = "qsql> "
	continuePrompt = " ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Compile queries interactively",
		Long: `Start an interactive session that compiles each statement to SQL for the
configured dialect. Statements end with a semicolon. When input is not a terminal, statements are
read from it and compiled in turn.`,
		Args: cobra.NoArgs,
		RunE: runREPL,
	}
}

// replSession is the state of one interactive session.
type replSession struct {
	cmd   *cobra.Command
	rt    *Runtime
	copts *compiler.Options
	sopts *sqlgen.Options
	cat   *schema.Catalog

	// source prints canonical source instead of SQL.
	source bool
	buf    strings.Builder
}

func runREPL(cmd *cobra.Command, _ []string) error {
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
	s := &replSession{cmd: cmd, rt: rt, copts: copts, sopts: sopts}
	s.cat, _ = copts.Schema.(*schema.Catalog)

	out := cmd.OutOrStdout()
	if f, ok := cmd.InOrStdin().(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		rt.Logger.Debug("input is not a terminal, reading statements in batch")
		return s.batch(cmd.InOrStdin())
	}

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".qsql_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          out,
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(out, "qsql REPL (dialect: %s)\n", sopts.Dialect.Name)
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.buf.Reset()
			rl.SetPrompt(prompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if s.feed(line) {
			break
		}
		if s.buf.Len() > 0 {
			rl.SetPrompt(continuePrompt)
		} else {
			rl.SetPrompt(prompt)
		}
	}
	return nil
}

// batch compiles every statement read from r, as when input is piped.
func (s *replSession) batch(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s.feed(scanner.Text()) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(s.buf.String()) != "" {
		s.feed(";")
	}
	return nil
}

// feed handles one input line: a dot-command, or part of a statement that
// is compiled once a line ends with a semicolon. It reports whether the
// session ends.
func (s *replSession) feed(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if s.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.dotCommand(line)
	}

	s.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		s.buf.WriteString("\n")
		return false
	}

	src := s.buf.String()
	s.buf.Reset()
	out := s.cmd.OutOrStdout()
	if err := s.compile(out, src); err != nil {
		_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	_, _ = fmt.Fprintln(out)
	return false
}

// compile prints the SQL, or the canonical source, of one statement.
func (s *replSession) compile(w io.Writer, src string) error {
	t, err := compiler.ParseAndResolve(src, s.copts)
	if t == nil {
		return err
	}
	if s.source {
		_, _ = fmt.Fprint(w, compiler.EmitSource(t))
		return nil
	}
	if errs := compiler.Check(t); len(errs) > 0 {
		return renderErrors(w, fileErrors("<input>", errs), s.rt.Config.Output)
	}
	o := *s.sopts
	res, err := compiler.EmitSQL(t, &o)
	if err != nil {
		return err
	}
	return renderCompiled(w, s.sopts.Dialect, []compiled{resultOf("<input>", res)}, s.rt.Config.Output)
}

// dotCommand runs a REPL command and reports whether the session ends.
func (s *replSession) dotCommand(line string) bool {
	out, errOut := s.cmd.OutOrStdout(), s.cmd.ErrOrStderr()
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".dialect":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(out, "%s (available: %s)\n", s.sopts.Dialect.Name, strings.Join(dialect.List(), ", "))
			break
		}
		d, err := dialect.Lookup(strings.ToLower(parts[1]))
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			break
		}
		s.sopts.Dialect = d

	case ".source":
		s.source = !s.source
		_, _ = fmt.Fprintf(out, "source mode: %t\n", s.source)

	case ".tables":
		if s.cat == nil {
			break
		}
		if err := renderTables(s.cmd, s.cat, s.rt.Config.Output); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help            Show this help message
  .dialect [name]  Show or switch the target dialect
  .source          Toggle printing canonical source instead of SQL
  .tables          List the catalog tables
  .quit / .exit    Exit the REPL

Tips:
  - Statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// completer offers dot-commands and catalog table names.
func (s *replSession) completer() *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	if s.cat != nil {
		for _, t := range s.cat.Tables() {
			items = append(items, readline.PcItem(t.Name))
		}
	}

	dialects := make([]readline.PrefixCompleterInterface, 0)
	for _, name := range dialect.List() {
		dialects = append(dialects, readline.PcItem(name))
	}
	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".dialect", dialects...),
		readline.PcItem(".source"),
		readline.PcItem(".tables"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
	return readline.NewPrefixCompleter(items...)
}
