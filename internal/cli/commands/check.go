package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/qsql/pkg/compiler"
	"github.com/leapstack-labs/qsql/pkg/parser"
)

// ErrProblemsFound is returned by check when any file has errors.
var ErrProblemsFound = errors.New("problems found")

// debounce groups the burst of events editors produce for one save.
const debounce = 200 * time.Millisecond

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Watch bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Report every problem in query files",
		Long: `Parse, resolve and validate query files and report every semantic error
with its position. With --watch the files are checked again whenever they
change.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			if opts.Watch {
				return watchFiles(cmd, files)
			}
			return checkFiles(cmd.Context(), cmd.OutOrStdout(), files)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Check again when the files change")
	return cmd
}

func checkFiles(ctx context.Context, w io.Writer, files []string) error {
	rt := GetRuntime(ctx)
	copts, err := rt.CompilerOptions(ctx)
	if err != nil {
		return err
	}

	var all []fileError
	for _, file := range files {
		all = append(all, checkFile(file, copts)...)
	}
	if err := renderErrors(w, all, rt.Config.Output); err != nil {
		return err
	}
	if len(all) > 0 {
		return fmt.Errorf("%w: %d error(s)", ErrProblemsFound, len(all))
	}
	return nil
}

// checkFile reports parse failures as errors of the file so that one bad
// file does not stop the others from being checked.
func checkFile(file string, copts *compiler.Options) []fileError {
	t, err := compileFile(file, copts)
	if err != nil {
		fe := fileError{File: file, Code: "ParseError", Message: err.Error()}
		var perr *parser.ParseError
		var lerr *parser.LexError
		switch {
		case errors.As(err, &perr):
			fe.Line, fe.Column, fe.Message = perr.Pos.Line, perr.Pos.Column, perr.Message
		case errors.As(err, &lerr):
			fe.Line, fe.Column, fe.Message = lerr.Pos.Line, lerr.Pos.Column, lerr.Message
		}
		return []fileError{fe}
	}
	return fileErrors(file, compiler.Check(t))
}

func watchFiles(cmd *cobra.Command, files []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	logger := GetRuntime(ctx).Logger

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch directories: editors often replace a file instead of writing it.
	watched := make(map[string]bool)
	targets := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		targets[abs] = true
		if dir := filepath.Dir(abs); !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watched[dir] = true
		}
	}

	run := func() {
		if err := checkFiles(ctx, w, files); err != nil && !errors.Is(err, ErrProblemsFound) {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintf(w, "Watching %d file(s) for changes...\n", len(files))
	}
	run()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[event.Name] || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("file changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
