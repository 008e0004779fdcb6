// Package main provides tests for the qsql CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/qsql/internal/cli"
	"github.com/leapstack-labs/qsql/internal/testutil"
)

// writeProject writes a config, a catalog and one query into a temp dir.
func writeProject(t *testing.T) (cfgFile, query string) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"qsql.yaml":    "dialect: postgres\nschema:\n  file: catalog.yaml\n",
		"catalog.yaml": testutil.StudyYAML,
		"visits.qsql":  "PARAMETERS (Site VARCHAR DEFAULT 'A')\nSELECT visit, score FROM visits WHERE site = Site\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return filepath.Join(dir, "qsql.yaml"), filepath.Join(dir, "visits.qsql")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	cfgFile, _ := writeProject(t)
	output, err := execute(t, "--config", cfgFile, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(output, "qsql v") {
		t.Errorf("version output should contain 'qsql v', got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	output, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help command error = %v", err)
	}
	for _, expected := range []string{"compile", "check", "format", "schema", "lineage", "repl"} {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestCompileCommand(t *testing.T) {
	cfgFile, query := writeProject(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "config dialect",
			args: []string{"--config", cfgFile, "compile", query},
			want: []string{"FROM study.visits AS visits", "visits.site = $1", `-- $1 = "A"`},
		},
		{
			name: "dialect flag",
			args: []string{"--config", cfgFile, "--dialect", "sqlserver", "compile", query},
			want: []string{"visits.site = @p1"},
		},
		{
			name: "param flag",
			args: []string{"--config", cfgFile, "--param", "Site=B", "compile", query},
			want: []string{`-- $1 = "B"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := execute(t, tt.args...)
			if err != nil {
				t.Fatalf("compile command error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("compile output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestInvalidConfiguration(t *testing.T) {
	cfgFile, query := writeProject(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown dialect", []string{"--config", cfgFile, "--dialect", "oracle", "compile", query}, "unknown dialect"},
		{"unknown output", []string{"--config", cfgFile, "-o", "xml", "compile", query}, "xml"},
		{"missing config", []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "version"}, "config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should contain %q, got: %v", tt.want, err)
			}
		})
	}
}
