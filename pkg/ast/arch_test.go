package ast_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const module = "github.com/leapstack-labs/qsql/"

// TestLayering verifies the data packages at the bottom of the compiler only
// import the packages below them and stdlib.
func TestLayering(t *testing.T) {
	layers := []struct {
		dir     string
		allowed []string
	}{
		{"../token", nil},
		{"../types", nil},
		{"../diag", []string{"pkg/token"}},
		{"../fieldkey", []string{"pkg/token", "golang.org/x/text/cases"}},
		{"../tree", []string{"pkg/diag", "pkg/token"}},
		{".", []string{"pkg/diag", "pkg/fieldkey", "pkg/token", "pkg/tree", "pkg/types"}},
	}

	for _, layer := range layers {
		t.Run(filepath.Base(layer.dir), func(t *testing.T) {
			allowed := make(map[string]bool)
			for _, p := range layer.allowed {
				if strings.HasPrefix(p, "pkg/") {
					p = module + p
				}
				allowed[p] = true
			}

			for file, imports := range sourceImports(t, layer.dir) {
				for _, importPath := range imports {
					// Allow stdlib
					if !strings.Contains(importPath, ".") {
						continue
					}
					if !allowed[importPath] {
						t.Errorf("%s imports forbidden package: %s", file, importPath)
					}
				}
			}
		})
	}
}

// TestPublicDoesNotImportInternal verifies no package under pkg/ imports an
// internal package.
func TestPublicDoesNotImportInternal(t *testing.T) {
	err := filepath.WalkDir("..", func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		for file, imports := range sourceImports(t, path) {
			for _, importPath := range imports {
				if strings.HasPrefix(importPath, module+"internal/") {
					t.Errorf("%s imports internal package: %s", file, importPath)
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk pkg: %v", err)
	}
}

// sourceImports returns the imports of every non-test Go file in dir.
func sourceImports(t *testing.T, dir string) map[string][]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", dir, err)
	}

	fset := token.NewFileSet()
	out := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") || strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", path, err)
			continue
		}
		for _, imp := range f.Imports {
			out[path] = append(out[path], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return out
}
