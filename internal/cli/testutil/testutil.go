// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/qsql/internal/testutil"
)

// Queries are the query files SetupTestProject writes, by file name.
var Queries = map[string]string{
	"adults.qsql": `PARAMETERS (MinAge INTEGER DEFAULT 18)
SELECT gender, count(participantid) AS n
FROM demographics
WHERE age >= MinAge
GROUP BY gender;
`,
	"scores.qsql": `SELECT v.site, max(v.score) AS best
FROM visits v
GROUP BY v.site
ORDER BY best DESC
LIMIT 3
`,
	"broken.qsql": `SELECT nope, frob(age) FROM demographics WHERE count(age) > 1
`,
}

// SetupTestProject creates a temporary project: a qsql.yaml pointing at the
// study catalog and the Queries files. It returns the project directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"qsql.yaml":    "dialect: postgres\nschema:\n  file: catalog.yaml\n",
		"catalog.yaml": testutil.StudyYAML,
	}
	for name, content := range Queries {
		files[filepath.Join("queries", name)] = content
	}

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	return dir
}

// QueryPath returns the path of a query written by SetupTestProject.
func QueryPath(dir, name string) string {
	return filepath.Join(dir, "queries", name)
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
