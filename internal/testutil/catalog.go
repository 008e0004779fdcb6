package testutil

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/qsql/pkg/schema"
)

// StudyYAML is the catalog shared by compiler tests: participants with
// demographics, their visits and a list of sites.
const StudyYAML = `
default_schema: study
tables:
  - schema: study
    name: demographics
    columns:
      - name: participantid
        type: integer
      - name: age
        type: integer
        nullable: true
      - name: gender
        type: varchar
        nullable: true
      - name: startdate
        type: date
        format: yyyy-MM-dd
        label: Start Date
  - schema: study
    name: visits
    columns:
      - name: participantid
        type: integer
      - name: visitdate
        type: timestamp
      - name: site
        type: varchar
      - name: visit
        type: integer
      - name: score
        type: double
        nullable: true
  - schema: lists
    name: sites
    columns:
      - name: site
        type: varchar
      - name: country
        type: varchar
`

// StudyCatalog loads StudyYAML.
func StudyCatalog(t testing.TB) *schema.Catalog {
	t.Helper()
	cat, err := schema.LoadYAML(strings.NewReader(StudyYAML))
	if err != nil {
		t.Fatalf("load study catalog: %v", err)
	}
	return cat
}
