package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog format.
//
//	default_schema: study
//	tables:
//	  - schema: study
//	    name: demographics
//	    columns:
//	      - name: participant_id
//	        type: integer
//	      - name: start_date
//	        type: date
//	        format: yyyy-MM-dd
type File struct {
	DefaultSchema string   `yaml:"default_schema"`
	Tables        []*Table `yaml:"tables"`
}

// LoadYAML decodes a catalog file.
func LoadYAML(r io.Reader) (*Catalog, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode schema file: %w", err)
	}

	cat := NewCatalog(f.DefaultSchema)
	for i, t := range f.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("table %d: name is required", i+1)
		}
		for j, col := range t.Columns {
			if col.Name == "" {
				return nil, fmt.Errorf("table %s column %d: name is required", t.Name, j+1)
			}
		}
		cat.Add(t)
	}
	return cat, nil
}

// LoadFile reads a catalog file from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided config
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer func() { _ = f.Close() }()
	cat, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// WriteYAML encodes a catalog in the file format.
func WriteYAML(w io.Writer, c *Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(File{DefaultSchema: c.DefaultSchema(), Tables: c.Tables()}); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return enc.Close()
}
