package storage

import (
	"fmt"

	"phenoetl/internal/table"
)

// TableSpec describes a destination table derived from a result schema.
type TableSpec struct {
	Name        string
	Columns     []ColumnSpec
	Constraints []ConstraintSpec
}

// ColumnSpec is one destination column. Backends map Kind onto their own
// SQL types.
type ColumnSpec struct {
	Name     string
	Kind     table.Kind
	Nullable bool
}

type ConstraintSpec struct {
	Kind    string // "unique"
	Columns []string
}

// SpecFor maps a table schema onto a TableSpec. Every column is nullable
// because missing values load as NULL; unique columns are NOT NULL and get
// one UNIQUE constraint together.
func SpecFor(name string, schema table.Schema, unique []string) (TableSpec, error) {
	spec := TableSpec{Name: name, Columns: make([]ColumnSpec, len(schema))}
	isUnique := make(map[string]bool, len(unique))
	for _, u := range unique {
		if !schema.Has(u) {
			return TableSpec{}, fmt.Errorf("storage: unique column %q not in schema", u)
		}
		isUnique[u] = true
	}
	for i, c := range schema {
		spec.Columns[i] = ColumnSpec{Name: c.Name, Kind: c.Kind, Nullable: !isUnique[c.Name]}
	}
	if len(unique) > 0 {
		spec.Constraints = []ConstraintSpec{{Kind: "unique", Columns: append([]string(nil), unique...)}}
	}
	return spec, nil
}
