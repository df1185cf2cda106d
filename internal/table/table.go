package table

import (
	"fmt"
)

// Column is a named, typed slot in a Schema.
type Column struct {
	Name string
	Kind Kind
}

// Schema is an ordered set of uniquely named columns.
type Schema []Column

// NewSchema validates names and returns a copy of cols.
func NewSchema(cols ...Column) (Schema, error) {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrSchema)
		}
		if _, ok := seen[c.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return append(Schema(nil), cols...), nil
}

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether name is a column of s.
func (s Schema) Has(name string) bool { return s.Index(name) >= 0 }

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Table is an immutable record set: a schema plus rows aligned to it.
type Table struct {
	schema Schema
	rows   [][]Value
}

// New builds a table after checking every row against the schema.
// Missing values may carry any kind; present values must match their column.
func New(schema Schema, rows [][]Value) (*Table, error) {
	sc, err := NewSchema(schema...)
	if err != nil {
		return nil, err
	}
	out := make([][]Value, len(rows))
	for i, r := range rows {
		if len(r) != len(sc) {
			return nil, fmt.Errorf("%w: row %d has %d values, schema has %d columns", ErrSchema, i, len(r), len(sc))
		}
		row := make([]Value, len(r))
		for j, v := range r {
			if v.IsMissing() {
				row[j] = Missing(sc[j].Kind)
				continue
			}
			if v.Kind() != sc[j].Kind {
				return nil, fmt.Errorf("%w: row %d column %q holds %s, want %s", ErrKindMismatch, i, sc[j].Name, v.Kind(), sc[j].Kind)
			}
			row[j] = v
		}
		out[i] = row
	}
	return &Table{schema: sc, rows: out}, nil
}

// MustNew is New for fixtures and literals known to be valid.
func MustNew(schema Schema, rows [][]Value) *Table {
	t, err := New(schema, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// build wraps rows produced by a stage. Stages only emit rows that already
// match the schema, so no re-validation happens here.
func build(schema Schema, rows [][]Value) *Table {
	if rows == nil {
		rows = [][]Value{}
	}
	return &Table{schema: schema, rows: rows}
}

// Schema returns a copy of the table's schema.
func (t *Table) Schema() Schema { return append(Schema(nil), t.schema...) }

// Len is the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []Value { return append([]Value(nil), t.rows[i]...) }

// Value returns the cell at row i, column name.
func (t *Table) Value(i int, name string) (Value, error) {
	j := t.schema.Index(name)
	if j < 0 {
		return Value{}, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return t.rows[i][j], nil
}

// Column returns a copy of a full column.
func (t *Table) Column(name string) ([]Value, error) {
	j := t.schema.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Each calls fn for every row in order. The Row view is only valid during
// the call.
func (t *Table) Each(fn func(i int, r Row) error) error {
	for i, vals := range t.rows {
		if err := fn(i, Row{schema: t.schema, vals: vals}); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports schema and cell equality, row order included.
func (t *Table) Equal(o *Table) bool {
	if len(t.schema) != len(o.schema) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.schema {
		if t.schema[i] != o.schema[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !t.rows[i][j].Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// Row is a read-only view of one row, used by predicates and derive
// functions.
type Row struct {
	schema Schema
	vals   []Value
}

// Get returns the value of column name.
func (r Row) Get(name string) (Value, error) {
	j := r.schema.Index(name)
	if j < 0 {
		return Value{}, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return r.vals[j], nil
}

// At returns the value at column position j.
func (r Row) At(j int) Value { return r.vals[j] }
