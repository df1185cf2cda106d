package table

import "fmt"

// DeriveFunc computes a new cell from a row.
type DeriveFunc func(Row) (Value, error)

// Derive appends column name of the given kind, computed per row by fn.
//
// A missing result is stored as a missing value of kind; any present result
// must have that kind.
func Derive(t *Table, name string, kind Kind, fn DeriveFunc) (*Table, error) {
	if name == "" {
		return nil, stageErr(StageDerive, t, name, fmt.Errorf("%w: empty column name", ErrSchema))
	}
	if t.schema.Has(name) {
		return nil, stageErr(StageDerive, t, name, ErrNameCollision)
	}

	schema := append(t.Schema(), Column{Name: name, Kind: kind})
	out := make([][]Value, len(t.rows))
	for i, vals := range t.rows {
		v, err := fn(Row{schema: t.schema, vals: vals})
		if err != nil {
			return nil, stageErr(StageDerive, t, name, fmt.Errorf("row %d: %w", i, err))
		}
		if v.IsMissing() {
			v = Missing(kind)
		} else if v.Kind() != kind {
			return nil, stageErr(StageDerive, t, name, fmt.Errorf("%w: row %d produced %s, want %s", ErrKindMismatch, i, v.Kind(), kind))
		}
		nr := make([]Value, len(vals)+1)
		copy(nr, vals)
		nr[len(vals)] = v
		out[i] = nr
	}
	return build(schema, out), nil
}

// DeriveThreshold appends an int indicator: 1 when source <= limit, 0 when
// source > limit, missing when source is missing.
//
// The missing case is deliberate: coercing it to 0 would count unmeasured
// rows as "not low" in any later aggregate.
func DeriveThreshold(t *Table, name, source string, limit float64) (*Table, error) {
	j := t.schema.Index(source)
	if j < 0 {
		return nil, stageErr(StageDerive, t, source, ErrColumnNotFound)
	}
	if !t.schema[j].Kind.Numeric() {
		return nil, stageErr(StageDerive, t, source, fmt.Errorf("%w: %s column", ErrKindMismatch, t.schema[j].Kind))
	}
	return Derive(t, name, KindInt, func(r Row) (Value, error) {
		f, ok := r.At(j).Float64()
		if !ok {
			return Missing(KindInt), nil
		}
		if f <= limit {
			return Int(1), nil
		}
		return Int(0), nil
	})
}
