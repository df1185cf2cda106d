package table

// Drop removes columns from the schema and from every row.
//
// Every name must exist; an absent name fails with ErrColumnNotFound so that
// upstream schema drift surfaces here instead of silently passing.
func Drop(t *Table, columns ...string) (*Table, error) {
	for _, c := range columns {
		if !t.schema.Has(c) {
			return nil, stageErr(StageProject, t, c, ErrColumnNotFound)
		}
	}
	return dropPresent(t, columns), nil
}

// DropIfPresent is Drop with absent names treated as no-ops. Re-applying it
// with the same names to its own output returns an equal table.
func DropIfPresent(t *Table, columns ...string) *Table {
	return dropPresent(t, columns)
}

func dropPresent(t *Table, columns []string) *Table {
	gone := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		gone[c] = struct{}{}
	}

	keep := make([]int, 0, len(t.schema))
	schema := make(Schema, 0, len(t.schema))
	for j, c := range t.schema {
		if _, ok := gone[c.Name]; ok {
			continue
		}
		keep = append(keep, j)
		schema = append(schema, c)
	}
	return build(schema, pick(t.rows, keep))
}

// Select keeps only the named columns, in the given order.
func Select(t *Table, columns ...string) (*Table, error) {
	keep := make([]int, 0, len(columns))
	schema := make(Schema, 0, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		j := t.schema.Index(c)
		if j < 0 {
			return nil, stageErr(StageProject, t, c, ErrColumnNotFound)
		}
		if _, dup := seen[c]; dup {
			return nil, stageErr(StageProject, t, c, ErrNameCollision)
		}
		seen[c] = struct{}{}
		keep = append(keep, j)
		schema = append(schema, t.schema[j])
	}
	return build(schema, pick(t.rows, keep)), nil
}

// Reorder moves the named columns to the front, in the given order. The other
// columns follow in their existing order.
func Reorder(t *Table, first ...string) (*Table, error) {
	keep := make([]int, 0, len(t.schema))
	seen := make(map[int]struct{}, len(first))
	for _, c := range first {
		j := t.schema.Index(c)
		if j < 0 {
			return nil, stageErr(StageProject, t, c, ErrColumnNotFound)
		}
		if _, dup := seen[j]; dup {
			return nil, stageErr(StageProject, t, c, ErrNameCollision)
		}
		seen[j] = struct{}{}
		keep = append(keep, j)
	}
	for j := range t.schema {
		if _, ok := seen[j]; !ok {
			keep = append(keep, j)
		}
	}

	schema := make(Schema, len(keep))
	for k, j := range keep {
		schema[k] = t.schema[j]
	}
	return build(schema, pick(t.rows, keep)), nil
}

func pick(rows [][]Value, idx []int) [][]Value {
	out := make([][]Value, len(rows))
	for i, r := range rows {
		nr := make([]Value, len(idx))
		for k, j := range idx {
			nr[k] = r[j]
		}
		out[i] = nr
	}
	return out
}
