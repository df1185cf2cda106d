package table

import "fmt"

// LeftJoin returns one row per row of left, in left order, with right's
// non-key columns appended. Unmatched left rows get missing values for those
// columns; right rows without a match are dropped.
//
// Keys match by canonical text. A missing key matches nothing.
//
// Errors:
//   - ErrColumnNotFound if key is absent on either side.
//   - ErrNameCollision if a right non-key column name already exists on left.
//   - ErrAmbiguousJoin if right holds the same key on more than one row; no
//     partial output is produced.
func LeftJoin(left, right *Table, key string) (*Table, error) {
	lk := left.schema.Index(key)
	if lk < 0 {
		return nil, stageErr(StageJoin, left, key, fmt.Errorf("%w: left side", ErrColumnNotFound))
	}
	rk := right.schema.Index(key)
	if rk < 0 {
		return nil, stageErr(StageJoin, left, key, fmt.Errorf("%w: right side", ErrColumnNotFound))
	}

	schema := left.Schema()
	rcols := make([]int, 0, len(right.schema)-1)
	for j, c := range right.schema {
		if j == rk {
			continue
		}
		if left.schema.Has(c.Name) {
			return nil, stageErr(StageJoin, left, c.Name, ErrNameCollision)
		}
		rcols = append(rcols, j)
		schema = append(schema, c)
	}

	index := make(map[string]int, len(right.rows))
	for i, r := range right.rows {
		k := r[rk]
		if k.IsMissing() {
			continue
		}
		if _, dup := index[k.Text()]; dup {
			return nil, &StageError{
				Stage:  StageJoin,
				Column: key,
				Key:    k.Text(),
				Rows:   left.Len(),
				Err:    fmt.Errorf("%w: key occurs more than once on the right side", ErrAmbiguousJoin),
			}
		}
		index[k.Text()] = i
	}

	out := make([][]Value, len(left.rows))
	for i, lr := range left.rows {
		nr := make([]Value, 0, len(schema))
		nr = append(nr, lr...)

		ri, ok := -1, false
		if k := lr[lk]; !k.IsMissing() {
			ri, ok = index[k.Text()]
		}
		for _, j := range rcols {
			if ok {
				nr = append(nr, right.rows[ri][j])
			} else {
				nr = append(nr, Missing(right.schema[j].Kind))
			}
		}
		out[i] = nr
	}
	return build(schema, out), nil
}
