package table

// Stage names used in StageError.
const (
	StageFilter    = "filter"
	StageProject   = "project"
	StageRename    = "rename"
	StageDerive    = "derive"
	StageAggregate = "group_mean"
	StageJoin      = "left_join"
)

// Filter keeps the rows for which pred returns true. A predicate error aborts
// the stage.
func Filter(t *Table, pred func(Row) (bool, error)) (*Table, error) {
	out := make([][]Value, 0, len(t.rows))
	for _, vals := range t.rows {
		keep, err := pred(Row{schema: t.schema, vals: vals})
		if err != nil {
			return nil, stageErr(StageFilter, t, "", err)
		}
		if keep {
			out = append(out, vals)
		}
	}
	return build(t.schema, out), nil
}

// DropMissing removes the rows whose value in column is missing.
func DropMissing(t *Table, column string) (*Table, error) {
	j := t.schema.Index(column)
	if j < 0 {
		return nil, stageErr(StageFilter, t, column, ErrColumnNotFound)
	}
	out := make([][]Value, 0, len(t.rows))
	for _, vals := range t.rows {
		if !vals[j].IsMissing() {
			out = append(out, vals)
		}
	}
	return build(t.schema, out), nil
}

// FilterNotIn keeps the rows whose value in column is not one of excluded.
// Values are compared by canonical text, so an int column holding 2 matches
// the excluded value "2". Missing values are kept.
func FilterNotIn(t *Table, column string, excluded []string) (*Table, error) {
	j := t.schema.Index(column)
	if j < 0 {
		return nil, stageErr(StageFilter, t, column, ErrColumnNotFound)
	}

	drop := make(map[string]struct{}, len(excluded))
	for _, v := range excluded {
		drop[v] = struct{}{}
	}

	out := make([][]Value, 0, len(t.rows))
	for _, vals := range t.rows {
		v := vals[j]
		if !v.IsMissing() {
			if _, ok := drop[v.Text()]; ok {
				continue
			}
		}
		out = append(out, vals)
	}
	return build(t.schema, out), nil
}
