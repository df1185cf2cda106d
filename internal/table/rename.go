package table

import "fmt"

// Rename replaces column names using an old->new mapping. Row values and
// untouched columns are unchanged.
//
// Errors:
//   - ErrColumnNotFound if an old name is absent.
//   - ErrNameCollision if a new name is already used by an untouched column,
//     or if two old names map to the same new name.
//
// Swaps ({"a": "b", "b": "a"}) are allowed: both names are being renamed, so
// neither target is held by an untouched column.
func Rename(t *Table, mapping map[string]string) (*Table, error) {
	for old := range mapping {
		if !t.schema.Has(old) {
			return nil, stageErr(StageRename, t, old, ErrColumnNotFound)
		}
	}

	targets := make(map[string]string, len(mapping))
	schema := make(Schema, len(t.schema))
	for j, c := range t.schema {
		schema[j] = c
		nn, ok := mapping[c.Name]
		if !ok {
			continue
		}
		if nn == "" {
			return nil, stageErr(StageRename, t, c.Name, fmt.Errorf("%w: empty target name", ErrSchema))
		}
		if prev, dup := targets[nn]; dup {
			return nil, stageErr(StageRename, t, nn, fmt.Errorf("%w: %q and %q both renamed to %q", ErrNameCollision, prev, c.Name, nn))
		}
		targets[nn] = c.Name
		schema[j].Name = nn
	}

	for _, c := range t.schema {
		if _, renamed := mapping[c.Name]; renamed {
			continue
		}
		if src, ok := targets[c.Name]; ok {
			return nil, stageErr(StageRename, t, c.Name, fmt.Errorf("%w: %q renamed onto existing column", ErrNameCollision, src))
		}
	}

	// Rows are shared: tables never mutate them.
	return build(schema, t.rows), nil
}
