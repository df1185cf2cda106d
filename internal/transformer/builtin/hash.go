// Package builtin contains simple, reusable row transforms used by the
// pipeline engine.
package builtin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"phenoetl/internal/table"
)

// Hash computes a deterministic SHA-256 hash from selected columns and stores
// it in a target string column.
//
// This gives database sinks a stable, always-non-null dedupe key, so a rerun
// of the same pipeline does not duplicate rows even when natural-key columns
// hold missing values (NULLs are distinct under UNIQUE).
//
// JSON options expected by this step (typical):
//
//	{
//	  "kind": "row_hash",
//	  "options": {
//	    "fields": ["population", "fam", "mean.d13c"],
//	    "target": "row_hash",
//	    "include_field_names": true,
//	    "trim_space": true
//	  }
//	}
//
// Canonicalization rules:
//   - Fields are concatenated in the given order using Separator.
//   - Missing values are encoded as a single NUL byte so missing differs
//     from the empty string.
//   - Present values use their canonical text form (table.Value.Text).
//   - Output is a lowercase hex string (length 64).
type Hash struct {
	// Fields is the ordered list of input columns used to compute the hash.
	Fields []string

	// TargetField is the column the hash is written to.
	TargetField string

	// IncludeFieldNames includes "field=value" in the canonical form.
	// This reduces accidental collisions when many fields are missing/empty.
	IncludeFieldNames bool

	// Separator used between field components. Defaults to ASCII Unit
	// Separator (0x1f).
	Separator string

	// Overwrite replaces an existing TargetField column (which then moves to
	// the end of the schema). If false, a table that already has the column
	// is returned unchanged.
	Overwrite bool

	// TrimSpace trims leading/trailing ASCII whitespace from string values.
	TrimSpace bool
}

// Apply returns a new table carrying the hash column.
func (h Hash) Apply(t *table.Table) (*table.Table, error) {
	if h.TargetField == "" || len(h.Fields) == 0 {
		return nil, fmt.Errorf("row_hash: target and fields are required")
	}
	schema := t.Schema()
	for _, f := range h.Fields {
		if f == h.TargetField {
			return nil, &table.StageError{
				Stage:  "row_hash",
				Column: f,
				Rows:   t.Len(),
				Err:    fmt.Errorf("%w: target is also a hashed field", table.ErrNameCollision),
			}
		}
		if !schema.Has(f) {
			return nil, &table.StageError{Stage: "row_hash", Column: f, Rows: t.Len(), Err: table.ErrColumnNotFound}
		}
	}
	if schema.Has(h.TargetField) {
		if !h.Overwrite {
			return t, nil
		}
		t = table.DropIfPresent(t, h.TargetField)
	}

	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}

	return table.Derive(t, h.TargetField, table.KindString, func(r table.Row) (table.Value, error) {
		sum, err := hashRow(r, h.Fields, sep, h.IncludeFieldNames, h.TrimSpace)
		if err != nil {
			return table.Value{}, err
		}
		return table.String(hex.EncodeToString(sum[:])), nil
	})
}

func hashRow(r table.Row, fields []string, sep string, includeNames, trimSpace bool) ([sha256.Size]byte, error) {
	var b strings.Builder

	// Heuristic: reduce reallocs for common short-ish fields.
	b.Grow(len(fields) * 20)

	for i, f := range fields {
		if i > 0 {
			b.WriteString(sep)
		}
		if includeNames {
			b.WriteString(f)
			b.WriteByte('=')
		}

		v, err := r.Get(f)
		if err != nil {
			return [sha256.Size]byte{}, err
		}
		if v.IsMissing() {
			b.WriteByte('\x00')
			continue
		}
		s := v.Text()
		if trimSpace && v.Kind() == table.KindString && HasEdgeSpace(s) {
			s = strings.TrimSpace(s)
		}
		b.WriteString(s)
	}

	return sha256.Sum256([]byte(b.String())), nil
}

// HasEdgeSpace reports whether s starts or ends with a space or tab. It lets
// hot paths skip strings.TrimSpace for the common clean case.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[len(s)-1] == ' ' || s[0] == '\t' || s[len(s)-1] == '\t'
}
