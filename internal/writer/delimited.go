// Package writer serializes tables to delimited text and XLSX.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"

	"phenoetl/internal/table"
)

// NA is the default rendering of a missing value.
const NA = "NA"

// Delimited configures WriteDelimited.
type Delimited struct {
	Comma rune   // default '\t'
	NA    string // default "NA"
	// NoHeader suppresses the header row.
	NoHeader bool
}

// WriteDelimited writes t with a header row. Present values use their
// canonical text; missing values render as d.NA.
func WriteDelimited(w io.Writer, t *table.Table, d Delimited) error {
	comma := d.Comma
	if comma == 0 {
		comma = '\t'
	}
	na := d.NA
	if na == "" {
		na = NA
	}

	cw := csv.NewWriter(w)
	cw.Comma = comma

	if !d.NoHeader {
		if err := cw.Write(t.Schema().Names()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	width := len(t.Schema())
	rec := make([]string, width)
	err := t.Each(func(i int, r table.Row) error {
		for j := 0; j < width; j++ {
			v := r.At(j)
			if v.IsMissing() {
				rec[j] = na
			} else {
				rec[j] = v.Text()
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
