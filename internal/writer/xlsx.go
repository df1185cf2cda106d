package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"phenoetl/internal/table"
)

// WriteXLSX writes t as a single worksheet. Numbers are stored as numeric
// cells; missing values are left empty.
func WriteXLSX(w io.Writer, t *table.Table, sheet string) error {
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}

	names := t.Schema().Names()
	header := make([]any, len(names))
	for i, n := range names {
		header[i] = n
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("xlsx: header: %w", err)
	}

	err = t.Each(func(i int, r table.Row) error {
		row := make([]any, len(names))
		for j := range row {
			row[j] = r.At(j).Any()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", i+1, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: %w", err)
	}
	return nil
}
