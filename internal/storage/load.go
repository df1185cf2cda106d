package storage

import (
	"context"
	"fmt"

	"phenoetl/internal/metrics"
	"phenoetl/internal/table"
)

// DefaultBatchSize bounds rows per INSERT statement.
const DefaultBatchSize = 500

// LoadOptions control Load.
type LoadOptions struct {
	BatchSize int
	// Dedupe names the columns backing idempotent inserts; usually row_hash.
	Dedupe []string
}

// Load creates the destination table if needed and inserts t in batches.
// It returns the number of rows the backend reported as inserted, which is
// lower than t.Len() when dedupe skipped rows.
func Load(ctx context.Context, repo Repository, name string, t *table.Table, opt LoadOptions) (int64, error) {
	spec, err := SpecFor(name, t.Schema(), opt.Dedupe)
	if err != nil {
		return 0, err
	}
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, err
	}

	batch := opt.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	columns := t.Schema().Names()
	rows := RowsAny(t)

	var total int64
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		n, err := repo.InsertRows(ctx, name, columns, rows[start:end], opt.Dedupe)
		if err != nil {
			return total, fmt.Errorf("insert %s rows %d-%d: %w", name, start+1, end, err)
		}
		metrics.RecordBatch()
		metrics.RecordRows("inserted", n)
		total += n
	}
	return total, nil
}

// RowsAny converts table rows into driver arguments (missing becomes nil).
func RowsAny(t *table.Table) [][]any {
	width := len(t.Schema())
	out := make([][]any, t.Len())
	_ = t.Each(func(i int, r table.Row) error {
		row := make([]any, width)
		for j := range row {
			row[j] = r.At(j).Any()
		}
		out[i] = row
		return nil
	})
	return out
}
