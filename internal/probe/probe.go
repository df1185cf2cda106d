// Package probe profiles a loaded input table: per-column kind, missing and
// distinct counts, numeric ranges, and the columns that look like grouping
// or join keys. It backs `phenoetl probe` and is used to write the `types`
// block of a parser config.
package probe

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"phenoetl/internal/table"
)

// distinctCapPerColumn bounds memory for high-cardinality columns.
const distinctCapPerColumn = 10000

// ColumnStats describes one column.
type ColumnStats struct {
	Name     string
	Kind     table.Kind
	Present  int
	Missing  int
	Distinct int
	// Capped is set when distinct counting stopped at distinctCapPerColumn.
	Capped bool

	// Numeric summaries; valid only when Kind is numeric and Present > 0.
	Min, Max, Mean float64
}

// Ratio is distinct values per present value.
func (c ColumnStats) Ratio() float64 {
	if c.Present == 0 {
		return 0
	}
	return float64(c.Distinct) / float64(c.Present)
}

// Report is the profile of one table.
type Report struct {
	Rows    int
	Columns []ColumnStats
}

// Profile scans t once per column.
func Profile(t *table.Table) (Report, error) {
	schema := t.Schema()
	rep := Report{Rows: t.Len(), Columns: make([]ColumnStats, 0, len(schema))}

	for _, col := range schema {
		vals, err := t.Column(col.Name)
		if err != nil {
			return Report{}, err
		}
		cs := ColumnStats{Name: col.Name, Kind: col.Kind}

		seen := make(map[string]struct{})
		var nums []float64
		for _, v := range vals {
			if v.IsMissing() {
				cs.Missing++
				continue
			}
			cs.Present++
			if f, ok := v.Float64(); ok {
				nums = append(nums, f)
			}
			if cs.Capped {
				continue
			}
			seen[v.Text()] = struct{}{}
			if len(seen) >= distinctCapPerColumn {
				cs.Capped = true
				seen = nil
			}
		}
		if cs.Capped {
			cs.Distinct = distinctCapPerColumn
		} else {
			cs.Distinct = len(seen)
		}
		if col.Kind.Numeric() && len(nums) > 0 {
			cs.Min = floats.Min(nums)
			cs.Max = floats.Max(nums)
			cs.Mean = stat.Mean(nums, nil)
		}
		rep.Columns = append(rep.Columns, cs)
	}
	return rep, nil
}

// KeyCandidates returns up to five columns with repeated values, most
// repetitive first: the columns a group_mean or left_join would key on.
// row_hash and all-distinct columns are skipped.
func KeyCandidates(rep Report) []string {
	type cand struct {
		col   string
		ratio float64
	}

	cands := make([]cand, 0, len(rep.Columns))
	for _, c := range rep.Columns {
		if c.Name == "row_hash" || c.Present == 0 || c.Distinct == 0 {
			continue
		}
		r := c.Ratio()
		if r > 0.90 {
			continue
		}
		cands = append(cands, cand{col: c.Name, ratio: r})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].ratio == cands[j].ratio {
			return cands[i].col < cands[j].col
		}
		return cands[i].ratio < cands[j].ratio
	})

	const maxCandidates = 5
	out := make([]string, 0, maxCandidates)
	for _, c := range cands {
		out = append(out, c.col)
		if len(out) >= maxCandidates {
			break
		}
	}
	return out
}

// SuggestTypes maps each column to the type name a parser `types` option
// accepts, so an inferred schema can be pinned in config.
func SuggestTypes(rep Report) map[string]string {
	out := make(map[string]string, len(rep.Columns))
	for _, c := range rep.Columns {
		switch c.Kind {
		case table.KindInt:
			out[c.Name] = "bigint"
		case table.KindFloat:
			out[c.Name] = "double"
		default:
			out[c.Name] = "text"
		}
	}
	return out
}

// Format renders rep as a tab-separated report.
func Format(rep Report) string {
	if rep.Rows == 0 {
		return "profile: no rows"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "profile:\trows=%d\n", rep.Rows)
	fmt.Fprintf(&b, "%-15s\t%-6s\t%-7s\t%-7s\t%-7s\tratio\tmin\tmax\tmean\n", "col", "kind", "present", "missing", "unique")
	for _, c := range rep.Columns {
		unique := fmt.Sprintf("%d", c.Distinct)
		if c.Capped {
			unique += "+"
		}
		minS, maxS, meanS := "-", "-", "-"
		if c.Kind.Numeric() && c.Present > 0 {
			minS, maxS, meanS = fmtNum(c.Min), fmtNum(c.Max), fmtNum(c.Mean)
		}
		fmt.Fprintf(&b, "%-15s\t%-6s\t%-7d\t%-7d\t%-7s\t%.1f%%\t%s\t%s\t%s\n",
			c.Name, c.Kind, c.Present, c.Missing, unique, c.Ratio()*100, minS, maxS, meanS)
	}
	if keys := KeyCandidates(rep); len(keys) > 0 {
		fmt.Fprintf(&b, "key candidates:\t%s\n", strings.Join(keys, ","))
	}
	return strings.TrimRight(b.String(), "\n")
}

func fmtNum(f float64) string {
	return fmt.Sprintf("%.4g", f)
}
