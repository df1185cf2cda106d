// Package parser turns decoded text records into typed tables. The csv and
// json sub-packages handle the wire formats and hand their cells here.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"phenoetl/internal/config"
	"phenoetl/internal/table"
)

// DefaultNA are the tokens read as missing when na_values is not configured.
var DefaultNA = []string{"", "NA"}

// Cells is a decoded record set: column names plus raw cell text. A nil
// cell pointer is a missing value that never went through na_values.
type Cells struct {
	Names []string
	Rows  [][]*string
}

// Options are the typing knobs shared by all parsers.
type Options struct {
	NA    map[string]struct{}
	Types map[string]table.Kind
}

// ReadOptions extracts na_values and types from a parser option bag.
func ReadOptions(opt config.Options) (Options, error) {
	na := DefaultNA
	if opt.Has("na_values") {
		na = opt.Strings("na_values")
	}
	o := Options{
		NA:    make(map[string]struct{}, len(na)),
		Types: make(map[string]table.Kind),
	}
	for _, s := range na {
		o.NA[s] = struct{}{}
	}
	for col, name := range opt.StringMap("types") {
		k, err := table.ParseKind(name)
		if err != nil {
			return Options{}, fmt.Errorf("types.%s: %w", col, err)
		}
		o.Types[col] = k
	}
	return o, nil
}

// Build types every column and constructs the table. Declared types win;
// the rest are inferred as int, then float, then string over the non-missing
// cells. A cell that fails its declared type is reported with its 1-based
// record number.
func Build(c Cells, o Options) (*table.Table, error) {
	schema := make(table.Schema, len(c.Names))
	for j, name := range c.Names {
		k, ok := o.Types[name]
		if !ok {
			k = infer(c.Rows, j, o.NA)
		}
		schema[j] = table.Column{Name: name, Kind: k}
	}
	if _, err := table.NewSchema(schema...); err != nil {
		return nil, err
	}

	rows := make([][]table.Value, len(c.Rows))
	for i, rec := range c.Rows {
		row := make([]table.Value, len(schema))
		for j, col := range schema {
			raw, present := cell(rec, j, o.NA)
			if !present {
				row[j] = table.Missing(col.Kind)
				continue
			}
			v, err := table.Parse(col.Kind, raw)
			if err != nil {
				return nil, fmt.Errorf("record %d column %q: %w", i+1, col.Name, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return table.New(schema, rows)
}

func cell(rec []*string, j int, na map[string]struct{}) (string, bool) {
	if j >= len(rec) || rec[j] == nil {
		return "", false
	}
	if _, ok := na[*rec[j]]; ok {
		return "", false
	}
	return *rec[j], true
}

func infer(rows [][]*string, j int, na map[string]struct{}) table.Kind {
	isInt, isFloat, seen := true, true, false
	for _, rec := range rows {
		raw, ok := cell(rec, j, na)
		if !ok {
			continue
		}
		seen = true
		if isInt {
			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				isInt = false
			}
		}
		if !isInt {
			if _, err := strconv.ParseFloat(raw, 64); err != nil || !looksNumeric(raw) {
				isFloat = false
				break
			}
		}
	}
	switch {
	case !seen:
		return table.KindString
	case isInt:
		return table.KindInt
	case isFloat:
		return table.KindFloat
	default:
		return table.KindString
	}
}

// looksNumeric rejects words ParseFloat accepts ("Inf", "nan", "infinity")
// so that a text column holding them is not typed as float.
func looksNumeric(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return s != "" && (s[0] == '.' || (s[0] >= '0' && s[0] <= '9'))
}

// Str is a convenience for building Cells by hand.
func Str(s string) *string { return &s }
