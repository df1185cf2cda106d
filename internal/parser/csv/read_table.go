// Package csv reads delimited text into typed tables.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"phenoetl/internal/config"
	"phenoetl/internal/parser"
	"phenoetl/internal/table"
	"phenoetl/internal/transformer/builtin"
)

// ReadTable parses delimited text from src into a typed table.
func ReadTable(ctx context.Context, src io.Reader, opt config.Options) (*table.Table, error) {
	po, err := parser.ReadOptions(opt)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	cells, err := ReadCells(ctx, src, opt)
	if err != nil {
		return nil, err
	}
	t, err := parser.Build(*cells, po)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	return t, nil
}

// ReadCells parses delimited text from src into untyped cells.
//
// Options:
//   - comma (default ","; "tab" or "\t" for TSV)
//   - has_header (default true); without a header, columns are named from
//     the "columns" option or col1..colN
//   - trim_space (default true)
//   - header_map: original header -> column name; unmapped headers are
//     lower-cased with spaces replaced by "_"
//   - na_values (default ["", "NA"]) and types, see parser.ReadOptions
//   - encoding: any WHATWG label (e.g. "windows-1250"); default utf-8
//   - lazy_quotes, fields_per_record: passed to encoding/csv
//
// The first malformed record aborts the read with its line number.
func ReadCells(ctx context.Context, src io.Reader, opt config.Options) (*parser.Cells, error) {
	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", true)
	hm := opt.StringMap("header_map")

	r, err := decodeReader(src, opt.String("encoding", ""))
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	if fieldsPer := opt.Int("fields_per_record", 0); fieldsPer != 0 {
		cr.FieldsPerRecord = fieldsPer
	} else {
		cr.FieldsPerRecord = -1
	}

	out := &parser.Cells{}
	line := 0
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	if hasHeader {
		hdr, err := readRec()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read header: %w", err)
		}
		out.Names = normalizeHeader(hdr, hm)
	} else if cols := opt.Strings("columns"); len(cols) > 0 {
		out.Names = cols
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := readRec()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		if out.Names == nil {
			out.Names = make([]string, len(rec))
			for i := range rec {
				out.Names[i] = fmt.Sprintf("col%d", i+1)
			}
		}
		if len(rec) > len(out.Names) {
			return nil, fmt.Errorf("csv: line %d: %d fields, header has %d", line, len(rec), len(out.Names))
		}

		row := make([]*string, len(out.Names))
		for i, v := range rec {
			if trim && builtin.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			row[i] = &v
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func normalizeHeader(hdr []string, hm map[string]string) []string {
	names := make([]string, len(hdr))
	for i, h := range hdr {
		if builtin.HasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if mapped, ok := hm[h]; ok {
			h = mapped
		} else {
			h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		}
		names[i] = h
	}
	return names
}

func decodeReader(src io.Reader, label string) (io.Reader, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return src, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("csv: encoding %q: %w", label, err)
	}
	return transform.NewReader(src, enc.NewDecoder()), nil
}
