// Package json reads JSON record streams into typed tables.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"phenoetl/internal/config"
	"phenoetl/internal/parser"
	"phenoetl/internal/table"
)

// ReadTable parses JSON records from r into a typed table.
//
// Accepted layouts:
//   - a root array of objects (null elements are skipped);
//   - a root object holding an array of objects (envelope): the first array
//     field is the record list and the rest of the object is skipped;
//   - a root object without array fields: one record;
//   - any of the above followed by further objects (NDJSON).
//
// Options:
//   - columns: column order; default is the sorted union of record keys
//   - header_map: original key -> column name
//   - array_join_separator: arrays of strings are joined with it (default ",")
//   - na_values, types: see parser.ReadOptions
//
// Numbers keep their literal text so typing sees "7" and not "7.0". Nested
// objects are rejected.
func ReadTable(ctx context.Context, r io.Reader, opts config.Options) (*table.Table, error) {
	po, err := parser.ReadOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	recs, err := readRecords(ctx, r)
	if err != nil {
		return nil, err
	}

	headerMap := opts.StringMap("header_map")
	sep := strings.TrimSpace(opts.String("array_join_separator", ","))
	if sep == "" {
		sep = ","
	}

	// Rename keys up front so column discovery and lookup agree.
	for i, obj := range recs {
		if len(headerMap) == 0 {
			break
		}
		renamed := make(map[string]any, len(obj))
		for k, v := range obj {
			if m, ok := headerMap[k]; ok && m != "" {
				k = m
			}
			renamed[k] = v
		}
		recs[i] = renamed
	}

	columns := opts.Strings("columns")
	if len(columns) == 0 {
		columns = unionKeys(recs)
	}

	cells := parser.Cells{Names: columns, Rows: make([][]*string, len(recs))}
	for i, obj := range recs {
		row := make([]*string, len(columns))
		for j, col := range columns {
			s, err := scalarText(obj[col], sep)
			if err != nil {
				return nil, fmt.Errorf("json: record %d field %q: %w", i+1, col, err)
			}
			row[j] = s
		}
		cells.Rows[i] = row
	}

	t, err := parser.Build(cells, po)
	if err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return t, nil
}

func unionKeys(recs []map[string]any) []string {
	seen := map[string]struct{}{}
	for _, obj := range recs {
		for k := range obj {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// scalarText flattens a decoded JSON value to cell text. nil stays missing.
func scalarText(v any, sep string) (*string, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		if t {
			s = "true"
		} else {
			s = "false"
		}
	case []any:
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			str, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("array holds %T, only strings can be joined", it)
			}
			ss = append(ss, str)
		}
		s = strings.Join(ss, sep)
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
	return &s, nil
}

// readRecords walks the token stream and collects every record object.
func readRecords(ctx context.Context, r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var recs []map[string]any
	emit := func(obj map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		recs = append(recs, obj)
		return nil
	}

	// Peek the first token so arrays and envelopes are decoded element-wise.
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("json: read first token: %w", err)
	}

	switch d := tok.(type) {
	case json.Delim:
		switch d {
		case '[':
			if err := decodeArrayOfObjects(dec, emit, len(recs)); err != nil {
				return nil, err
			}
			if end, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("json: read array end: %w", err)
			} else if end != json.Delim(']') {
				return nil, fmt.Errorf("json: expected array end ']', got %v", end)
			}

		case '{':
			enveloped, single, err := decodeEnvelopeOrSingle(dec, emit)
			if err != nil {
				return nil, err
			}
			if end, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("json: read object end: %w", err)
			} else if end != json.Delim('}') {
				return nil, fmt.Errorf("json: expected object end '}', got %v", end)
			}
			if !enveloped && single != nil {
				if err := emit(single); err != nil {
					return nil, err
				}
			}

		default:
			return nil, fmt.Errorf("json: unsupported root delimiter %q", d)
		}

	default:
		return nil, fmt.Errorf("json: unsupported root token %T (want object or array)", tok)
	}

	// Optional trailing NDJSON objects.
	for {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				return recs, nil
			}
			return nil, fmt.Errorf("json: record %d: decode trailing object: %w", len(recs)+1, err)
		}
		if err := emit(obj); err != nil {
			return nil, err
		}
	}
}

// decodeArrayOfObjects decodes elements of the current array (after '[' has
// been consumed). Each element must be an object; nulls are skipped.
func decodeArrayOfObjects(dec *json.Decoder, emit func(map[string]any) error, seen int) error {
	n := seen
	for dec.More() {
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("json: record %d: decode array element: %w", n+1, err)
		}
		if raw == nil {
			continue
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("json: record %d: array element not an object (got %T)", n+1, raw)
		}
		n++
		if err := emit(obj); err != nil {
			return err
		}
	}
	return nil
}

// decodeEnvelopeOrSingle walks a root object (after '{' has been consumed).
//
// The first field holding an array is decoded as the record list and the
// remaining fields are skipped. Without such a field the object itself is
// returned as the single record.
func decodeEnvelopeOrSingle(dec *json.Decoder, emit func(map[string]any) error) (enveloped bool, single map[string]any, _ error) {
	single = make(map[string]any)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return false, nil, fmt.Errorf("json: read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return false, nil, fmt.Errorf("json: object key not a string (got %T)", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return false, nil, fmt.Errorf("json: read object value token: %w", err)
		}

		if delim, ok := valTok.(json.Delim); ok && delim == '[' {
			if err := decodeArrayOfObjects(dec, emit, 0); err != nil {
				return false, nil, err
			}
			endTok, err := dec.Token()
			if err != nil {
				return false, nil, fmt.Errorf("json: read envelope array end: %w", err)
			}
			if endTok != json.Delim(']') {
				return false, nil, fmt.Errorf("json: expected ']' after envelope array, got %v", endTok)
			}

			for dec.More() {
				if _, err := dec.Token(); err != nil {
					return true, nil, fmt.Errorf("json: skip envelope key: %w", err)
				}
				if err := skipNextValue(dec); err != nil {
					return true, nil, err
				}
			}
			return true, nil, nil
		}

		if _, ok := valTok.(json.Delim); ok {
			// Nested values are not materialized; ReadTable rejects the field
			// if it ends up as a column.
			if err := skipValueFromFirstToken(dec, valTok); err != nil {
				return false, nil, err
			}
			single[key] = map[string]any{}
			continue
		}
		single[key] = valTok
	}

	return false, single, nil
}

// skipNextValue skips the next JSON value without materializing it.
func skipNextValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: skip value token: %w", err)
	}
	return skipValueFromFirstToken(dec, tok)
}

func skipValueFromFirstToken(dec *json.Decoder, tok any) error {
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch d {
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return fmt.Errorf("json: skip object key: %w", err)
			}
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
		end, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: skip object end: %w", err)
		}
		if end != json.Delim('}') {
			return fmt.Errorf("json: expected '}', got %v", end)
		}
		return nil

	case '[':
		for dec.More() {
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
		end, err := dec.Token()
		if err != nil {
			return fmt.Errorf("json: skip array end: %w", err)
		}
		if end != json.Delim(']') {
			return fmt.Errorf("json: expected ']', got %v", end)
		}
		return nil

	default:
		return fmt.Errorf("json: unexpected delimiter %q", d)
	}
}
