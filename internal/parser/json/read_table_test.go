package json

import (
	"context"
	"errors"
	"strings"
	"testing"

	"phenoetl/internal/config"
	"phenoetl/internal/table"
)

func mustText(t *testing.T, tb *table.Table, i int, col string) string {
	t.Helper()
	v, err := tb.Value(i, col)
	if err != nil {
		t.Fatalf("Value(%d,%q): %v", i, col, err)
	}
	return v.String()
}

func TestReadTable_RootArrayAndTrailingNDJSON(t *testing.T) {
	input := `[
		{"family": "A", "elev": 120, "tags": ["x", "y"]},
		null,
		{"family": "B", "elev": null, "tags": []}
	]
	{"family": "C", "elev": 95, "tags": ["z"]}`

	tb, err := ReadTable(context.Background(), strings.NewReader(input), config.Options{
		"array_join_separator": "|",
	})
	if err != nil {
		t.Fatalf("ReadTable() err=%v", err)
	}
	if tb.Len() != 3 {
		t.Fatalf("rows=%d, want 3", tb.Len())
	}

	names := strings.Join(tb.Schema().Names(), ",")
	if names != "elev,family,tags" {
		t.Fatalf("columns=%q, want sorted union", names)
	}
	if k := tb.Schema()[0].Kind; k != table.KindInt {
		t.Fatalf("elev kind=%s, want int", k)
	}

	cases := []struct {
		row       int
		col, want string
	}{
		{0, "tags", "x|y"},
		{1, "elev", "NA"},
		{1, "tags", "NA"}, // empty join is "" which is a default NA token
		{2, "family", "C"},
		{2, "elev", "95"},
	}
	for _, c := range cases {
		if got := mustText(t, tb, c.row, c.col); got != c.want {
			t.Fatalf("row %d %s=%q, want %q", c.row, c.col, got, c.want)
		}
	}
}

func TestReadTable_EnvelopeUsesFirstArrayField(t *testing.T) {
	input := `{
		"meta": {"ignore": [1,2,3]},
		"records": [{"x": 1}, {"x": 2.5}],
		"other": {"deep": [{"k": "v"}], "n": 10}
	}
	{"x": 3}`

	tb, err := ReadTable(context.Background(), strings.NewReader(input), config.Options{})
	if err != nil {
		t.Fatalf("ReadTable() err=%v", err)
	}
	if tb.Len() != 3 {
		t.Fatalf("rows=%d, want 3", tb.Len())
	}
	if k := tb.Schema()[0].Kind; k != table.KindFloat {
		t.Fatalf("x kind=%s, want float", k)
	}
	if got := mustText(t, tb, 1, "x"); got != "2.5" {
		t.Fatalf("x[1]=%q, want 2.5", got)
	}
}

func TestReadTable_SingleObjectAndColumns(t *testing.T) {
	input := `{"x": 1, "nested": {"y": 2}, "flag": true}`

	tb, err := ReadTable(context.Background(), strings.NewReader(input), config.Options{
		"columns": []any{"flag", "x"},
	})
	if err != nil {
		t.Fatalf("ReadTable() err=%v", err)
	}
	if tb.Len() != 1 {
		t.Fatalf("rows=%d, want 1", tb.Len())
	}
	if got := mustText(t, tb, 0, "flag"); got != "true" {
		t.Fatalf("flag=%q, want true", got)
	}

	_, err = ReadTable(context.Background(), strings.NewReader(input), config.Options{})
	if err == nil || !strings.Contains(err.Error(), `field "nested"`) {
		t.Fatalf("err=%v, want nested field rejection", err)
	}
}

func TestReadTable_HeaderMapAndTypes(t *testing.T) {
	input := `[{"Family": 7, "d13C": -30}]`
	tb, err := ReadTable(context.Background(), strings.NewReader(input), config.Options{
		"header_map": map[string]any{"Family": "family", "d13C": "d13c"},
		"types":      map[string]any{"family": "text", "d13c": "float"},
	})
	if err != nil {
		t.Fatalf("ReadTable() err=%v", err)
	}
	want := table.Schema{{Name: "d13c", Kind: table.KindFloat}, {Name: "family", Kind: table.KindString}}
	got := tb.Schema()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("schema=%v, want %v", got, want)
	}
}

func TestReadTable_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadTable(ctx, strings.NewReader(`[{"a": 1}]`), config.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestReadTable_ErrorPaths(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"root_null", `null`, "unsupported root token"},
		{"bad_first_token", `(`, "read first token"},
		{"array_element_not_object", `[1]`, "record 1: array element not an object"},
		{"envelope_element_not_object", `{"records":[1]}`, "array element not an object"},
		{"trailing_garbage", `{"x":1} not-json`, "record 2: decode trailing object"},
		{"mixed_array_field", `[{"x": ["a", 1]}]`, "only strings can be joined"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadTable(context.Background(), strings.NewReader(tc.input), config.Options{})
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%q, want substring %q", err.Error(), tc.want)
			}
		})
	}
}

func TestReadTable_Empty(t *testing.T) {
	tb, err := ReadTable(context.Background(), strings.NewReader(""), config.Options{})
	if err != nil {
		t.Fatalf("ReadTable() err=%v", err)
	}
	if tb.Len() != 0 {
		t.Fatalf("rows=%d, want 0", tb.Len())
	}
}
