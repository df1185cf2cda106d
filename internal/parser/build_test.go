package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"phenoetl/internal/config"
	"phenoetl/internal/table"
)

func TestBuild_InfersKinds(t *testing.T) {
	o, err := ReadOptions(config.Options{})
	require.NoError(t, err)

	tb, err := Build(Cells{
		Names: []string{"family", "elev", "d13c", "note"},
		Rows: [][]*string{
			{Str("7"), Str("120"), Str("-30.5"), Str("ok")},
			{Str("8"), Str("NA"), Str("-29"), nil},
			{Str("9"), Str("95"), Str(""), Str("Inf")},
		},
	}, o)
	require.NoError(t, err)

	want := table.Schema{
		{Name: "family", Kind: table.KindInt},
		{Name: "elev", Kind: table.KindInt},
		{Name: "d13c", Kind: table.KindFloat},
		{Name: "note", Kind: table.KindString},
	}
	require.Equal(t, want, tb.Schema())

	v, err := tb.Value(1, "elev")
	require.NoError(t, err)
	require.True(t, v.IsMissing())

	v, err = tb.Value(2, "d13c")
	require.NoError(t, err)
	require.True(t, v.IsMissing())
}

func TestBuild_DeclaredTypesWin(t *testing.T) {
	o, err := ReadOptions(config.Options{
		"types":     map[string]any{"family": "text", "d13c": "float"},
		"na_values": []any{"", "NA", "-"},
	})
	require.NoError(t, err)

	tb, err := Build(Cells{
		Names: []string{"family", "d13c"},
		Rows:  [][]*string{{Str("7"), Str("-")}, {Str("8"), Str("-30")}},
	}, o)
	require.NoError(t, err)
	require.Equal(t, table.KindString, tb.Schema()[0].Kind)

	v, _ := tb.Value(0, "d13c")
	require.True(t, v.IsMissing())
	v, _ = tb.Value(1, "d13c")
	f, ok := v.Float64()
	require.True(t, ok)
	require.Equal(t, -30.0, f)
}

func TestBuild_DeclaredTypeMismatchReportsRecord(t *testing.T) {
	o, err := ReadOptions(config.Options{"types": map[string]any{"d13c": "float"}})
	require.NoError(t, err)

	_, err = Build(Cells{
		Names: []string{"d13c"},
		Rows:  [][]*string{{Str("-30")}, {Str("oops")}},
	}, o)
	require.ErrorContains(t, err, `record 2 column "d13c"`)
}

func TestBuild_DuplicateHeader(t *testing.T) {
	_, err := Build(Cells{Names: []string{"a", "a"}}, Options{})
	require.ErrorIs(t, err, table.ErrSchema)
}

func TestReadOptions_UnknownType(t *testing.T) {
	_, err := ReadOptions(config.Options{"types": map[string]any{"x": "blob"}})
	require.ErrorContains(t, err, "types.x")
}
