package csv

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"phenoetl/internal/config"
	"phenoetl/internal/table"
)

const phenotypeCSV = "\uFEFFGroup,Population,Family,Plot,Block,d13C\n" +
	"1,P1,A,1,1,-31\n" +
	"1, P1 ,A,2,1,-29\n" +
	"2,P1,A,3,2,NA\n" +
	"1,P2,B,1,1,\n"

func TestReadTable_HeaderNormalizationAndTyping(t *testing.T) {
	tb, err := ReadTable(context.Background(), strings.NewReader(phenotypeCSV), config.Options{
		"types": map[string]any{"group": "text"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"group", "population", "family", "plot", "block", "d13c"}, tb.Schema().Names())
	require.Equal(t, 4, tb.Len())

	sc := tb.Schema()
	require.Equal(t, table.KindString, sc[0].Kind)
	require.Equal(t, table.KindInt, sc[3].Kind)
	require.Equal(t, table.KindInt, sc[5].Kind, "whole-number isotope values infer as int")

	v, err := tb.Value(1, "population")
	require.NoError(t, err)
	require.Equal(t, "P1", v.Text())

	for _, i := range []int{2, 3} {
		v, err := tb.Value(i, "d13c")
		require.NoError(t, err)
		require.True(t, v.IsMissing(), "row %d", i)
	}
}

func TestReadTable_TabAndHeaderMap(t *testing.T) {
	in := "fam id\tElev\nA\t120\nB\t95.5\n"
	tb, err := ReadTable(context.Background(), strings.NewReader(in), config.Options{
		"comma":      "tab",
		"header_map": map[string]any{"fam id": "family"},
	})
	require.NoError(t, err)
	require.Equal(t, table.Schema{
		{Name: "family", Kind: table.KindString},
		{Name: "elev", Kind: table.KindFloat},
	}, tb.Schema())
}

func TestReadTable_NoHeader(t *testing.T) {
	tb, err := ReadTable(context.Background(), strings.NewReader("a,1\nb,2\n"), config.Options{
		"has_header": false,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"col1", "col2"}, tb.Schema().Names())

	tb, err = ReadTable(context.Background(), strings.NewReader("a,1\n"), config.Options{
		"has_header": false,
		"columns":    "family,elev",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"family", "elev"}, tb.Schema().Names())
}

func TestReadTable_ShortRowsPadMissing(t *testing.T) {
	tb, err := ReadTable(context.Background(), strings.NewReader("a,b\n1\n2,3\n"), config.Options{})
	require.NoError(t, err)
	v, err := tb.Value(0, "b")
	require.NoError(t, err)
	require.True(t, v.IsMissing())
}

func TestReadTable_FailsFastWithLine(t *testing.T) {
	_, err := ReadTable(context.Background(), strings.NewReader("a,b\n1,2\n3,4,5\n"), config.Options{})
	require.ErrorContains(t, err, "line 3")

	_, err = ReadTable(context.Background(), strings.NewReader("a\n\"x\n"), config.Options{})
	require.Error(t, err)
}

func TestReadTable_Encoding(t *testing.T) {
	raw, err := charmap.Windows1250.NewEncoder().String("population\nKošice\n")
	require.NoError(t, err)

	tb, err := ReadTable(context.Background(), bytes.NewReader([]byte(raw)), config.Options{
		"encoding": "windows-1250",
	})
	require.NoError(t, err)
	v, err := tb.Value(0, "population")
	require.NoError(t, err)
	require.Equal(t, "Košice", v.Text())

	_, err = ReadTable(context.Background(), strings.NewReader("a\n"), config.Options{"encoding": "klingon"})
	require.ErrorContains(t, err, "encoding")
}

func TestReadTable_EmptyInput(t *testing.T) {
	tb, err := ReadTable(context.Background(), strings.NewReader(""), config.Options{})
	require.NoError(t, err)
	require.Equal(t, 0, tb.Len())
}

func TestReadTable_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadTable(ctx, strings.NewReader("a\n1\n"), config.Options{})
	require.ErrorIs(t, err, context.Canceled)
}
