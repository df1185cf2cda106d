package writer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"phenoetl/internal/table"
)

func analysis() *table.Table {
	return table.MustNew(table.Schema{
		{Name: "population", Kind: table.KindString},
		{Name: "fam", Kind: table.KindString},
		{Name: "elev", Kind: table.KindInt},
		{Name: "mean.d13c", Kind: table.KindFloat},
	}, [][]table.Value{
		{table.String("P1"), table.String("A"), table.Int(120), table.Float(-30)},
		{table.String("P1"), table.String("B"), table.Int(95), table.Missing(table.KindFloat)},
		{table.String("P2"), table.String("C"), table.Missing(table.KindInt), table.Float(-27.25)},
	})
}

func TestWriteDelimited_TSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDelimited(&buf, analysis(), Delimited{}))

	want := "population\tfam\telev\tmean.d13c\n" +
		"P1\tA\t120\t-30\n" +
		"P1\tB\t95\tNA\n" +
		"P2\tC\tNA\t-27.25\n"
	require.Equal(t, want, buf.String())
}

func TestWriteDelimited_CSVCustomNA(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDelimited(&buf, analysis(), Delimited{Comma: ',', NA: "-", NoHeader: true}))
	require.Equal(t, "P1,A,120,-30\nP1,B,95,-\nP2,C,-,-27.25\n", buf.String())
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, analysis(), "analysis"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"analysis"}, f.GetSheetList())
	rows, err := f.GetRows("analysis")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"population", "fam", "elev", "mean.d13c"}, rows[0])
	require.Equal(t, []string{"P1", "A", "120", "-30"}, rows[1])
	require.Equal(t, "P1", rows[2][0])
	require.Len(t, rows[2], 3, "trailing missing cell stays empty")
}
