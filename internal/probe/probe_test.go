package probe

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"phenoetl/internal/table"
)

func seedlings() *table.Table {
	return table.MustNew(table.Schema{
		{Name: "group", Kind: table.KindString},
		{Name: "family", Kind: table.KindString},
		{Name: "plot", Kind: table.KindInt},
		{Name: "d13c", Kind: table.KindFloat},
	}, [][]table.Value{
		{table.String("1"), table.String("F1"), table.Int(1), table.Float(-31)},
		{table.String("1"), table.String("F1"), table.Int(2), table.Float(-29)},
		{table.String("2"), table.String("F1"), table.Int(3), table.Missing(table.KindFloat)},
		{table.String("1"), table.String("F2"), table.Int(4), table.Float(-27)},
	})
}

func TestProfile(t *testing.T) {
	rep, err := Profile(seedlings())
	require.NoError(t, err)
	require.Equal(t, 4, rep.Rows)
	require.Len(t, rep.Columns, 4)

	fam := rep.Columns[1]
	require.Equal(t, "family", fam.Name)
	require.Equal(t, 4, fam.Present)
	require.Equal(t, 2, fam.Distinct)
	require.InDelta(t, 0.5, fam.Ratio(), 1e-9)

	d := rep.Columns[3]
	require.Equal(t, 3, d.Present)
	require.Equal(t, 1, d.Missing)
	require.Equal(t, -31.0, d.Min)
	require.Equal(t, -27.0, d.Max)
	require.InDelta(t, -29.0, d.Mean, 1e-9)
}

func TestKeyCandidates(t *testing.T) {
	rep, err := Profile(seedlings())
	require.NoError(t, err)
	// plot and d13c are all-distinct; group and family repeat
	require.Equal(t, []string{"family", "group"}, KeyCandidates(rep))
}

func TestKeyCandidates_CapsAtFive(t *testing.T) {
	rep := Report{Rows: 10}
	for i := 0; i < 8; i++ {
		rep.Columns = append(rep.Columns, ColumnStats{Name: fmt.Sprintf("c%d", i), Present: 10, Distinct: i + 1})
	}
	rep.Columns = append(rep.Columns, ColumnStats{Name: "row_hash", Present: 10, Distinct: 1})
	require.Equal(t, []string{"c0", "c1", "c2", "c3", "c4"}, KeyCandidates(rep))
}

func TestProfile_CapsDistinct(t *testing.T) {
	rows := make([][]table.Value, distinctCapPerColumn+5)
	for i := range rows {
		rows[i] = []table.Value{table.Int(int64(i))}
	}
	rep, err := Profile(table.MustNew(table.Schema{{Name: "id", Kind: table.KindInt}}, rows))
	require.NoError(t, err)
	require.True(t, rep.Columns[0].Capped)
	require.Equal(t, distinctCapPerColumn, rep.Columns[0].Distinct)
	require.Contains(t, Format(rep), fmt.Sprintf("%d+", distinctCapPerColumn))
}

func TestSuggestTypesAndFormat(t *testing.T) {
	rep, err := Profile(seedlings())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"group": "text", "family": "text", "plot": "bigint", "d13c": "double"}, SuggestTypes(rep))

	out := Format(rep)
	require.True(t, strings.HasPrefix(out, "profile:\trows=4\n"))
	require.Contains(t, out, "key candidates:\tfamily,group")

	require.Equal(t, "profile: no rows", Format(Report{}))
}
