package mssql

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"phenoetl/internal/storage"
	"phenoetl/internal/table"
)

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

type fakeDB struct {
	queries []string
	argc    []int
}

func (f *fakeDB) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, q)
	f.argc = append(f.argc, len(args))
	return fakeResult(1), nil
}

func (f *fakeDB) Close() error { return nil }

func TestDedupeRowsByColumns_StableAndCorrect(t *testing.T) {
	// NOT EXISTS does not collapse duplicates inside the VALUES source, so the
	// first occurrence of each dedupe key must be the only one sent.
	columns := []string{"fam", "row_hash", "mean.d13c"}
	dedupeCols := []string{"row_hash"}

	rows := [][]any{
		{"A", "h1", -30.0},
		{"A", "h1", -29.0}, // duplicate key, dropped
		{"B", "h2", nil},
		{"A", "h1", -28.0}, // duplicate key, dropped
		{"C", "h3", -27.5},
	}

	got, err := dedupeRowsByColumns(rows, columns, dedupeCols)
	if err != nil {
		t.Fatalf("dedupeRowsByColumns returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows after dedupe, got %d", len(got))
	}
	if got[0][2] != -30.0 {
		t.Fatalf("first h1 row not preserved; got=%v", got[0])
	}
	if got[1][1] != "h2" || got[2][1] != "h3" {
		t.Fatalf("order of first occurrences not preserved; got=%v", got)
	}
}

func TestDedupeRowsByColumns_MissingColumnErrors(t *testing.T) {
	_, err := dedupeRowsByColumns([][]any{{1, 2}}, []string{"a", "b"}, []string{"missing"})
	if err == nil {
		t.Fatalf("expected error for missing dedupe column, got nil")
	}
}

func TestBuildCreateSQL_GuardAndTypes(t *testing.T) {
	spec, err := storage.SpecFor("dbo.analysis", table.Schema{
		{Name: "fam", Kind: table.KindString},
		{Name: "elev", Kind: table.KindInt},
		{Name: "mean.d13c", Kind: table.KindFloat},
		{Name: "row_hash", Kind: table.KindString},
	}, []string{"row_hash"})
	if err != nil {
		t.Fatalf("SpecFor: %v", err)
	}

	ddl, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	for _, want := range []string{
		"IF OBJECT_ID(N'dbo.analysis', N'U') IS NULL BEGIN CREATE TABLE [dbo].[analysis] (",
		"[fam] NVARCHAR(MAX) NULL",
		"[elev] BIGINT NULL",
		"[mean.d13c] FLOAT NULL",
		"[row_hash] NVARCHAR(450) NOT NULL",
		"UNIQUE ([row_hash])",
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("ddl missing %q:\n%s", want, ddl)
		}
	}
}

func TestBuildInsertNotExistsSQL(t *testing.T) {
	q, args := buildInsertNotExistsSQL("analysis", []string{"fam", "row_hash"}, [][]any{{"A", "h1"}, {"B", "h2"}}, []string{"row_hash"})

	want := "INSERT INTO [analysis] ([fam], [row_hash]) SELECT v.[fam], v.[row_hash] FROM (VALUES (@p1, @p2), (@p3, @p4)) " +
		"AS v([fam], [row_hash]) WHERE NOT EXISTS (SELECT 1 FROM [analysis] t WHERE t.[row_hash] = v.[row_hash])"
	if q != want {
		t.Fatalf("q=%q\nwant %q", q, want)
	}
	if len(args) != 4 {
		t.Fatalf("args=%d, want 4", len(args))
	}
}

func TestInsertRows_ChunksUnderParameterLimit(t *testing.T) {
	db := &fakeDB{}
	r := &Repo{db: db}

	columns := []string{"a", "b", "c", "d"}
	rows := make([][]any, 1200)
	for i := range rows {
		rows[i] = []any{i, "x", nil, 1.5}
	}

	n, err := r.InsertRows(context.Background(), "analysis", columns, rows, nil)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	// 2000/4 = 500 rows per statement -> 3 statements.
	if len(db.queries) != 3 || n != 3 {
		t.Fatalf("statements=%d n=%d, want 3", len(db.queries), n)
	}
	for i, c := range db.argc {
		if c > maxParams {
			t.Fatalf("statement %d has %d params", i, c)
		}
	}
	if !strings.HasPrefix(db.queries[0], "INSERT INTO [analysis] ([a], [b], [c], [d]) VALUES (@p1, @p2, @p3, @p4), ") {
		t.Fatalf("unexpected statement: %.80s", db.queries[0])
	}
}
