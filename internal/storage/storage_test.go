package storage

import (
	"context"
	"errors"
	"testing"

	"phenoetl/internal/table"
)

type fakeRepo struct {
	ensured    []TableSpec
	inserts    [][][]any
	lastTable  string
	lastCols   []string
	lastDedupe []string
	failAt     int
	closeCalls int
}

func (f *fakeRepo) Close() { f.closeCalls++ }

func (f *fakeRepo) EnsureTable(ctx context.Context, spec TableSpec) error {
	f.ensured = append(f.ensured, spec)
	return nil
}

func (f *fakeRepo) InsertRows(ctx context.Context, tbl string, columns []string, rows [][]any, dedupe []string) (int64, error) {
	if f.failAt > 0 && len(f.inserts)+1 == f.failAt {
		return 0, errors.New("boom")
	}
	f.inserts = append(f.inserts, rows)
	f.lastTable, f.lastCols, f.lastDedupe = tbl, columns, dedupe
	return int64(len(rows)), nil
}

func analysis(n int) *table.Table {
	rows := make([][]table.Value, n)
	for i := range rows {
		rows[i] = []table.Value{table.String("F"), table.Float(-30 + float64(i)), table.String("h")}
	}
	rows[0][1] = table.Missing(table.KindFloat)
	return table.MustNew(table.Schema{
		{Name: "fam", Kind: table.KindString},
		{Name: "mean.d13c", Kind: table.KindFloat},
		{Name: "row_hash", Kind: table.KindString},
	}, rows)
}

func TestLoad_BatchesAndEnsures(t *testing.T) {
	repo := &fakeRepo{}
	n, err := Load(context.Background(), repo, "analysis", analysis(5), LoadOptions{BatchSize: 2, Dedupe: []string{"row_hash"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 5 {
		t.Fatalf("inserted=%d, want 5", n)
	}
	if len(repo.inserts) != 3 {
		t.Fatalf("batches=%d, want 3", len(repo.inserts))
	}
	if repo.inserts[0][0][1] != nil {
		t.Fatalf("missing value must load as nil, got %#v", repo.inserts[0][0][1])
	}
	if repo.lastTable != "analysis" || len(repo.lastDedupe) != 1 || repo.lastDedupe[0] != "row_hash" {
		t.Fatalf("unexpected insert target: %q %v", repo.lastTable, repo.lastDedupe)
	}

	spec := repo.ensured[0]
	if len(spec.Constraints) != 1 || spec.Constraints[0].Columns[0] != "row_hash" {
		t.Fatalf("expected UNIQUE(row_hash), got %+v", spec.Constraints)
	}
	if spec.Columns[2].Nullable || !spec.Columns[0].Nullable {
		t.Fatalf("only the unique column is NOT NULL: %+v", spec.Columns)
	}
}

func TestLoad_ReportsFailingBatch(t *testing.T) {
	repo := &fakeRepo{failAt: 2}
	n, err := Load(context.Background(), repo, "analysis", analysis(5), LoadOptions{BatchSize: 2})
	if err == nil || err.Error() != "insert analysis rows 3-4: boom" {
		t.Fatalf("err=%v", err)
	}
	if n != 2 {
		t.Fatalf("inserted before failure=%d, want 2", n)
	}
}

func TestSpecFor_UnknownUnique(t *testing.T) {
	if _, err := SpecFor("x", analysis(1).Schema(), []string{"nope"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{Kind: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	f := func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil }
	Register("fake-dup", f)
	if !Registered("fake-dup") {
		t.Fatalf("expected fake-dup registered")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("fake-dup", f)
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]any{"": nil, "P1": " P1 ", "7": int64(7), "-30.5": -30.5, "x": []byte("x ")}
	for want, in := range cases {
		if got := NormalizeKey(in); got != want {
			t.Fatalf("NormalizeKey(%#v)=%q, want %q", in, got, want)
		}
	}
}
