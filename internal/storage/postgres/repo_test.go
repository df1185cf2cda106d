package postgres

import (
	"strings"
	"testing"

	"phenoetl/internal/storage"
	"phenoetl/internal/table"
)

func analysisSpec(t *testing.T, name string, unique []string) storage.TableSpec {
	t.Helper()
	spec, err := storage.SpecFor(name, table.Schema{
		{Name: "fam", Kind: table.KindString},
		{Name: "elev", Kind: table.KindInt},
		{Name: "mean.d13c", Kind: table.KindFloat},
		{Name: "row_hash", Kind: table.KindString},
	}, unique)
	if err != nil {
		t.Fatalf("SpecFor: %v", err)
	}
	return spec
}

func TestBuildCreateSQL_QualifiedWithUnique(t *testing.T) {
	t.Parallel()

	schemaSQL, baseSQL, err := buildCreateSQL(analysisSpec(t, "pheno.analysis", []string{"row_hash"}))
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "pheno";` {
		t.Fatalf("schemaSQL=%q", schemaSQL)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "pheno"."analysis"`,
		`"mean.d13c" double precision`,
		`"elev" bigint`,
		`"row_hash" text NOT NULL`,
		`UNIQUE ("row_hash")`,
	} {
		if !strings.Contains(baseSQL, want) {
			t.Fatalf("baseSQL missing %q: %q", want, baseSQL)
		}
	}
	if strings.Contains(baseSQL, `"fam" text NOT NULL`) {
		t.Fatalf("non-unique columns must be nullable: %q", baseSQL)
	}
}

func TestBuildCreateSQL_Unqualified(t *testing.T) {
	t.Parallel()

	schemaSQL, baseSQL, err := buildCreateSQL(analysisSpec(t, "analysis", nil))
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != "" {
		t.Fatalf("expected no schema DDL, got %q", schemaSQL)
	}
	if strings.Contains(baseSQL, "UNIQUE") {
		t.Fatalf("unexpected UNIQUE: %q", baseSQL)
	}
}

func TestBuildCreateSQL_Errors(t *testing.T) {
	t.Parallel()

	if _, _, err := buildCreateSQL(storage.TableSpec{}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	spec := analysisSpec(t, "analysis", nil)
	spec.Constraints = []storage.ConstraintSpec{{Kind: "check", Columns: []string{"fam"}}}
	if _, _, err := buildCreateSQL(spec); err == nil {
		t.Fatalf("expected error for unsupported constraint")
	}
}

func TestBuildInsertSQL_NoDedupe_NoOnConflict(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL(
		"analysis",
		[]string{"fam", "elev", "mean.d13c"},
		[][]any{
			{"A", int64(120), nil},
			{"B", int64(95), -30.0},
		},
		nil,
	)

	if strings.Contains(sql, "ON CONFLICT") {
		t.Fatalf("expected no ON CONFLICT clause, got: %q", sql)
	}
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
	if !strings.Contains(sql, "VALUES ($1, $2, $3), ($4, $5, $6)") {
		t.Fatalf("unexpected VALUES placeholders: %q", sql)
	}
}

func TestBuildInsertSQL_WithDedupe_AddsOnConflictDoNothing(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL(
		"pheno.analysis",
		[]string{"fam", "row_hash"},
		[][]any{{"A", "h"}, {"A", "h"}},
		[]string{"row_hash"},
	)

	if !strings.HasPrefix(sql, `INSERT INTO "pheno"."analysis" ("fam", "row_hash")`) {
		t.Fatalf("unexpected prefix: %q", sql)
	}
	if !strings.HasSuffix(sql, `ON CONFLICT ("row_hash") DO NOTHING;`) {
		t.Fatalf("expected ON CONFLICT DO NOTHING, got: %q", sql)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
}
