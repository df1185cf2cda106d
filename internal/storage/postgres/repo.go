package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"phenoetl/internal/storage"
	"phenoetl/internal/table"
)

// Repo implements storage.Repository for Postgres on a pgx connection pool.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed Repo and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the schema (for qualified names) and the table.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, baseSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, baseSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows performs a bulk INSERT.
//
// If dedupeColumns is non-empty, the INSERT is made idempotent using:
//
//	ON CONFLICT (<dedupeColumns...>) DO NOTHING
func (r *Repo) InsertRows(
	ctx context.Context,
	tbl string,
	columns []string,
	rows [][]any,
	dedupeColumns []string,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, args := buildInsertSQL(tbl, columns, rows, dedupeColumns)

	cmd, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// Constraints:
//   - rows must have the same length as columns for every row.
//   - columns must be non-empty.
func buildInsertSQL(tbl string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(tbl))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(dedupeColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		for i, c := range dedupeColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgIdent(c))
		}
		b.WriteString(") DO NOTHING")
	}

	b.WriteString(";")
	return b.String(), args
}

func pgType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "bigint"
	case table.KindFloat:
		return "double precision"
	default:
		return "text"
	}
}

// buildColumnDef renders a single column definition.
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return "", fmt.Errorf("column name must be set")
	}

	var b strings.Builder
	b.WriteString(pgIdent(name))
	b.WriteString(" ")
	b.WriteString(pgType(c.Kind))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String(), nil
}

// buildConstraints generates table-level constraints. Only UNIQUE exists.
func buildConstraints(t storage.TableSpec) ([]string, error) {
	out := make([]string, 0, len(t.Constraints))
	for _, c := range t.Constraints {
		switch strings.ToLower(strings.TrimSpace(c.Kind)) {
		case "unique":
			if len(c.Columns) == 0 {
				return nil, fmt.Errorf("table %s: unique constraint requires columns", t.Name)
			}
			cols := make([]string, len(c.Columns))
			for i, col := range c.Columns {
				cols[i] = pgIdent(strings.TrimSpace(col))
			}
			out = append(out, "UNIQUE ("+strings.Join(cols, ", ")+")")
		default:
			return nil, fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, c.Kind)
		}
	}
	return out, nil
}

// splitQualifiedName splits a schema-qualified name into (schema, table).
//
// Examples:
//   - "public.analysis" => ("public", "analysis")
//   - "analysis"        => ("", "analysis")
//
// Only a single dot is handled; anything else is treated as unqualified.
func splitQualifiedName(name string) (schema string, tbl string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// buildCreateSQL builds the optional CREATE SCHEMA and the CREATE TABLE.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, baseSQL string, err error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", "", fmt.Errorf("table %s: no columns", t.Name)
	}

	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	defs := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		defs = append(defs, def)
	}
	constraints, err := buildConstraints(t)
	if err != nil {
		return "", "", err
	}
	defs = append(defs, constraints...)

	baseSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, pgTableIdent(t.Name), strings.Join(defs, ", "))
	return schemaSQL, baseSQL, nil
}

// pgIdent double-quotes an identifier; column names such as "mean.d13c"
// contain dots and must never be split.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// pgTableIdent quotes a possibly schema-qualified table name.
func pgTableIdent(name string) string {
	schema, tbl := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(tbl)
	}
	return pgIdent(schema) + "." + pgIdent(tbl)
}
