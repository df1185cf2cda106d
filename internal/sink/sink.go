// Package sink writes result tables to the configured destinations: local
// delimited or XLSX files, S3 objects and SQL databases.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"phenoetl/internal/config"
	"phenoetl/internal/datasource"
	"phenoetl/internal/s3store"
	"phenoetl/internal/storage"
	"phenoetl/internal/table"
	"phenoetl/internal/writer"
)

// Writer dispatches on config.Sink.Kind.
type Writer struct {
	// BatchSize bounds rows per INSERT for database sinks.
	BatchSize int

	// NewS3 builds the store for an s3 sink. Nil means s3store.New.
	NewS3 func(ctx context.Context, loc config.S3Location) (*s3store.Store, error)

	// OpenRepo opens a database sink. Nil means storage.New.
	OpenRepo func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

// Write stores t and returns the number of rows written (for database
// sinks with dedupe, rows actually inserted).
func (w Writer) Write(ctx context.Context, s config.Sink, t *table.Table) (int64, error) {
	switch s.Kind {
	case "tsv", "csv", "xlsx":
		var buf bytes.Buffer
		if err := encode(&buf, s.Kind, t, s.Options); err != nil {
			return 0, err
		}
		if dir := filepath.Dir(s.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return 0, fmt.Errorf("%s sink: %w", s.Kind, err)
			}
		}
		if err := os.WriteFile(s.Path, buf.Bytes(), 0o644); err != nil {
			return 0, fmt.Errorf("%s sink: %w", s.Kind, err)
		}
		return int64(t.Len()), nil

	case "s3":
		if s.S3 == nil {
			return 0, fmt.Errorf("s3 sink: location required")
		}
		format := s.Options.String("format", formatFor(s.S3.Key))
		var buf bytes.Buffer
		if err := encode(&buf, format, t, s.Options); err != nil {
			return 0, err
		}
		st, err := w.s3(ctx, *s.S3)
		if err != nil {
			return 0, err
		}
		if err := st.Put(ctx, s.S3.Key, buf.Bytes(), contentType(format)); err != nil {
			return 0, err
		}
		return int64(t.Len()), nil

	case "sqlite", "postgres", "mssql":
		open := w.OpenRepo
		if open == nil {
			open = storage.New
		}
		repo, err := open(ctx, storage.Config{Kind: s.Kind, DSN: os.ExpandEnv(s.DSN)})
		if err != nil {
			return 0, fmt.Errorf("%s sink: %w", s.Kind, err)
		}
		defer repo.Close()

		n, err := storage.Load(ctx, repo, s.Table, t, storage.LoadOptions{
			BatchSize: w.BatchSize,
			Dedupe:    DedupeColumns(s.Options),
		})
		if err != nil {
			return n, fmt.Errorf("%s sink: %w", s.Kind, err)
		}
		return n, nil

	default:
		return 0, fmt.Errorf("unsupported sink kind %q", s.Kind)
	}
}

// DedupeColumns reads the dedupe option: a column list, or true for the
// conventional row_hash column.
func DedupeColumns(opt config.Options) []string {
	on := false
	switch v := opt.Any("dedupe").(type) {
	case nil:
	case bool:
		on = v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opt.Strings("dedupe")
		}
		on = b
	default:
		return opt.Strings("dedupe")
	}
	if on {
		return []string{"row_hash"}
	}
	return nil
}

func (w Writer) s3(ctx context.Context, loc config.S3Location) (*s3store.Store, error) {
	if w.NewS3 != nil {
		return w.NewS3(ctx, loc)
	}
	return s3store.New(ctx, s3store.ConfigFor(loc))
}

func encode(buf *bytes.Buffer, format string, t *table.Table, opt config.Options) error {
	na := opt.String("na", writer.NA)
	switch format {
	case "tsv":
		return writer.WriteDelimited(buf, t, writer.Delimited{Comma: '\t', NA: na})
	case "csv":
		return writer.WriteDelimited(buf, t, writer.Delimited{Comma: opt.Rune("comma", ','), NA: na})
	case "xlsx":
		return writer.WriteXLSX(buf, t, opt.String("sheet", ""))
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func formatFor(key string) string {
	switch strings.ToLower(filepath.Ext(datasource.Stem(key))) {
	case ".csv":
		return "csv"
	case ".xlsx":
		return "xlsx"
	default:
		return "tsv"
	}
}

func contentType(format string) string {
	switch format {
	case "csv":
		return "text/csv"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/tab-separated-values"
	}
}
