// Package datasource opens configured input sources as byte streams and
// undoes transport compression chosen by file suffix.
package datasource

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"phenoetl/internal/config"
	"phenoetl/internal/s3store"
)

// Opener resolves config sources to readers.
type Opener struct {
	// NewS3 builds the store for an s3 source. Nil means s3store.New.
	NewS3 func(ctx context.Context, loc config.S3Location) (*s3store.Store, error)
}

// Open returns the decompressed content of src. The caller closes it.
func (o Opener) Open(ctx context.Context, src config.Source) (io.ReadCloser, error) {
	var (
		rc   io.ReadCloser
		name string
	)
	switch src.Kind {
	case "file":
		if src.File == nil || src.File.Path == "" {
			return nil, fmt.Errorf("file source: path required")
		}
		f, err := os.Open(src.File.Path)
		if err != nil {
			return nil, fmt.Errorf("file source: %w", err)
		}
		rc, name = f, src.File.Path

	case "s3":
		if src.S3 == nil {
			return nil, fmt.Errorf("s3 source: location required")
		}
		newS3 := o.NewS3
		if newS3 == nil {
			newS3 = func(ctx context.Context, loc config.S3Location) (*s3store.Store, error) {
				return s3store.New(ctx, s3store.ConfigFor(loc))
			}
		}
		st, err := newS3(ctx, *src.S3)
		if err != nil {
			return nil, err
		}
		body, err := st.Get(ctx, src.S3.Key)
		if err != nil {
			return nil, err
		}
		rc, name = body, src.S3.Key

	default:
		return nil, fmt.Errorf("unsupported source kind %q", src.Kind)
	}

	out, err := Decompress(name, rc)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return out, nil
}

// Decompress wraps rc according to the suffix of name: .gz, .zst or .xz.
// Other names pass through. Closing the result closes rc.
func Decompress(name string, rc io.ReadCloser) (io.ReadCloser, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return &stacked{Reader: gz, closers: []func() error{gz.Close, rc.Close}}, nil

	case strings.HasSuffix(lower, ".xz"):
		xr, err := xz.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return &stacked{Reader: xr, closers: []func() error{rc.Close}}, nil

	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		dec, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return &stacked{Reader: dec, closers: []func() error{func() error { dec.Close(); return nil }, rc.Close}}, nil

	default:
		return rc, nil
	}
}

// Stem strips a compression suffix, so "env.csv.gz" reports as "env.csv".
func Stem(name string) string {
	lower := strings.ToLower(name)
	for _, suf := range []string{".gz", ".zst", ".zstd", ".xz"} {
		if strings.HasSuffix(lower, suf) {
			return name[:len(name)-len(suf)]
		}
	}
	return name
}

type stacked struct {
	io.Reader
	closers []func() error
}

func (s *stacked) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
