package s3store

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := NewFake()
	st, err := fake.Store(ctx, "pheno")
	require.NoError(t, err)
	require.Equal(t, "pheno", st.Bucket())

	require.NoError(t, st.Put(ctx, "out/analysis.tsv", []byte("fam\tmean.d13c\nA\t-30\n"), "text/tab-separated-values"))

	raw, ok := fake.Object("pheno/out/analysis.tsv")
	require.True(t, ok)
	require.Equal(t, "fam\tmean.d13c\nA\t-30\n", string(raw))

	rc, err := st.Get(ctx, "out/analysis.tsv")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	st, err := NewFake().Store(ctx, "pheno")
	require.NoError(t, err)

	_, err = st.Get(ctx, "nope.csv")
	require.ErrorContains(t, err, "s3://pheno/nope.csv")
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.ErrorContains(t, err, "bucket required")
}

func TestDecodeChunked(t *testing.T) {
	got, ok := decodeChunked([]byte("5;chunk-signature=abc\r\nhello\r\n0\r\n\r\n"))
	require.True(t, ok)
	require.Equal(t, "hello", string(got))

	_, ok = decodeChunked([]byte("plain body"))
	require.False(t, ok)
}
