package s3store

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Fake is an in-memory S3 endpoint served through an http.RoundTripper.
// Only GetObject and PutObject are implemented.
type Fake struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewFake returns an empty fake.
func NewFake() *Fake { return &Fake{objects: make(map[string][]byte)} }

// Store returns a path-style Store for bucket that talks to the fake.
func (f *Fake) Store(ctx context.Context, bucket string) (*Store, error) {
	return New(ctx, Config{
		Bucket:     bucket,
		Endpoint:   "https://fake.s3.local",
		PathStyle:  true,
		HTTPClient: &http.Client{Transport: f},
		LoadOptions: []func(*config.LoadOptions) error{
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
		},
	})
}

// Object returns a stored body by "bucket/key".
func (f *Fake) Object(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[path]
	return b, ok
}

// SetObject seeds an object under "bucket/key".
func (f *Fake) SetObject(path string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = append([]byte(nil), body...)
}

func (f *Fake) RoundTrip(req *http.Request) (*http.Response, error) {
	path := strings.TrimPrefix(req.URL.Path, "/")

	switch req.Method {
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.SetObject(path, body)
		return respond(http.StatusOK, nil, http.Header{"ETag": {`"etag"`}}), nil

	case http.MethodGet:
		body, ok := f.Object(path)
		if !ok {
			return respond(http.StatusNotFound, []byte(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code></Error>`),
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(http.StatusOK, body, http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"ETag":           {`"etag"`},
		}), nil
	}
	return respond(http.StatusNotImplemented, nil, http.Header{}), nil
}

func respond(code int, body []byte, h http.Header) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewReader(body)), Header: h}
}

// decodeChunked unwraps a single-chunk aws-chunked payload:
// <hex>[;chunk-signature=..]\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	head, rest, ok := bytes.Cut(b, []byte("\r\n"))
	if !ok {
		return nil, false
	}
	size, err := strconv.ParseInt(strings.SplitN(string(head), ";", 2)[0], 16, 64)
	if err != nil || size < 0 || int64(len(rest)) < size+2 {
		return nil, false
	}
	if !bytes.HasPrefix(rest[size:], []byte("\r\n0")) {
		return nil, false
	}
	return rest[:size], true
}

var _ http.RoundTripper = (*Fake)(nil)
