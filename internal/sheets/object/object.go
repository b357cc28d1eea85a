// Package object reads workbooks kept in cloud object stores: gs:// objects
// on Google Cloud Storage and s3:// objects on Amazon S3.
package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"apbn/internal/sheets"
	"apbn/internal/sheets/xlsx"
)

// MaxObjectSize caps how much of an object is read into memory.
const MaxObjectSize = 64 << 20

// Opener streams the object key in bucket.
type Opener func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

// Reader is a RowReader for <scheme>://<bucket>/<key> locations.
type Reader struct {
	scheme   string
	open     Opener
	close    func() error
	maxBytes int64
}

var _ sheets.RowReader = (*Reader)(nil)

func NewReader(scheme string, open Opener) *Reader {
	return &Reader{scheme: strings.ToLower(scheme), open: open, maxBytes: MaxObjectSize}
}

// Scheme is the location scheme this reader serves.
func (r *Reader) Scheme() string { return r.scheme }

func (r *Reader) ReadRows(ctx context.Context, location string) ([][]string, error) {
	bucket, key, err := ParseLocation(r.scheme, location)
	if err != nil {
		return nil, err
	}

	rc, err := r.open(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("open %s://%s/%s: %w", r.scheme, bucket, key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s://%s/%s: %w", r.scheme, bucket, key, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("object %s://%s/%s exceeds %d bytes", r.scheme, bucket, key, r.maxBytes)
	}
	return xlsx.ReadWorkbook(bytes.NewReader(data))
}

// Close releases the underlying client, if any.
func (r *Reader) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// ParseLocation splits "<scheme>://bucket/path/to/key.xlsx".
func ParseLocation(scheme, location string) (bucket, key string, err error) {
	got, rest, ok := sheets.SplitScheme(location)
	if !ok || got != scheme {
		return "", "", fmt.Errorf("invalid %s location %q", scheme, location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid %s location %q: want %s://bucket/key", scheme, location, scheme)
	}
	return bucket, key, nil
}
