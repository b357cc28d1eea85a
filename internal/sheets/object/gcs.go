package object

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// SchemeGCS addresses Cloud Storage objects: gs://<bucket>/<object>.
const SchemeGCS = "gs"

// NewGCS opens a Cloud Storage reader. Without options the client uses
// application default credentials.
func NewGCS(ctx context.Context, opts ...option.ClientOption) (*Reader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	r := NewReader(SchemeGCS, func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
		return client.Bucket(bucket).Object(key).NewReader(ctx)
	})
	r.close = client.Close
	return r, nil
}
