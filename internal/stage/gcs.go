package stage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSArchive stores company folders in a Google Cloud Storage bucket.
type GCSArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchive creates a GCS-backed archive.
func NewGCSArchive(client *storage.Client, bucket, prefix string) (*GCSArchive, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSArchive{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Store uploads the file as {prefix}/{cik}/{name} and returns a gs:// URI.
func (a *GCSArchive) Store(ctx context.Context, cik, name string, r io.Reader) (string, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return "", fmt.Errorf("gcs store: %w", err)
	}
	object := cik + "/" + clean
	if a.prefix != "" {
		object = a.prefix + "/" + object
	}

	w := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		closeErr := w.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object %s: %w (close writer: %v)", object, err, closeErr)
		}
		return "", fmt.Errorf("copy object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", object, err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}
