package gcp

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"

	"github.com/lexohub/docclassify/internal/models"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ObjectFetcher reads document bytes out of Cloud Storage.
type ObjectFetcher struct {
	client *storage.Client
}

// NewObjectFetcher creates a fetcher backed by a live storage client.
func NewObjectFetcher(ctx context.Context) (*ObjectFetcher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &ObjectFetcher{client: client}, nil
}

// Fetch reads the full object into memory. Intake documents are single
// scans, small enough that streaming to disk buys nothing.
func (f *ObjectFetcher) Fetch(ctx context.Context, ref models.DocumentRef) ([]byte, error) {
	reader, err := f.client.Bucket(ref.Bucket).Object(ref.Key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return data, nil
}
