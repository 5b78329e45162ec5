package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
)

// ObjectStore is the durable object storage boundary. Put uploads the local
// file under key and returns a stable reference URI.
type ObjectStore interface {
	Put(ctx context.Context, key, localPath string) (string, error)
}

// BlobStore implements ObjectStore over a gocloud.dev bucket.
type BlobStore struct {
	bucket  *blob.Bucket
	baseURL string
}

// OpenBlobStore opens the bucket at bucketURL. publicBaseURL prefixes keys
// to form the reference URIs handed to storage; when empty, the bucket URL
// itself is used.
func OpenBlobStore(ctx context.Context, bucketURL, publicBaseURL string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	base := publicBaseURL
	if base == "" {
		base = bucketURL
	}
	return &BlobStore{bucket: bucket, baseURL: strings.TrimSuffix(base, "/")}, nil
}

// Put uploads the file at localPath under key.
func (s *BlobStore) Put(ctx context.Context, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open staging file: %w", err)
	}
	defer f.Close()

	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("open bucket writer: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finish upload %s: %w", key, err)
	}

	return s.baseURL + "/" + key, nil
}

// Close releases the underlying bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
