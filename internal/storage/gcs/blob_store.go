// Package gcs provides a resource store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	catalogstorage "github.com/JakeFAU/adcatalog/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every resource name.
	Prefix string
}

// BlobStore keeps catalog resources in a GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ catalogstorage.Store = (*BlobStore)(nil)

// New creates a GCS-backed store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Put uploads data as a single object write; GCS never exposes a partial object.
func (s *BlobStore) Put(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	key := s.key(name)
	writer := s.object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// Get downloads an object.
func (s *BlobStore) Get(ctx context.Context, name string) ([]byte, error) {
	reader, err := s.object(s.key(name)).NewReader(ctx)
	if err != nil {
		return nil, s.mapErr(name, "open reader", err)
	}
	defer reader.Close() //nolint:errcheck // read-only handle
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, nil
}

// Move copies src to dst server-side and then removes src.
func (s *BlobStore) Move(ctx context.Context, src, dst string) error {
	source := s.object(s.key(src))
	if _, err := s.object(s.key(dst)).CopierFrom(source).Run(ctx); err != nil {
		return s.mapErr(src, "copy object", err)
	}
	if err := source.Delete(ctx); err != nil {
		return s.mapErr(src, "delete source", err)
	}
	return nil
}

// List returns object names directly under prefix.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	dir := strings.Trim(prefix, "/")
	query := &storage.Query{Prefix: s.key(dir), Delimiter: "/"}
	if query.Prefix != "" {
		query.Prefix += "/"
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		if attrs.Name == "" {
			// synthetic directory entry
			continue
		}
		names = append(names, path.Join(dir, path.Base(attrs.Name)))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes an object.
func (s *BlobStore) Delete(ctx context.Context, name string) error {
	if err := s.object(s.key(name)).Delete(ctx); err != nil {
		return s.mapErr(name, "delete object", err)
	}
	return nil
}

func (s *BlobStore) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(key)
}

func (s *BlobStore) key(name string) string {
	name = strings.Trim(name, "/")
	if s.prefix == "" {
		return name
	}
	if name == "" {
		return s.prefix
	}
	return s.prefix + "/" + name
}

func (s *BlobStore) mapErr(name, op string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", name, catalogstorage.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}
