//go:build gcp

package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore is a Google Cloud Storage-backed Store, used in deployments
// that keep statement/invoice/report blobs in the same project as the
// rest of the feedlot billing data pipeline.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string // optional key prefix, e.g. "feedlot-ap/artifacts/"
}

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Bucket string
	Prefix string
}

// NewGCSStore creates a new GCS-backed artifact store.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx) // uses ADC by default
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *GCSStore) object(rawHash string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + rawHash + ".blob")
}

// Store persists data to GCS and returns its content hash.
func (s *GCSStore) Store(ctx context.Context, data []byte) (string, error) {
	h := sha256.New()
	if _, err := h.Write(data); err != nil {
		return "", fmt.Errorf("hash computation failed: %w", err)
	}
	rawHash := hex.EncodeToString(h.Sum(nil))
	prefixedHash := hashPrefix + rawHash

	obj := s.object(rawHash)
	if _, err := obj.Attrs(ctx); err == nil {
		return prefixedHash, nil // already uploaded, CAS write is idempotent
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed: %w", err)
	}
	return prefixedHash, nil
}

// Get retrieves data from GCS by its content hash.
func (s *GCSStore) Get(ctx context.Context, hash string) ([]byte, error) {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return nil, err
	}

	reader, err := s.object(rawHash).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs get failed for %s: %w", hash, err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

// Exists checks if an artifact exists in GCS.
func (s *GCSStore) Exists(ctx context.Context, hash string) (bool, error) {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return false, err
	}

	_, err = s.object(rawHash).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs error: %w", err)
	}
	return true, nil
}

// Delete removes an artifact from GCS.
func (s *GCSStore) Delete(ctx context.Context, hash string) error {
	rawHash, err := parseContentHash(hash)
	if err != nil {
		return err
	}

	err = s.object(rawHash).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete failed for %s: %w", hash, err)
	}
	return nil
}

// List enumerates every artifact object under this store's prefix and
// returns their content hashes sorted ascending.
func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	var hashes []string
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list failed: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		if !strings.HasSuffix(name, ".blob") {
			continue
		}
		hashes = append(hashes, hashPrefix+strings.TrimSuffix(name, ".blob"))
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
