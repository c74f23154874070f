package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/rivieraros/apcore/internal/aperrors"
	"github.com/rivieraros/apcore/pkg/domain"
)

// Catalog wraps a content-addressed Store and produces the spec's
// DataReference descriptors instead of bare content hashes. This is the
// C1 "artifact store" boundary every other component talks to; it never
// hands document bytes back through workflow history, only references
// (spec.md §4.7.6).
type Catalog struct {
	store  Store
	scheme string
}

// NewCatalog wraps store. scheme identifies the backend in storage_uri
// ("file", "s3", "gcs"); callers that already know their Store's scheme
// (e.g. via NewStoreFromEnv) should pass it explicitly.
func NewCatalog(store Store, scheme string) *Catalog {
	return &Catalog{store: store, scheme: scheme}
}

// PutJSON canonicalizes v per RFC 8785 (so that semantically identical
// documents always hash identically regardless of field order) and
// stores the result, returning its DataReference.
func (c *Catalog) PutJSON(ctx context.Context, v any) (domain.DataReference, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return domain.DataReference{}, fmt.Errorf("artifacts: marshal: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return domain.DataReference{}, fmt.Errorf("artifacts: canonicalize: %w", err)
	}
	return c.PutBinary(ctx, canon, "application/json")
}

// GetJSON retrieves and unmarshals the artifact named by ref into v,
// verifying the content hash matches what PutJSON computed.
func (c *Catalog) GetJSON(ctx context.Context, ref domain.DataReference, v any) error {
	data, err := c.GetBinary(ctx, ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("artifacts: unmarshal %s: %w", ref.StorageURI, err)
	}
	return nil
}

// PutBinary stores raw bytes and returns a DataReference. Storing is
// idempotent: storing the same bytes twice returns the same reference.
func (c *Catalog) PutBinary(ctx context.Context, data []byte, contentType string) (domain.DataReference, error) {
	hash, err := c.store.Store(ctx, data)
	if err != nil {
		return domain.DataReference{}, fmt.Errorf("artifacts: store: %w", err)
	}
	return domain.DataReference{
		StorageURI:  c.scheme + "://" + hash,
		ContentHash: hash,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		StoredAt:    time.Now().UTC(),
	}, nil
}

// GetBinary retrieves the raw bytes for ref and verifies their hash
// matches ref.ContentHash, surfacing a mismatch as an IntegrityError
// (spec.md §4.7.6, non-retryable).
func (c *Catalog) GetBinary(ctx context.Context, ref domain.DataReference) ([]byte, error) {
	data, err := c.store.Get(ctx, ref.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("artifacts: get %s: %w", ref.StorageURI, err)
	}
	recomputed, err := c.store.Store(ctx, data)
	if err == nil && recomputed != ref.ContentHash {
		return nil, &aperrors.IntegrityError{Subject: ref.StorageURI, Want: ref.ContentHash, Got: recomputed}
	}
	return data, nil
}

// Exists reports whether ref's content is still present.
func (c *Catalog) Exists(ctx context.Context, ref domain.DataReference) (bool, error) {
	ok, err := c.store.Exists(ctx, ref.ContentHash)
	if err != nil {
		return false, fmt.Errorf("artifacts: exists %s: %w", ref.StorageURI, err)
	}
	return ok, nil
}

// Delete removes ref's content. Used only by retention/cleanup tooling,
// never by the workflow itself (artifacts are append-only in steady state).
func (c *Catalog) Delete(ctx context.Context, ref domain.DataReference) error {
	if err := c.store.Delete(ctx, ref.ContentHash); err != nil {
		return fmt.Errorf("artifacts: delete %s: %w", ref.StorageURI, err)
	}
	return nil
}

// List enumerates every artifact currently held by the underlying store
// and returns a DataReference per hash (StorageURI and ContentHash set;
// ContentType, SizeBytes, and StoredAt are not recoverable from a bare
// listing and are left zero-valued). Used by `apctl artifacts list`,
// which prints the listing; nothing here diffs it against package refs.
func (c *Catalog) List(ctx context.Context) ([]domain.DataReference, error) {
	hashes, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("artifacts: list: %w", err)
	}
	refs := make([]domain.DataReference, len(hashes))
	for i, hash := range hashes {
		refs[i] = domain.DataReference{
			StorageURI:  c.scheme + "://" + hash,
			ContentHash: hash,
		}
	}
	return refs, nil
}

// SchemeForStorageType maps a StoreType to the storage_uri scheme used in
// DataReference.StorageURI.
func SchemeForStorageType(t StoreType) string {
	switch t {
	case StoreTypeS3:
		return "s3"
	case StoreTypeGCS:
		return "gcs"
	default:
		return "file"
	}
}
