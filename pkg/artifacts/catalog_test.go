package artifacts

import (
	"context"
	"testing"

	"github.com/rivieraros/apcore/pkg/domain"
)

func TestCatalog_PutGetJSON_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	cat := NewCatalog(store, "file")

	type doc struct {
		B string `json:"b"`
		A int    `json:"a"`
	}
	ref, err := cat.PutJSON(context.Background(), doc{B: "x", A: 1})
	if err != nil {
		t.Fatalf("PutJSON failed: %v", err)
	}
	if ref.ContentType != "application/json" {
		t.Errorf("expected application/json, got %s", ref.ContentType)
	}

	var got doc
	if err := cat.GetJSON(context.Background(), ref, &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.A != 1 || got.B != "x" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestCatalog_PutJSON_FieldOrderIsIdempotent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	cat := NewCatalog(store, "file")

	ref1, err := cat.PutJSON(context.Background(), map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("PutJSON failed: %v", err)
	}
	ref2, err := cat.PutJSON(context.Background(), map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("PutJSON failed: %v", err)
	}
	if ref1.ContentHash != ref2.ContentHash {
		t.Errorf("expected canonicalized hashes to match regardless of field order, got %s vs %s", ref1.ContentHash, ref2.ContentHash)
	}
}

func TestCatalog_GetBinary_UnknownHash(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	cat := NewCatalog(store, "file")

	ref := domain.DataReference{ContentHash: "sha256:0000000000000000000000000000000000000000000000000000000000000"}
	if _, err := cat.GetBinary(context.Background(), ref); err == nil {
		t.Fatal("expected error for a hash never stored")
	}
}

func TestCatalog_Exists(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	cat := NewCatalog(store, "file")

	ref, err := cat.PutBinary(context.Background(), []byte("payload"), "text/plain")
	if err != nil {
		t.Fatalf("PutBinary failed: %v", err)
	}
	ok, err := cat.Exists(context.Background(), ref)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !ok {
		t.Error("expected artifact to exist")
	}

	if err := cat.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	ok, err = cat.Exists(context.Background(), ref)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if ok {
		t.Error("expected artifact to be gone after delete")
	}
}

func TestCatalog_List_ReturnsEverySortedRef(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	cat := NewCatalog(store, "file")

	ref1, err := cat.PutBinary(context.Background(), []byte("first"), "text/plain")
	if err != nil {
		t.Fatalf("PutBinary failed: %v", err)
	}
	ref2, err := cat.PutBinary(context.Background(), []byte("second"), "text/plain")
	if err != nil {
		t.Fatalf("PutBinary failed: %v", err)
	}

	refs, err := cat.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d: %+v", len(refs), refs)
	}
	if refs[0].ContentHash > refs[1].ContentHash {
		t.Errorf("expected refs sorted ascending by hash, got %s then %s", refs[0].ContentHash, refs[1].ContentHash)
	}
	got := map[string]bool{refs[0].ContentHash: true, refs[1].ContentHash: true}
	if !got[ref1.ContentHash] || !got[ref2.ContentHash] {
		t.Errorf("expected both stored hashes in listing, got %+v", refs)
	}
	for _, r := range refs {
		if r.StorageURI != "file://"+r.ContentHash {
			t.Errorf("expected storage_uri to follow scheme://hash, got %s", r.StorageURI)
		}
	}
}

func TestCatalog_List_EmptyStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	cat := NewCatalog(store, "file")

	refs, err := cat.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no refs in an empty store, got %+v", refs)
	}
}
