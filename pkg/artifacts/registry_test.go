package artifacts

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistry_PutGetVerify(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	verifier, err := NewEd25519Verifier(signer.PublicKey())
	if err != nil {
		t.Fatalf("NewEd25519Verifier: %v", err)
	}
	registry := NewRegistry(store, verifier)

	env := &ArtifactEnvelope{Type: TypeInvoiceDocument, Payload: json.RawMessage(`{"invoice_id":"inv-1"}`)}
	if err := SignEnvelope(env, signer); err != nil {
		t.Fatalf("SignEnvelope: %v", err)
	}

	hash, err := registry.PutArtifact(context.Background(), env)
	if err != nil {
		t.Fatalf("PutArtifact: %v", err)
	}

	got, err := registry.GetArtifact(context.Background(), hash)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if got.Type != env.Type || string(got.Payload) != string(env.Payload) {
		t.Fatalf("roundtrip mismatch: got %+v", got)
	}

	valid, reasons, err := registry.VerifyArtifact(context.Background(), hash)
	if err != nil {
		t.Fatalf("VerifyArtifact: %v", err)
	}
	if !valid {
		t.Fatalf("expected valid artifact, reasons: %v", reasons)
	}
}

func TestRegistry_VerifyArtifact_FailsClosedWithoutVerifier(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	signer, err := NewEd25519Signer()
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	registry := NewRegistry(store, nil)

	env := &ArtifactEnvelope{Type: TypeInvoiceDocument, Payload: json.RawMessage(`{"invoice_id":"inv-1"}`)}
	if err := SignEnvelope(env, signer); err != nil {
		t.Fatalf("SignEnvelope: %v", err)
	}
	hash, err := registry.PutArtifact(context.Background(), env)
	if err != nil {
		t.Fatalf("PutArtifact: %v", err)
	}

	valid, reasons, err := registry.VerifyArtifact(context.Background(), hash)
	if err != nil {
		t.Fatalf("VerifyArtifact: %v", err)
	}
	if valid {
		t.Fatalf("expected fail-closed verification without a configured verifier, reasons: %v", reasons)
	}
}

func TestRegistry_PutArtifact_RejectsMissingPayload(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	registry := NewRegistry(fs, nil)
	if _, err := registry.PutArtifact(context.Background(), &ArtifactEnvelope{Type: TypeInvoiceDocument}); err == nil {
		t.Fatalf("expected error for missing payload")
	}
}
