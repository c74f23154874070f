package artifacts

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrSignerNotConfigured = errors.New("artifacts: signer not configured (fail-closed)")
)

// Signer produces a hex-encoded signature over an artifact payload and
// identifies the key that produced it. Verifier checks one.
//
// This module has no dependency on an HSM or a KMS-backed signing
// service (no such client is wired anywhere in this tree), so the only
// implementation is Ed25519Signer below, built directly on the standard
// library's crypto/ed25519 rather than a third-party signing package —
// ed25519 needs nothing beyond key generation and Sign/Verify, which the
// standard library already provides with no framework to add on top.
type Signer interface {
	Sign(data []byte) (string, error)
	PublicKey() string
}

// Verifier checks a raw (already hex-decoded) signature against a public key.
type Verifier interface {
	Verify(data []byte, sig []byte) bool
}

// Ed25519Signer signs with a standard library ed25519 private key.
type Ed25519Signer struct {
	priv   ed25519.PrivateKey
	pubHex string
}

// NewEd25519Signer generates a fresh ed25519 keypair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("artifacts: generate ed25519 key: %w", err)
	}
	return &Ed25519Signer{priv: priv, pubHex: hex.EncodeToString(pub)}, nil
}

// NewEd25519SignerFromKey wraps an existing private key (e.g. loaded from
// TokenStore-managed secret material) instead of generating a new one.
func NewEd25519SignerFromKey(priv ed25519.PrivateKey) *Ed25519Signer {
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{priv: priv, pubHex: hex.EncodeToString(pub)}
}

func (s *Ed25519Signer) Sign(data []byte) (string, error) {
	sig := ed25519.Sign(s.priv, data)
	return hex.EncodeToString(sig), nil
}

func (s *Ed25519Signer) PublicKey() string { return s.pubHex }

// Ed25519Verifier verifies signatures against one fixed public key.
type Ed25519Verifier struct {
	pub ed25519.PublicKey
}

// NewEd25519Verifier parses a hex-encoded ed25519 public key.
func NewEd25519Verifier(pubHex string) (*Ed25519Verifier, error) {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("artifacts: decode public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("artifacts: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return &Ed25519Verifier{pub: ed25519.PublicKey(pub)}, nil
}

func (v *Ed25519Verifier) Verify(data []byte, sig []byte) bool {
	return ed25519.Verify(v.pub, data, sig)
}

// SignEnvelope signs the envelope payload and stamps signature metadata.
//
// Note: Registry.VerifyArtifact verifies signatures over Payload bytes,
// so we sign the Payload directly rather than the canonicalized envelope.
func SignEnvelope(env *ArtifactEnvelope, signer Signer) error {
	if env == nil {
		return errors.New("artifacts: nil envelope")
	}
	if signer == nil {
		return ErrSignerNotConfigured
	}
	if len(env.Payload) == 0 {
		return errors.New("artifacts: missing payload")
	}

	sig, err := signer.Sign(env.Payload)
	if err != nil {
		return fmt.Errorf("artifacts: sign failed: %w", err)
	}
	env.Signature = sig
	env.SignatureKeyID = signer.PublicKey()
	return nil
}
