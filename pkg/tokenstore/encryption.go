// Package tokenstore is the tangential abstraction spec.md §9 names but
// scopes out of the core ("not part of the core spec") for storing
// third-party connector credentials (e.g. an ERP OAuth token) at rest.
// Tokens are AES-256-GCM encrypted, grounded on the teacher's
// pkg/credentials/store.go Store.encrypt/decrypt; the metadata envelope
// wrapping each ciphertext (tenant, connector, key version, a hash of
// the ciphertext) is additionally JWT-signed, grounded on the teacher's
// pkg/identity/token.go TokenManager, so a store backend that merely
// persists JSON (a file, a KV row) cannot have its metadata tampered
// with independently of the GCM-authenticated ciphertext itself.
package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EncryptedToken is a ciphertext plus the signed metadata envelope
// vouching for it.
type EncryptedToken struct {
	Ciphertext string `json:"ciphertext"` // base64, GCM-sealed (nonce-prefixed)
	Envelope   string `json:"envelope"`   // JWT: tenant/connector/key_version/ciphertext hash
	KeyVersion int    `json:"key_version"`
	CreatedAt  time.Time `json:"created_at"`
}

// envelopeClaims is the JWT payload signed over each EncryptedToken's
// metadata.
type envelopeClaims struct {
	jwt.RegisteredClaims
	ConnectorType    string `json:"connector_type"`
	KeyVersion       int    `json:"key_version"`
	CiphertextSHA256 string `json:"ciphertext_sha256"`
}

// ErrEnvelopeMismatch indicates the envelope's recorded ciphertext hash
// does not match the ciphertext it was stored beside — the metadata (or
// the ciphertext) was tampered with or substituted after signing.
var ErrEnvelopeMismatch = errors.New("tokenstore: envelope ciphertext hash mismatch")

// TokenEncryption encrypts token plaintext with AES-256-GCM and signs
// the envelope metadata with HMAC-SHA256 JWTs. key must be 32 bytes.
type TokenEncryption struct {
	key        []byte
	keyVersion int
}

// NewTokenEncryption builds a TokenEncryption. key must be exactly 32
// bytes (AES-256); keyVersion identifies this key for rotation — a
// later key can decrypt only tokens signed/encrypted under its own
// version, so callers must keep prior versions available to roll over.
func NewTokenEncryption(key []byte, keyVersion int) (*TokenEncryption, error) {
	if len(key) != 32 {
		return nil, errors.New("tokenstore: encryption key must be 32 bytes for AES-256")
	}
	return &TokenEncryption{key: key, keyVersion: keyVersion}, nil
}

// Encrypt seals plaintext and signs an envelope over (tenantID,
// connectorType, ciphertext hash).
func (e *TokenEncryption) Encrypt(tenantID, connectorType, plaintext string) (EncryptedToken, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return EncryptedToken{}, fmt.Errorf("tokenstore: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return EncryptedToken{}, fmt.Errorf("tokenstore: new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedToken{}, fmt.Errorf("tokenstore: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	ciphertext := base64.StdEncoding.EncodeToString(sealed)

	createdAt := time.Now()
	envelope, err := e.signEnvelope(tenantID, connectorType, ciphertext, createdAt)
	if err != nil {
		return EncryptedToken{}, err
	}

	return EncryptedToken{
		Ciphertext: ciphertext,
		Envelope:   envelope,
		KeyVersion: e.keyVersion,
		CreatedAt:  createdAt,
	}, nil
}

// Decrypt verifies the envelope against the ciphertext, then opens it.
func (e *TokenEncryption) Decrypt(tenantID string, enc EncryptedToken) (string, error) {
	claims, err := e.verifyEnvelope(enc.Envelope)
	if err != nil {
		return "", err
	}
	if claims.Subject != tenantID {
		return "", fmt.Errorf("tokenstore: envelope tenant %q does not match requested tenant %q", claims.Subject, tenantID)
	}
	if claims.CiphertextSHA256 != hashHex(enc.Ciphertext) {
		return "", ErrEnvelopeMismatch
	}

	data, err := base64.StdEncoding.DecodeString(enc.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("tokenstore: decode ciphertext: %w", err)
	}
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("tokenstore: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("tokenstore: new gcm: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return "", errors.New("tokenstore: ciphertext too short")
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("tokenstore: decrypt: %w", err)
	}
	return string(plaintext), nil
}

func (e *TokenEncryption) signEnvelope(tenantID, connectorType, ciphertext string, createdAt time.Time) (string, error) {
	claims := envelopeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  tenantID,
			IssuedAt: jwt.NewNumericDate(createdAt),
			Issuer:   "apcore/tokenstore",
		},
		ConnectorType:    connectorType,
		KeyVersion:       e.keyVersion,
		CiphertextSHA256: hashHex(ciphertext),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(e.key)
}

func (e *TokenEncryption) verifyEnvelope(envelope string) (*envelopeClaims, error) {
	claims := &envelopeClaims{}
	_, err := jwt.ParseWithClaims(envelope, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("tokenstore: unexpected signing method %v", t.Header["alg"])
		}
		return e.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tokenstore: invalid envelope: %w", err)
	}
	return claims, nil
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
