package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func key32() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestEncryptDecrypt_RoundTrips(t *testing.T) {
	enc, err := NewTokenEncryption(key32(), 1)
	assert.NoError(t, err)

	token, err := enc.Encrypt("tenant-1", "business_central", "super-secret-access-token")
	assert.NoError(t, err)
	assert.NotEmpty(t, token.Ciphertext)
	assert.NotEmpty(t, token.Envelope)
	assert.Equal(t, 1, token.KeyVersion)

	plaintext, err := enc.Decrypt("tenant-1", token)
	assert.NoError(t, err)
	assert.Equal(t, "super-secret-access-token", plaintext)
}

func TestDecrypt_WrongTenantRejected(t *testing.T) {
	enc, err := NewTokenEncryption(key32(), 1)
	assert.NoError(t, err)

	token, err := enc.Encrypt("tenant-1", "business_central", "secret")
	assert.NoError(t, err)

	_, err = enc.Decrypt("tenant-2", token)
	assert.Error(t, err)
}

func TestDecrypt_TamperedCiphertextRejected(t *testing.T) {
	enc, err := NewTokenEncryption(key32(), 1)
	assert.NoError(t, err)

	token, err := enc.Encrypt("tenant-1", "business_central", "secret")
	assert.NoError(t, err)

	token.Ciphertext = token.Ciphertext[:len(token.Ciphertext)-4] + "abcd"
	_, err = enc.Decrypt("tenant-1", token)
	assert.Error(t, err)
}

func TestDecrypt_WrongKeyRejected(t *testing.T) {
	enc, err := NewTokenEncryption(key32(), 1)
	assert.NoError(t, err)
	token, err := enc.Encrypt("tenant-1", "business_central", "secret")
	assert.NoError(t, err)

	otherKey := key32()
	otherKey[0] ^= 0xFF
	other, err := NewTokenEncryption(otherKey, 1)
	assert.NoError(t, err)

	_, err = other.Decrypt("tenant-1", token)
	assert.Error(t, err)
}

func TestNewTokenEncryption_RejectsWrongKeyLength(t *testing.T) {
	_, err := NewTokenEncryption([]byte("too-short"), 1)
	assert.Error(t, err)
}

func TestInMemoryStore_StoreGetDeleteListTenants(t *testing.T) {
	store := NewInMemoryStore()
	enc, _ := NewTokenEncryption(key32(), 1)
	ctx := context.Background()

	encToken, _ := enc.Encrypt("tenant-1", "business_central", "secret")
	record := StoredToken{TenantID: "tenant-1", ConnectorType: "business_central", Token: encToken}
	assert.NoError(t, store.Store(ctx, record))

	got, found, err := store.Get(ctx, "tenant-1", "business_central")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tenant-1", got.TenantID)

	_, found, err = store.Get(ctx, "tenant-missing", "business_central")
	assert.NoError(t, err)
	assert.False(t, found)

	tenants, err := store.ListTenants(ctx, "business_central")
	assert.NoError(t, err)
	assert.Contains(t, tenants, "tenant-1")

	deleted, err := store.Delete(ctx, "tenant-1", "business_central")
	assert.NoError(t, err)
	assert.True(t, deleted)

	_, found, _ = store.Get(ctx, "tenant-1", "business_central")
	assert.False(t, found)
}

func TestUpdateLastUsed_StampsTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	enc, _ := NewTokenEncryption(key32(), 1)
	ctx := context.Background()

	encToken, _ := enc.Encrypt("tenant-1", "business_central", "secret")
	assert.NoError(t, store.Store(ctx, StoredToken{TenantID: "tenant-1", ConnectorType: "business_central", Token: encToken}))

	assert.NoError(t, UpdateLastUsed(ctx, store, "tenant-1", "business_central"))

	got, found, _ := store.Get(ctx, "tenant-1", "business_central")
	assert.True(t, found)
	assert.NotNil(t, got.LastUsedAt)
}

func TestStoredToken_IsAccessExpired(t *testing.T) {
	future := time.Now().Add(time.Hour)
	fresh := StoredToken{ExpiresAt: &future}
	assert.False(t, fresh.IsAccessExpired(300))

	past := time.Now().Add(-time.Hour)
	stale := StoredToken{ExpiresAt: &past}
	assert.True(t, stale.IsAccessExpired(300))

	noExpiry := StoredToken{}
	assert.True(t, noExpiry.IsAccessExpired(300))
}
