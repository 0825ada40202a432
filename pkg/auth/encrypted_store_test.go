package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEncryptedStore(t *testing.T) *EncryptedFileStore {
	t.Helper()
	t.Setenv("PIXDOWN_PASSPHRASE", "test-passphrase")

	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "tokens.enc"))
	require.NoError(t, err)
	return store
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	store := newTestEncryptedStore(t)

	cred := &Credential{
		Profile:      "default",
		RefreshToken: "refresh-secret",
		AccountName:  "tester",
	}
	require.NoError(t, store.Store(cred))

	got, err := store.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "refresh-secret", got.RefreshToken)
	assert.Equal(t, "tester", got.AccountName)
	assert.True(t, store.Exists("default"))
	assert.False(t, store.Exists("other"))
}

func TestEncryptedStoreFileIsOpaque(t *testing.T) {
	store := newTestEncryptedStore(t)
	require.NoError(t, store.Store(&Credential{
		Profile:      "default",
		RefreshToken: "refresh-secret",
	}))

	content, err := os.ReadFile(store.filepath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "refresh-secret",
		"the token must never appear in plaintext on disk")
}

func TestEncryptedStoreWrongPassphrase(t *testing.T) {
	t.Setenv("PIXDOWN_PASSPHRASE", "first-passphrase")
	path := filepath.Join(t.TempDir(), "tokens.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Profile: "default", RefreshToken: "tok"}))

	t.Setenv("PIXDOWN_PASSPHRASE", "other-passphrase")
	store2, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = store2.Retrieve("default")
	assert.Error(t, err, "a wrong passphrase must not decrypt the store")
}

func TestEncryptedStoreDeleteRemovesFile(t *testing.T) {
	store := newTestEncryptedStore(t)
	require.NoError(t, store.Store(&Credential{Profile: "default", RefreshToken: "tok"}))

	require.NoError(t, store.Delete("default"))

	// The last credential takes the file with it.
	_, err := os.Stat(store.filepath)
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, store.Delete("default"), ErrTokenNotFound)
}

func TestEncryptedStoreListsAllProfiles(t *testing.T) {
	store := newTestEncryptedStore(t)
	require.NoError(t, store.Store(&Credential{Profile: "default", RefreshToken: "a"}))
	require.NoError(t, store.Store(&Credential{Profile: "alt", RefreshToken: "b"}))

	creds, err := store.List()
	require.NoError(t, err)
	assert.Len(t, creds, 2)
}
