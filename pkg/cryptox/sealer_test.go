package cryptox_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/tickerwatch/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	t.Parallel()

	sealer, err := cryptox.NewSealer([]byte("test-master-key-for-encryption-12345"))
	require.NoError(t, err)

	sealed, err := sealer.Seal("bearer-token-value")
	require.NoError(t, err)
	require.NotContains(t, sealed, "bearer-token-value")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "bearer-token-value", opened)
}

func TestSealUsesRandomNonce(t *testing.T) {
	t.Parallel()

	sealer, err := cryptox.NewSealer([]byte("test-master-key-multiple-times-xyz"))
	require.NoError(t, err)

	a, err := sealer.Seal("same")
	require.NoError(t, err)
	b, err := sealer.Seal("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b, "multiple seals should produce different ciphertexts")
}

func TestOpenRejectsForeignValues(t *testing.T) {
	t.Parallel()

	sealer, err := cryptox.NewSealer([]byte("key-one"))
	require.NoError(t, err)
	other, err := cryptox.NewSealer([]byte("key-two"))
	require.NoError(t, err)

	t.Run("plaintext", func(t *testing.T) {
		_, err := sealer.Open("not-sealed")
		require.ErrorIs(t, err, cryptox.ErrNotSealed)
	})

	t.Run("different key", func(t *testing.T) {
		sealed, err := other.Seal("secret")
		require.NoError(t, err)

		_, err = sealer.Open(sealed)
		require.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := sealer.Open("v1:AAAA")
		require.Error(t, err)
	})
}

func TestNewSealerRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	_, err := cryptox.NewSealer(nil)
	require.Error(t, err)
}

func TestLoadOrCreateKeyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "master.key")

	created, err := cryptox.LoadOrCreateKeyFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, created)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := cryptox.LoadOrCreateKeyFile(path)
	require.NoError(t, err)
	require.Equal(t, created, loaded, "second load should return the stored key")
}

func TestLoadOrCreateKeyFileRejectsEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "master.key")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))

	_, err := cryptox.LoadOrCreateKeyFile(path)
	require.Error(t, err)
}
