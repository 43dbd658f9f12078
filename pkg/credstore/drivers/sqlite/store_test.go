package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/tickerwatch/pkg/credstore"
	"github.com/aussiebroadwan/tickerwatch/pkg/credstore/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dsn string) *sqlite.Store {
	t.Helper()

	store, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.ApplyMigrations())
	return store
}

func TestStoreGetSetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newTestStore(t, ":memory:")

	_, err := store.Get(ctx, credstore.KeyAccessToken)
	require.ErrorIs(t, err, credstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, credstore.KeyAccessToken, "first"))
	require.NoError(t, store.Set(ctx, credstore.KeyAccessToken, "second"))

	value, err := store.Get(ctx, credstore.KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, "second", value)

	require.NoError(t, store.Delete(ctx, credstore.KeyAccessToken))
	require.NoError(t, store.Delete(ctx, credstore.KeyAccessToken), "delete should be idempotent")

	_, err = store.Get(ctx, credstore.KeyAccessToken)
	require.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, ":memory:")
	require.NoError(t, store.ApplyMigrations())
}

func TestValuesSurviveReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dsn := sqlite.FileDSN(filepath.Join(t.TempDir(), "creds.db"))

	first, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, first.ApplyMigrations())
	require.NoError(t, first.Set(ctx, credstore.KeyRememberMe, "true"))
	require.NoError(t, first.Close())

	second := newTestStore(t, dsn)
	value, err := second.Get(ctx, credstore.KeyRememberMe)
	require.NoError(t, err)
	require.Equal(t, "true", value)
}
