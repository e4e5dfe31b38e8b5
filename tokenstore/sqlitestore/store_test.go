package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/servicedesk/tokenstore"
	"github.com/jrsteele09/servicedesk/tokenstore/sqlitestore"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTripSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	store, err := sqlitestore.Open(path)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNoToken)

	require.NoError(t, store.Save(ctx, "tok-1"))
	require.NoError(t, store.Save(ctx, "tok-2"))
	require.NoError(t, store.Close())

	reopened, err := sqlitestore.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	tok, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "tok-2", tok)

	require.NoError(t, reopened.Clear(ctx))
	_, err = reopened.Load(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNoToken)
}

func TestStoreRejectsEmptyToken(t *testing.T) {
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer store.Close()

	require.Error(t, store.Save(context.Background(), ""))
}
