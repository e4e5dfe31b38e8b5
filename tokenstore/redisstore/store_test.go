package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/servicedesk/tokenstore"
	"github.com/jrsteele09/servicedesk/tokenstore/redisstore"
)

func newTestStore(t *testing.T, ttl time.Duration) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := redisstore.New(rdb, "servicedesk:session_token", ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNoToken)

	require.NoError(t, store.Save(ctx, "tok-1"))
	got, err := mr.Get("servicedesk:session_token")
	require.NoError(t, err)
	require.Equal(t, "tok-1", got)

	tok, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)

	require.NoError(t, store.Clear(ctx))
	require.False(t, mr.Exists("servicedesk:session_token"))
}

func TestStoreTTLExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, time.Minute)

	require.NoError(t, store.Save(ctx, "tok-1"))
	require.Equal(t, time.Minute, mr.TTL("servicedesk:session_token"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Load(ctx)
	require.ErrorIs(t, err, tokenstore.ErrNoToken)
}

func TestDialFailsWithoutServer(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = redisstore.Dial(ctx, addr, "k", 0)
	require.Error(t, err)
}
