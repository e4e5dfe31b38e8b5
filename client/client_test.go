package client_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/servicedesk/client"
	"github.com/jrsteele09/servicedesk/identity/memgateway"
	"github.com/jrsteele09/servicedesk/internal/config"
	apperrors "github.com/jrsteele09/servicedesk/internal/errors"
	"github.com/jrsteele09/servicedesk/navigation"
	"github.com/jrsteele09/servicedesk/session"
	"github.com/jrsteele09/servicedesk/tokenstore/sqlitestore"
	fakeuserrepo "github.com/jrsteele09/servicedesk/users/repofake"
)

var signUp = session.SignUpRequest{
	Name:            "Ann",
	Email:           "ann@example.com",
	Password:        "secret1",
	ConfirmPassword: "secret1",
	Role:            "client",
}

// memoryEnv points every backend at its in-process implementation
func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SERVICEDESK_CONFIG", "")
	t.Setenv("IDENTITY_BACKEND", config.IdentityMemory)
	t.Setenv("PROFILE_BACKEND", config.ProfileMemory)
	t.Setenv("TOKEN_STORE", config.TokenMemory)
	t.Setenv("REQUIRE_EMAIL_CONFIRMATION", "")
	t.Setenv("JWT_SECRET", "")
}

func startClient(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.New(context.Background(), config.New(), opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.Start(context.Background()))
	return c
}

func waitForPath(t *testing.T, c *client.Client, path string) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Navigator.CurrentPath() == path }, 2*time.Second, 5*time.Millisecond)
}

func TestSignedOutStartLandsOnSignIn(t *testing.T) {
	memoryEnv(t)
	c := startClient(t)

	require.True(t, c.Navigator.IsReady())
	require.Equal(t, navigation.RouteSignIn, c.Navigator.CurrentPath())
	state := c.Cache.Get()
	require.Nil(t, state.Profile)
	require.False(t, state.IsLoading)
}

func TestSessionLifecycle(t *testing.T) {
	memoryEnv(t)
	c := startClient(t)
	ctx := context.Background()

	require.NoError(t, c.Actions.SignUp(ctx, signUp))
	waitForPath(t, c, navigation.RouteServices)

	require.NoError(t, c.Actions.SignOut(ctx))
	waitForPath(t, c, navigation.RouteSignIn)
	require.Eventually(t, func() bool { return c.Cache.Get().Profile == nil }, 2*time.Second, 5*time.Millisecond)

	_, err := c.Actions.SignIn(ctx, signUp.Email, signUp.Password)
	require.NoError(t, err)
	waitForPath(t, c, navigation.RouteServices)

	// clients may not manage users
	_, err = c.Users.List(ctx)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestInjectedBackendsAndRedirectHook(t *testing.T) {
	memoryEnv(t)
	gw, err := memgateway.New()
	require.NoError(t, err)
	t.Cleanup(gw.Close)
	repo := fakeuserrepo.NewFakeUserRepo()

	var mu sync.Mutex
	var redirects []string
	c := startClient(t,
		client.WithGateway(gw),
		client.WithProfileRepo(repo),
		client.WithInitialPath(navigation.RouteSignUp),
		client.WithRedirectHook(func(_ []string, to string) {
			mu.Lock()
			defer mu.Unlock()
			redirects = append(redirects, to)
		}),
	)
	require.Same(t, gw, c.Gateway)
	require.Equal(t, navigation.RouteSignUp, c.Navigator.CurrentPath())

	req := signUp
	req.Role = "employee"
	require.NoError(t, c.Actions.SignUp(context.Background(), req))
	waitForPath(t, c, navigation.RouteTasks)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, redirects)
	require.Equal(t, navigation.RouteTasks, redirects[len(redirects)-1])
}

func TestSQLiteTokenStore(t *testing.T) {
	memoryEnv(t)
	path := filepath.Join(t.TempDir(), "tokens", "session.db")
	t.Setenv("TOKEN_STORE", config.TokenSQLite)
	t.Setenv("TOKEN_DB_PATH", path)

	c := startClient(t)
	require.NoError(t, c.Actions.SignUp(context.Background(), signUp))
	c.Close()

	store, err := sqlitestore.Open(path)
	require.NoError(t, err)
	defer store.Close()
	token, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestRedisTokenStore(t *testing.T) {
	memoryEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("TOKEN_STORE", config.TokenRedis)
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("REDIS_TOKEN_KEY", "test:token")
	t.Setenv("REDIS_TOKEN_TTL", "")

	c := startClient(t)
	require.NoError(t, c.Actions.SignUp(context.Background(), signUp))
	token, err := mr.Get("test:token")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, c.Actions.SignOut(context.Background()))
	require.False(t, mr.Exists("test:token"))
}

func TestUnknownBackend(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"identity", "IDENTITY_BACKEND", "ldap"},
		{"profiles", "PROFILE_BACKEND", "mongo"},
		{"tokens", "TOKEN_STORE", "keychain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memoryEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := client.New(context.Background(), config.New())
			require.ErrorIs(t, err, apperrors.ErrUnknownBackend)
		})
	}
}

func TestRunStopsWithContext(t *testing.T) {
	memoryEnv(t)
	c, err := client.New(context.Background(), config.New())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, c.Navigator.IsReady, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	c.Close()
}
