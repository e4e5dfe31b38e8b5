package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/session"
	"github.com/jrsteele09/servicedesk/users"
	fakeuserrepo "github.com/jrsteele09/servicedesk/users/repofake"
)

// stubGateway is a scriptable identity.Gateway
type stubGateway struct {
	*identity.Broadcaster

	mu            sync.Mutex
	current       func(ctx context.Context) (*identity.Session, error)
	signIn        func(email, password string) (*identity.Session, error)
	signUp        func(email, password string, meta identity.Metadata) (*identity.SignUpResult, error)
	signInCalls   int
	signUpCalls   int
	signOutCalls  int
	subscriptions int
}

func newStubGateway() *stubGateway {
	return &stubGateway{Broadcaster: identity.NewBroadcaster()}
}

func (g *stubGateway) GetCurrentSession(ctx context.Context) (*identity.Session, error) {
	g.mu.Lock()
	fn := g.current
	g.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (g *stubGateway) OnSessionChange() (<-chan identity.Event, func()) {
	g.mu.Lock()
	g.subscriptions++
	g.mu.Unlock()
	return g.Subscribe()
}

func (g *stubGateway) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	g.mu.Lock()
	g.signInCalls++
	fn := g.signIn
	g.mu.Unlock()
	return fn(email, password)
}

func (g *stubGateway) SignUp(_ context.Context, email, password string, meta identity.Metadata) (*identity.SignUpResult, error) {
	g.mu.Lock()
	g.signUpCalls++
	fn := g.signUp
	g.mu.Unlock()
	return fn(email, password, meta)
}

func (g *stubGateway) SignOut(context.Context) error {
	g.mu.Lock()
	g.signOutCalls++
	g.mu.Unlock()
	g.Publish(identity.Event{Type: identity.EventCleared})
	return nil
}

func (g *stubGateway) calls() (signIn, signUp, signOut int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.signInCalls, g.signUpCalls, g.signOutCalls
}

func established(userID string) identity.Event {
	return identity.Event{Type: identity.EventEstablished, Session: &identity.Session{UserID: userID, Token: "tok-" + userID}}
}

// faultyRepo fails lookups for chosen ids and can panic
type faultyRepo struct {
	users.Repo
	mu      sync.Mutex
	failIDs map[string]error
	panicOn string
}

func newFaultyRepo(base users.Repo) *faultyRepo {
	return &faultyRepo{Repo: base, failIDs: map[string]error{}}
}

func (r *faultyRepo) fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failIDs[id] = err
}

func (r *faultyRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	r.mu.Lock()
	err, failing := r.failIDs[id]
	panics := r.panicOn == id
	r.mu.Unlock()
	if panics {
		panic("lookup exploded")
	}
	if failing {
		return nil, err
	}
	return r.Repo.GetByID(ctx, id)
}

func seededRepo(t *testing.T, profiles ...*users.User) *fakeuserrepo.FakeUserRepo {
	t.Helper()
	repo := fakeuserrepo.NewFakeUserRepo()
	for _, p := range profiles {
		require.NoError(t, repo.Insert(context.Background(), p.Clone()))
	}
	return repo
}

var (
	ann = &users.User{ID: "ann", Name: "Ann", Email: "ann@example.com", Role: users.RoleClient}
	bob = &users.User{ID: "bob", Name: "Bob", Email: "bob@example.com", Role: users.RoleEmployee}
	eve = &users.User{ID: "eve", Name: "Eve", Email: "eve@example.com", Role: users.RoleAdmin}
)

func profileID(s session.State) string {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.ID
}

// waitForState polls the cache until cond holds
func waitForState(t *testing.T, cache *session.Cache, cond func(session.State) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(cache.Get()) }, 2*time.Second, 5*time.Millisecond)
}

func startSync(t *testing.T, gw identity.Gateway, repo users.Repo, cache *session.Cache) *session.Synchronizer {
	t.Helper()
	s := session.NewSynchronizer(gw, repo, cache)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	select {
	case <-s.Bootstrapped():
	case <-time.After(2 * time.Second):
		t.Fatal("bootstrap did not finish")
	}
	return s
}

// recorder collects the profile id of every cache write
type recorder struct {
	mu   sync.Mutex
	seen []string
}

func record(cache *session.Cache) *recorder {
	r := &recorder{}
	cache.Subscribe(func(s session.State) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, profileID(s))
	})
	return r
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func (r *recorder) waitFor(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.ids()) >= n }, 2*time.Second, 5*time.Millisecond)
	return r.ids()
}
