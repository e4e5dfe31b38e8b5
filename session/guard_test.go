package session_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/servicedesk/navigation"
	"github.com/jrsteele09/servicedesk/session"
	"github.com/jrsteele09/servicedesk/users"
)

// fakeNavigator records replaces without moving, so repeated evaluations see the same location
type fakeNavigator struct {
	mu       sync.Mutex
	segments []string
	ready    bool
	replaced []string
}

func (n *fakeNavigator) CurrentSegments() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.segments
}

func (n *fakeNavigator) IsReady() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

func (n *fakeNavigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replaced = append(n.replaced, path)
}

func (n *fakeNavigator) setReady() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = true
}

func (n *fakeNavigator) replaces() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replaced...)
}

func TestDecide(t *testing.T) {
	homes := session.DefaultHomes()
	authArea := []string{navigation.GroupAuth, "sign-in"}
	appArea := []string{navigation.GroupApp, "dashboard"}

	tests := []struct {
		name     string
		profile  *users.User
		segments []string
		want     string
		redirect bool
	}{
		{"signed out outside auth", nil, appArea, navigation.RouteSignIn, true},
		{"signed out at root", nil, []string{}, navigation.RouteSignIn, true},
		{"signed out in auth", nil, authArea, "", false},
		{"admin in auth", eve, authArea, navigation.RouteDashboard, true},
		{"client in auth", ann, authArea, navigation.RouteServices, true},
		{"employee in auth", bob, authArea, navigation.RouteTasks, true},
		{"unknown role in auth", &users.User{ID: "x", Role: "manager"}, authArea, navigation.RouteDashboard, true},
		{"signed in outside auth", ann, appArea, "", false},
		{"signed in at root", ann, []string{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := session.Decide(tt.profile, tt.segments, homes)
			require.Equal(t, tt.redirect, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGuardWaitsForReadiness(t *testing.T) {
	cache := session.NewCache()
	nav := &fakeNavigator{segments: []string{navigation.GroupApp, "dashboard"}}
	guard := session.NewGuard(cache, nav)

	guard.Evaluate(session.State{})
	guard.LocationChanged()
	require.Empty(t, nav.replaces())

	nav.setReady()
	guard.LocationChanged()
	require.Equal(t, []string{navigation.RouteSignIn}, nav.replaces())
}

func TestGuardRedirectsOncePerChange(t *testing.T) {
	cache := session.NewCache()
	nav := &fakeNavigator{segments: []string{navigation.GroupAuth, "sign-in"}, ready: true}
	guard := session.NewGuard(cache, nav)
	cache.Subscribe(guard.Evaluate)

	cache.Set(ann)
	cache.SetLoading(false)
	guard.LocationChanged()
	require.Equal(t, []string{navigation.RouteServices}, nav.replaces())

	// a different profile is a relevant change
	cache.Set(bob)
	require.Equal(t, []string{navigation.RouteServices, navigation.RouteTasks}, nav.replaces())
}

func TestGuardWithStack(t *testing.T) {
	cache := session.NewCache()
	stack := navigation.NewStack(navigation.RouteDashboard)
	var redirects []string
	guard := session.NewGuard(cache, stack, session.WithRedirectHook(func(_ []string, to string) {
		redirects = append(redirects, to)
	}))
	cache.Subscribe(guard.Evaluate)
	stack.OnChange(guard.LocationChanged)

	cache.Set(nil)
	require.Equal(t, navigation.RouteDashboard, stack.CurrentPath())

	stack.MarkReady()
	require.Equal(t, navigation.RouteSignIn, stack.CurrentPath())
	require.Equal(t, []string{navigation.RouteSignIn}, stack.History())

	cache.Set(eve)
	require.Equal(t, navigation.RouteDashboard, stack.CurrentPath())

	stack.Push(navigation.RouteUsers)
	require.Equal(t, navigation.RouteUsers, stack.CurrentPath())

	cache.Set(nil)
	require.Equal(t, navigation.RouteSignIn, stack.CurrentPath())
	require.Equal(t, []string{navigation.RouteSignIn, navigation.RouteDashboard, navigation.RouteSignIn}, redirects)
}

func TestGuardIndexRedirect(t *testing.T) {
	cache := session.NewCache()
	stack := navigation.NewStack(navigation.RouteIndex)
	stack.MarkReady()

	guard := session.NewGuard(cache, stack, session.WithIndexRedirect())
	cache.Subscribe(guard.Evaluate)
	stack.OnChange(guard.LocationChanged)

	cache.Set(bob)
	require.Equal(t, navigation.RouteTasks, stack.CurrentPath())

	without := navigation.NewStack(navigation.RouteIndex)
	without.MarkReady()
	plain := session.NewGuard(cache, without)
	plain.LocationChanged()
	require.Equal(t, navigation.RouteIndex, without.CurrentPath())
}
