package session

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/servicedesk/navigation"
	"github.com/jrsteele09/servicedesk/users"
)

// HomeRoutes are the redirect targets of the route guard
type HomeRoutes struct {
	SignIn   string
	Admin    string
	Employee string
	Client   string
}

func DefaultHomes() HomeRoutes {
	return HomeRoutes{
		SignIn:   navigation.RouteSignIn,
		Admin:    navigation.RouteDashboard,
		Employee: navigation.RouteTasks,
		Client:   navigation.RouteServices,
	}
}

// For returns the home route of role. Unknown roles land on the admin home.
func (h HomeRoutes) For(role users.RoleType) string {
	switch role {
	case users.RoleClient:
		return h.Client
	case users.RoleEmployee:
		return h.Employee
	default:
		return h.Admin
	}
}

// Decide is the guard's transition table. It returns the path to replace the
// current location with, or false when the location is allowed.
//
//	signed out, outside the auth group -> sign-in
//	signed in, inside the auth group   -> role home
//	anything else                      -> stay
func Decide(profile *users.User, segments []string, homes HomeRoutes) (string, bool) {
	inAuthGroup := navigation.InGroup(segments, navigation.GroupAuth)
	switch {
	case profile == nil && !inAuthGroup:
		return homes.SignIn, true
	case profile != nil && inAuthGroup:
		return homes.For(profile.Role), true
	}
	return "", false
}

// guardInput is everything a decision depends on
type guardInput struct {
	userID   string
	role     users.RoleType
	segments string
	ready    bool
}

// Guard applies Decide whenever the cached profile or the location changes.
// It stays silent until the navigator is ready and redirects at most once for
// any given combination of inputs.
type Guard struct {
	nav           navigation.Navigator
	cache         *Cache
	homes         HomeRoutes
	indexRedirect bool
	onRedirect    func(from []string, to string)
	logger        zerolog.Logger

	mu   sync.Mutex
	last *guardInput
}

type GuardOption func(*Guard)

func WithHomes(homes HomeRoutes) GuardOption {
	return func(g *Guard) {
		g.homes = homes
	}
}

// WithIndexRedirect sends a signed-in user at the root location to their role home
func WithIndexRedirect() GuardOption {
	return func(g *Guard) {
		g.indexRedirect = true
	}
}

// WithRedirectHook is called after every redirect the guard issues
func WithRedirectHook(fn func(from []string, to string)) GuardOption {
	return func(g *Guard) {
		g.onRedirect = fn
	}
}

func WithGuardLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(cache *Cache, nav navigation.Navigator, opts ...GuardOption) *Guard {
	g := &Guard{
		nav:    nav,
		cache:  cache,
		homes:  DefaultHomes(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "route_guard").Logger()
	return g
}

// Evaluate is the cache observer
func (g *Guard) Evaluate(state State) {
	g.apply(state.Profile)
}

// LocationChanged is the navigator observer
func (g *Guard) LocationChanged() {
	g.apply(g.cache.Get().Profile)
}

func (g *Guard) apply(profile *users.User) {
	segments := g.nav.CurrentSegments()
	in := guardInput{
		segments: strings.Join(segments, "/"),
		ready:    g.nav.IsReady(),
	}
	if profile != nil {
		in.userID = profile.ID
		in.role = profile.Role
	}

	g.mu.Lock()
	if g.last != nil && *g.last == in {
		g.mu.Unlock()
		return
	}
	g.last = &in
	g.mu.Unlock()

	if !in.ready {
		return
	}

	target, ok := g.decide(profile, segments)
	if !ok {
		return
	}
	g.logger.Info().Str("from", "/"+in.segments).Str("to", target).Msg("redirecting")
	g.nav.Replace(target)
	if g.onRedirect != nil {
		g.onRedirect(segments, target)
	}
}

func (g *Guard) decide(profile *users.User, segments []string) (string, bool) {
	if g.indexRedirect && profile != nil && len(segments) == 0 {
		return g.homes.For(profile.Role), true
	}
	return Decide(profile, segments, g.homes)
}
