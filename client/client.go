// Package client assembles the session components into a running application.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/servicedesk/admin"
	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/internal/config"
	"github.com/jrsteele09/servicedesk/navigation"
	"github.com/jrsteele09/servicedesk/session"
	"github.com/jrsteele09/servicedesk/users"
)

// Client owns the session cache and everything that reads or writes it
type Client struct {
	Gateway   identity.Gateway
	Profiles  users.Repo
	Cache     *session.Cache
	Navigator *navigation.Stack
	Sync      *session.Synchronizer
	Guard     *session.Guard
	Actions   *session.Actions
	Users     *admin.UserManager

	backends    *backends
	unsubscribe []func()
	logger      zerolog.Logger
	closeOnce   sync.Once
}

type options struct {
	logger       zerolog.Logger
	initialPath  string
	redirectHook func(from []string, to string)
	gateway      identity.Gateway
	profiles     users.Repo
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithInitialPath sets where navigation starts. Defaults to the index route.
func WithInitialPath(path string) Option {
	return func(o *options) {
		o.initialPath = path
	}
}

// WithRedirectHook is called after each guard redirect
func WithRedirectHook(fn func(from []string, to string)) Option {
	return func(o *options) {
		o.redirectHook = fn
	}
}

// WithGateway uses gateway instead of the configured identity backend
func WithGateway(gateway identity.Gateway) Option {
	return func(o *options) {
		o.gateway = gateway
	}
}

// WithProfileRepo uses repo instead of the configured profile store
func WithProfileRepo(repo users.Repo) Option {
	return func(o *options) {
		o.profiles = repo
	}
}

// New opens the configured backends and wires the session components. Nothing
// runs until Start.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	o := options{
		logger:      zerolog.Nop(),
		initialPath: navigation.RouteIndex,
	}
	for _, opt := range opts {
		opt(&o)
	}

	b := &backends{gateway: o.gateway, profiles: o.profiles}
	if b.gateway == nil || b.profiles == nil {
		opened, err := openBackends(ctx, cfg, o.logger)
		if err != nil {
			return nil, fmt.Errorf("[client New] failed to open backends: %w", err)
		}
		if b.gateway == nil {
			b.gateway = opened.gateway
		}
		if b.profiles == nil {
			b.profiles = opened.profiles
		}
		b.tokens = opened.tokens
		b.closers = opened.closers
	}

	c := &Client{
		Gateway:   b.gateway,
		Profiles:  b.profiles,
		Cache:     session.NewCache(),
		Navigator: navigation.NewStack(o.initialPath),
		backends:  b,
		logger:    o.logger.With().Str("component", "client").Logger(),
	}

	guardOpts := []session.GuardOption{
		session.WithIndexRedirect(),
		session.WithGuardLogger(o.logger),
	}
	if o.redirectHook != nil {
		guardOpts = append(guardOpts, session.WithRedirectHook(o.redirectHook))
	}

	c.Sync = session.NewSynchronizer(c.Gateway, c.Profiles, c.Cache, session.WithSynchronizerLogger(o.logger))
	c.Guard = session.NewGuard(c.Cache, c.Navigator, guardOpts...)
	c.Actions = session.NewActions(c.Gateway, c.Profiles, c.Cache, session.WithActionsLogger(o.logger))
	c.Users = admin.NewUserManager(c.Profiles, c.Cache, admin.WithLogger(o.logger))

	c.unsubscribe = append(c.unsubscribe,
		c.Cache.Subscribe(c.Guard.Evaluate),
		c.Navigator.OnChange(c.Guard.LocationChanged),
	)
	return c, nil
}

// Start begins listening for session changes and returns once the session that
// existed at startup is resolved. Navigation is marked ready at that point.
func (c *Client) Start(ctx context.Context) error {
	if err := c.Sync.Start(ctx); err != nil {
		return fmt.Errorf("[client Start] %w", err)
	}
	select {
	case <-c.Sync.Bootstrapped():
	case <-ctx.Done():
		return ctx.Err()
	}
	c.Navigator.MarkReady()

	state := c.Cache.Get()
	if state.Profile != nil {
		c.logger.Info().Str("user_id", state.Profile.ID).Msg("session restored")
	} else {
		c.logger.Debug().Msg("no session to restore")
	}
	return nil
}

// Run starts the client and blocks until ctx is done, then closes it
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Close stops the synchronizer, detaches the guard and closes the backends, in
// that order. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.Sync.Close()
		for i := len(c.unsubscribe) - 1; i >= 0; i-- {
			c.unsubscribe[i]()
		}
		c.Cache.Close()
		c.backends.close()
	})
}
