package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/users"
)

// Synchronizer keeps the Cache in step with the gateway. A single listener
// goroutine runs the startup check and then applies session events in arrival
// order, so cache writes from this side never race each other.
type Synchronizer struct {
	gateway identity.Gateway
	repo    users.Repo
	cache   *Cache
	logger  zerolog.Logger

	mu           sync.Mutex
	started      bool
	alive        atomic.Bool
	cancel       context.CancelFunc
	unsubscribe  func()
	wg           sync.WaitGroup
	bootstrapped chan struct{}
	closeOnce    sync.Once
}

type SynchronizerOption func(*Synchronizer)

func WithSynchronizerLogger(logger zerolog.Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

func NewSynchronizer(gateway identity.Gateway, repo users.Repo, cache *Cache, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		gateway:      gateway,
		repo:         repo,
		cache:        cache,
		logger:       zerolog.Nop(),
		bootstrapped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "session_sync").Logger()
	return s
}

// Start subscribes to session changes and then launches the listener. The
// subscription exists before the startup check runs, so no change is missed.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("[Start] synchronizer already started or closed")
	}
	s.started = true

	events, unsubscribe := s.gateway.OnSessionChange()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.unsubscribe = unsubscribe
	s.alive.Store(true)

	s.wg.Add(1)
	go s.listen(ctx, events)
	return nil
}

// Bootstrapped is closed once the startup session check has resolved
func (s *Synchronizer) Bootstrapped() <-chan struct{} {
	return s.bootstrapped
}

// Close stops the listener and waits for it. Nothing reaches the cache afterwards.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		s.alive.Store(false)

		s.mu.Lock()
		s.started = true
		cancel, unsubscribe := s.cancel, s.unsubscribe
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if unsubscribe != nil {
			unsubscribe()
		}
		s.wg.Wait()
	})
}

func (s *Synchronizer) listen(ctx context.Context, events <-chan identity.Event) {
	defer s.wg.Done()

	s.bootstrap(ctx)
	close(s.bootstrapped)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, e)
		}
	}
}

// bootstrap resolves the session that existed before startup. Loading is cleared
// on every exit path.
func (s *Synchronizer) bootstrap(ctx context.Context) {
	defer s.setLoading(ctx, false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("session bootstrap panicked")
			s.set(ctx, nil)
		}
	}()

	session, err := s.gateway.GetCurrentSession(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read current session")
		s.set(ctx, nil)
		return
	}
	if session == nil {
		s.set(ctx, nil)
		return
	}
	s.set(ctx, s.resolve(ctx, session.UserID))
}

func (s *Synchronizer) handle(ctx context.Context, e identity.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Stringer("event", e.Type).Msg("session event handler panicked")
			s.set(ctx, nil)
		}
	}()

	s.logger.Debug().Stringer("event", e.Type).Msg("session change")
	if e.Type != identity.EventEstablished || e.Session == nil {
		s.set(ctx, nil)
		return
	}
	s.set(ctx, s.resolve(ctx, e.Session.UserID))
}

// resolve returns nil when the profile is missing or the lookup fails
func (s *Synchronizer) resolve(ctx context.Context, userID string) *users.User {
	profile, err := s.repo.GetByID(ctx, userID)
	switch {
	case errors.Is(err, users.ErrNotFound), err == nil && profile == nil:
		s.logger.Warn().Str("user_id", userID).Msg("no user profile found")
		return nil
	case err != nil:
		s.logger.Error().Err(fmt.Errorf("[resolve] %w", err)).Str("user_id", userID).Msg("error fetching user profile")
		return nil
	}
	return profile
}

func (s *Synchronizer) set(ctx context.Context, profile *users.User) {
	if !s.alive.Load() || ctx.Err() != nil {
		return
	}
	s.cache.Set(profile)
}

func (s *Synchronizer) setLoading(ctx context.Context, loading bool) {
	if !s.alive.Load() || ctx.Err() != nil {
		return
	}
	s.cache.SetLoading(loading)
}
