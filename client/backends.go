package client

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/identity/kratos"
	"github.com/jrsteele09/servicedesk/identity/memgateway"
	"github.com/jrsteele09/servicedesk/identity/oidc"
	"github.com/jrsteele09/servicedesk/internal/config"
	apperrors "github.com/jrsteele09/servicedesk/internal/errors"
	"github.com/jrsteele09/servicedesk/tokenstore"
	"github.com/jrsteele09/servicedesk/tokenstore/redisstore"
	"github.com/jrsteele09/servicedesk/tokenstore/sqlitestore"
	"github.com/jrsteele09/servicedesk/users"
	"github.com/jrsteele09/servicedesk/users/postgres"
	fakeuserrepo "github.com/jrsteele09/servicedesk/users/repofake"
)

// backends are the external dependencies chosen by configuration
type backends struct {
	tokens   tokenstore.Store
	profiles users.Repo
	gateway  identity.Gateway
	closers  []func() // run in reverse order
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// openBackends opens the token store and profile store concurrently, then the
// gateway that persists its token in the store
func openBackends(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*backends, error) {
	b := &backends{}
	var tokenCloser, profileCloser func()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store, closer, err := openTokenStore(gctx, cfg)
		if err != nil {
			return err
		}
		b.tokens, tokenCloser = store, closer
		return nil
	})
	g.Go(func() error {
		repo, closer, err := openProfileStore(gctx, cfg, logger)
		if err != nil {
			return err
		}
		b.profiles, profileCloser = repo, closer
		return nil
	})
	err := g.Wait()
	for _, closer := range []func(){tokenCloser, profileCloser} {
		if closer != nil {
			b.closers = append(b.closers, closer)
		}
	}
	if err != nil {
		b.close()
		return nil, err
	}

	gateway, closer, err := openGateway(ctx, cfg, b.tokens, logger)
	if err != nil {
		b.close()
		return nil, err
	}
	b.gateway = gateway
	b.closers = append(b.closers, closer)
	return b, nil
}

func openTokenStore(ctx context.Context, cfg config.StoreConfig) (tokenstore.Store, func(), error) {
	switch backend := cfg.GetTokenStore(); backend {
	case config.TokenMemory:
		return tokenstore.NewMemory(), nil, nil
	case config.TokenSQLite:
		store, err := sqlitestore.Open(cfg.GetTokenDBPath())
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openTokenStore] sqlite")
		}
		return store, func() { _ = store.Close() }, nil
	case config.TokenRedis:
		store, err := redisstore.Dial(ctx, cfg.GetRedisAddr(), cfg.GetRedisKey(), cfg.GetRedisTokenTTL())
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openTokenStore] redis")
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, apperrors.Wrapf(apperrors.ErrUnknownBackend, "[openTokenStore] token store %q", backend)
	}
}

func openProfileStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (users.Repo, func(), error) {
	switch backend := cfg.GetProfileBackend(); backend {
	case config.ProfileMemory:
		return fakeuserrepo.NewFakeUserRepo(), nil, nil
	case config.ProfilePostgres:
		pool, err := postgres.Open(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewUserRepo(pool, logger)
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, errors.Wrap(err, "[openProfileStore] migrate")
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, apperrors.Wrapf(apperrors.ErrUnknownBackend, "[openProfileStore] profile store %q", backend)
	}
}

func openGateway(ctx context.Context, cfg config.GatewayConfig, tokens tokenstore.Store, logger zerolog.Logger) (identity.Gateway, func(), error) {
	switch backend := cfg.GetIdentityBackend(); backend {
	case config.IdentityMemory:
		opts := []memgateway.Option{
			memgateway.WithRequireConfirmation(cfg.GetRequireConfirmation()),
			memgateway.WithTokenStore(tokens),
			memgateway.WithLogger(logger),
		}
		if secret := cfg.GetJWTSecret(); secret != "" {
			opts = append(opts, memgateway.WithSecret([]byte(secret)))
		}
		gw, err := memgateway.New(opts...)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openGateway] memory")
		}
		return gw, gw.Close, nil
	case config.IdentityKratos:
		gw, err := kratos.New(cfg.GetKratosURL(), cfg.GetGatewayTimeout(),
			kratos.WithTokenStore(tokens),
			kratos.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openGateway] kratos")
		}
		return gw, gw.Close, nil
	case config.IdentityOIDC:
		gw, err := oidc.New(ctx, oidc.Config{
			Issuer:       cfg.GetOIDCIssuer(),
			ClientID:     cfg.GetOIDCClientID(),
			ClientSecret: cfg.GetOIDCClientSecret(),
			Timeout:      cfg.GetGatewayTimeout(),
		}, oidc.WithTokenStore(tokens), oidc.WithLogger(logger))
		if err != nil {
			return nil, nil, errors.Wrap(err, "[openGateway] oidc")
		}
		return gw, gw.Close, nil
	default:
		return nil, nil, apperrors.Wrapf(apperrors.ErrUnknownBackend, "[openGateway] identity backend %q", backend)
	}
}
