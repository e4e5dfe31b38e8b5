package memgateway

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/tokenstore"
)

const (
	defaultSessionTTL = time.Hour
	minPasswordLength = 6
)

var _ identity.Gateway = (*Gateway)(nil)

type account struct {
	id           string
	email        string
	passwordHash []byte
	meta         identity.Metadata
	confirmed    bool
}

// Gateway is a self-contained identity provider. Passwords are bcrypt hashed and
// sessions are HS256 signed JWTs persisted in a token store.
type Gateway struct {
	mu                  sync.Mutex
	accounts            map[string]*account // by lower-cased email
	secret              []byte
	requireConfirmation bool
	sessionTTL          time.Duration
	now                 func() time.Time
	tokens              tokenstore.Store
	events              *identity.Broadcaster
	logger              zerolog.Logger
}

type Option func(*Gateway)

// WithRequireConfirmation makes SignUp return no session until Confirm is called
func WithRequireConfirmation(require bool) Option {
	return func(g *Gateway) {
		g.requireConfirmation = require
	}
}

func WithSecret(secret []byte) Option {
	return func(g *Gateway) {
		if len(secret) > 0 {
			g.secret = secret
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		if ttl > 0 {
			g.sessionTTL = ttl
		}
	}
}

func WithTokenStore(store tokenstore.Store) Option {
	return func(g *Gateway) {
		g.tokens = store
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{
		accounts:   make(map[string]*account),
		sessionTTL: defaultSessionTTL,
		now:        time.Now,
		tokens:     tokenstore.NewMemory(),
		events:     identity.NewBroadcaster(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if len(g.secret) == 0 {
		g.secret = make([]byte, 32)
		if _, err := rand.Read(g.secret); err != nil {
			return nil, fmt.Errorf("[New] generate signing key: %w", err)
		}
	}
	g.logger = g.logger.With().Str("component", "memgateway").Logger()
	return g, nil
}

func (g *Gateway) OnSessionChange() (<-chan identity.Event, func()) {
	return g.events.Subscribe()
}

// GetCurrentSession restores the persisted token. An expired or unreadable token
// is discarded and reported as no session.
func (g *Gateway) GetCurrentSession(ctx context.Context) (*identity.Session, error) {
	token, err := g.tokens.Load(ctx)
	if errors.Is(err, tokenstore.ErrNoToken) {
		return nil, nil
	}
	if err != nil {
		return nil, identity.NewAuthError(identity.CodeUnavailable, "Unable to read session", err)
	}

	session, err := g.parse(token)
	if err != nil {
		g.logger.Debug().Err(err).Msg("discarding stored session")
		if err := g.tokens.Clear(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("failed to clear stored session")
		}
		return nil, nil
	}

	g.mu.Lock()
	_, known := g.accountByID(session.UserID)
	g.mu.Unlock()
	if !known {
		return nil, nil
	}
	return session, nil
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	g.mu.Lock()
	acct, ok := g.accounts[normalizeEmail(email)]
	g.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		return nil, identity.NewAuthError(identity.CodeInvalidCredentials, "Invalid login credentials", nil)
	}
	if !acct.confirmed {
		return nil, identity.NewAuthError(identity.CodeEmailNotConfirmed, "Email not confirmed", nil)
	}
	return g.establish(ctx, acct.id)
}

func (g *Gateway) SignUp(ctx context.Context, email, password string, meta identity.Metadata) (*identity.SignUpResult, error) {
	if len(password) < minPasswordLength {
		return nil, identity.NewAuthError(identity.CodeWeakPassword,
			fmt.Sprintf("Password should be at least %d characters", minPasswordLength), nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, identity.NewAuthError(identity.CodeUnknown, "Unable to create account", err)
	}

	key := normalizeEmail(email)
	g.mu.Lock()
	if _, exists := g.accounts[key]; exists {
		g.mu.Unlock()
		return nil, identity.NewAuthError(identity.CodeUserExists, "User already registered", nil)
	}
	acct := &account{
		id:           uuid.New().String(),
		email:        key,
		passwordHash: hash,
		meta:         meta,
		confirmed:    !g.requireConfirmation,
	}
	g.accounts[key] = acct
	g.mu.Unlock()

	g.logger.Info().Str("user_id", acct.id).Bool("confirmed", acct.confirmed).Msg("account created")

	result := &identity.SignUpResult{UserID: acct.id}
	if !acct.confirmed {
		return result, nil
	}
	session, err := g.establish(ctx, acct.id)
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// SignOut always announces a cleared session, even when none was active
func (g *Gateway) SignOut(ctx context.Context) error {
	if err := g.tokens.Clear(ctx); err != nil {
		return identity.NewAuthError(identity.CodeUnavailable, "Unable to sign out", err)
	}
	g.events.Publish(identity.Event{Type: identity.EventCleared})
	return nil
}

// Confirm marks the account as confirmed, standing in for the emailed link
func (g *Gateway) Confirm(email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[normalizeEmail(email)]
	if !ok {
		return fmt.Errorf("[Confirm] no account for %q", email)
	}
	acct.confirmed = true
	return nil
}

// Metadata returns what was recorded for the account at sign-up
func (g *Gateway) Metadata(userID string) (identity.Metadata, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accountByID(userID)
	if !ok {
		return identity.Metadata{}, false
	}
	return acct.meta, true
}

func (g *Gateway) Close() {
	g.events.Close()
}

func (g *Gateway) establish(ctx context.Context, userID string) (*identity.Session, error) {
	session, err := g.issue(userID)
	if err != nil {
		return nil, identity.NewAuthError(identity.CodeUnknown, "Unable to create session", err)
	}
	if err := g.tokens.Save(ctx, session.Token); err != nil {
		return nil, identity.NewAuthError(identity.CodeUnavailable, "Unable to store session", err)
	}
	g.events.Publish(identity.Event{Type: identity.EventEstablished, Session: session})
	return session, nil
}

func (g *Gateway) issue(userID string) (*identity.Session, error) {
	now := g.now()
	expires := now.Add(g.sessionTTL)
	claims := jwtlib.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(expires),
		ID:        uuid.New().String(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &identity.Session{UserID: userID, Token: signed, ExpiresAt: expires.Truncate(time.Second)}, nil
}

func (g *Gateway) parse(token string) (*identity.Session, error) {
	var claims jwtlib.RegisteredClaims
	_, err := jwtlib.ParseWithClaims(token, &claims,
		func(*jwtlib.Token) (interface{}, error) { return g.secret, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(g.now),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &identity.Session{UserID: claims.Subject, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// accountByID must be called with mu held
func (g *Gateway) accountByID(id string) (*account, bool) {
	for _, acct := range g.accounts {
		if acct.id == id {
			return acct, true
		}
	}
	return nil, false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
