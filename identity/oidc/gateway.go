package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/tokenstore"
)

var _ identity.Gateway = (*Gateway)(nil)

// Gateway signs in against an OpenID Connect provider with the resource owner
// password grant. The user id is the verified ID token subject.
type Gateway struct {
	provider     *gooidc.Provider
	oauth2Config *oauth2.Config
	verifier     *gooidc.IDTokenVerifier
	httpClient   *http.Client
	tokens       tokenstore.Store
	events       *identity.Broadcaster
	logger       zerolog.Logger
}

type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

type Option func(*Gateway)

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithTokenStore(store tokenstore.Store) Option {
	return func(g *Gateway) {
		g.tokens = store
	}
}

// storedToken is what gets persisted between runs
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Subject      string    `json:"sub"`
}

func (s storedToken) oauth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// New discovers the provider configuration from the issuer
func New(ctx context.Context, cfg Config, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokenstore.NewMemory(),
		events:     identity.NewBroadcaster(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "oidc_gateway").Logger()

	provider, err := gooidc.NewProvider(g.clientContext(ctx), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	g.provider = provider
	g.oauth2Config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{gooidc.ScopeOpenID, "profile", "email", gooidc.ScopeOfflineAccess},
	}
	g.verifier = provider.Verifier(&gooidc.Config{
		ClientID: cfg.ClientID,
	})
	g.logger.Info().Str("issuer", cfg.Issuer).Msg("OIDC provider discovered")
	return g, nil
}

func (g *Gateway) clientContext(ctx context.Context) context.Context {
	return gooidc.ClientContext(ctx, g.httpClient)
}

func (g *Gateway) OnSessionChange() (<-chan identity.Event, func()) {
	return g.events.Subscribe()
}

// GetCurrentSession restores the persisted token, refreshing it when expired.
// A refresh the provider rejects ends the session.
func (g *Gateway) GetCurrentSession(ctx context.Context) (*identity.Session, error) {
	stored, err := g.load(ctx)
	if err != nil || stored == nil {
		return nil, err
	}

	tok := stored.oauth2Token()
	if tok.Valid() {
		return &identity.Session{UserID: stored.Subject, Token: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
	}
	if tok.RefreshToken == "" {
		g.clearToken(ctx)
		return nil, nil
	}

	refreshed, err := g.oauth2Config.TokenSource(g.clientContext(ctx), tok).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			g.logger.Info().Str("error_code", retrieveErr.ErrorCode).Msg("refresh rejected, dropping session")
			g.clearToken(ctx)
			return nil, nil
		}
		return nil, identity.NewAuthError(identity.CodeUnavailable, "Unable to reach the identity service", err)
	}

	subject := stored.Subject
	if rawIDToken, ok := refreshed.Extra("id_token").(string); ok && rawIDToken != "" {
		if subject, err = g.verify(ctx, rawIDToken); err != nil {
			g.clearToken(ctx)
			return nil, nil
		}
	}
	session, err := g.persist(ctx, refreshed, subject)
	if err != nil {
		return nil, err
	}
	g.logger.Debug().Str("user_id", subject).Msg("session refreshed")
	return session, nil
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	tok, err := g.oauth2Config.PasswordCredentialsToken(g.clientContext(ctx), email, password)
	if err != nil {
		return nil, transformTokenError(err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, identity.NewAuthError(identity.CodeUnknown, "No ID token in response", nil)
	}
	subject, err := g.verify(ctx, rawIDToken)
	if err != nil {
		return nil, identity.NewAuthError(identity.CodeUnknown, "ID token verification failed", err)
	}

	session, err := g.persist(ctx, tok, subject)
	if err != nil {
		return nil, err
	}
	g.events.Publish(identity.Event{Type: identity.EventEstablished, Session: session})
	return session, nil
}

// SignUp is not part of the password grant; accounts are provisioned at the provider
func (g *Gateway) SignUp(context.Context, string, string, identity.Metadata) (*identity.SignUpResult, error) {
	return nil, identity.NewAuthError(identity.CodeSignUpUnsupported,
		"Sign up is not available, ask an administrator for an account", nil)
}

func (g *Gateway) SignOut(ctx context.Context) error {
	if err := g.tokens.Clear(ctx); err != nil {
		return identity.NewAuthError(identity.CodeUnavailable, "Unable to sign out", err)
	}
	g.events.Publish(identity.Event{Type: identity.EventCleared})
	return nil
}

func (g *Gateway) Close() {
	g.events.Close()
}

func (g *Gateway) verify(ctx context.Context, rawIDToken string) (string, error) {
	idToken, err := g.verifier.Verify(g.clientContext(ctx), rawIDToken)
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to extract claims: %w", err)
	}
	if claims.Sub == "" {
		return "", errors.New("ID token has no subject")
	}
	return claims.Sub, nil
}

func (g *Gateway) load(ctx context.Context) (*storedToken, error) {
	raw, err := g.tokens.Load(ctx)
	if errors.Is(err, tokenstore.ErrNoToken) {
		return nil, nil
	}
	if err != nil {
		return nil, identity.NewAuthError(identity.CodeUnavailable, "Unable to read session", err)
	}
	var stored storedToken
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.Subject == "" {
		g.logger.Debug().Err(err).Msg("discarding unreadable stored token")
		g.clearToken(ctx)
		return nil, nil
	}
	return &stored, nil
}

func (g *Gateway) persist(ctx context.Context, tok *oauth2.Token, subject string) (*identity.Session, error) {
	raw, err := json.Marshal(storedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
		Subject:      subject,
	})
	if err != nil {
		return nil, identity.NewAuthError(identity.CodeUnknown, "Unable to store session", err)
	}
	if err := g.tokens.Save(ctx, string(raw)); err != nil {
		return nil, identity.NewAuthError(identity.CodeUnavailable, "Unable to store session", err)
	}
	return &identity.Session{UserID: subject, Token: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}

func (g *Gateway) clearToken(ctx context.Context) {
	if err := g.tokens.Clear(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("failed to clear stored session")
	}
}

func transformTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return identity.NewAuthError(identity.CodeUnavailable, "Unable to reach the identity service", err)
	}
	switch retrieveErr.ErrorCode {
	case "invalid_grant":
		return identity.NewAuthError(identity.CodeInvalidCredentials, "Invalid login credentials", err)
	case "":
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return identity.NewAuthError(identity.CodeUnavailable, "Identity service error", err)
		}
	}
	if retrieveErr.ErrorDescription != "" {
		return identity.NewAuthError(identity.CodeUnknown, retrieveErr.ErrorDescription, err)
	}
	return identity.NewAuthError(identity.CodeUnknown, "Sign in failed", err)
}
