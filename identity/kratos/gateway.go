package kratos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	kratosclient "github.com/ory/kratos-client-go"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/tokenstore"
)

var _ identity.Gateway = (*Gateway)(nil)

// Gateway talks to the Ory Kratos public API using native (API client) flows.
// The session token Kratos hands back is kept in a token store.
type Gateway struct {
	api    *kratosclient.APIClient
	tokens tokenstore.Store
	events *identity.Broadcaster
	logger zerolog.Logger
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

// New builds a gateway for the Kratos public API at publicURL. Every request is
// bounded by timeout.
func New(publicURL string, timeout time.Duration, opts ...Option) (*Gateway, error) {
	if !isValidURL(publicURL) {
		return nil, fmt.Errorf("invalid Kratos public URL: %s", publicURL)
	}

	configuration := kratosclient.NewConfiguration()
	configuration.Servers = []kratosclient.ServerConfiguration{
		{
			URL: publicURL,
		},
	}
	configuration.HTTPClient = &http.Client{
		Timeout: timeout,
	}
	if configuration.DefaultHeader == nil {
		configuration.DefaultHeader = make(map[string]string)
	}
	configuration.DefaultHeader["Accept"] = "application/json"

	g := &Gateway{
		api:    kratosclient.NewAPIClient(configuration),
		tokens: tokenstore.NewMemory(),
		events: identity.NewBroadcaster(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With().Str("component", "kratos_gateway").Logger()
	g.logger.Info().Str("public_url", publicURL).Msg("Kratos client initialized")
	return g, nil
}

func (g *Gateway) OnSessionChange() (<-chan identity.Event, func()) {
	return g.events.Subscribe()
}

func (g *Gateway) GetCurrentSession(ctx context.Context) (*identity.Session, error) {
	token, err := g.tokens.Load(ctx)
	if errors.Is(err, tokenstore.ErrNoToken) {
		return nil, nil
	}
	if err != nil {
		return nil, identity.NewAuthError(identity.CodeUnavailable, "Unable to read session", err)
	}

	resp, httpResp, err := g.api.FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	if err != nil {
		if status := getHTTPStatus(httpResp); status == http.StatusUnauthorized || status == http.StatusForbidden {
			g.logger.Debug().Int("http_status", status).Msg("stored session rejected")
			g.clearToken(ctx)
			return nil, nil
		}
		g.logger.Error().Err(err).Int("http_status", getHTTPStatus(httpResp)).Msg("kratos get session failed")
		return nil, transformKratosError(err, httpResp, "get_session")
	}

	session := toSession(resp, token)
	if session == nil {
		g.clearToken(ctx)
		return nil, nil
	}
	return session, nil
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	flow, httpResp, err := g.api.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if err != nil {
		g.logger.Error().Err(err).Int("http_status", getHTTPStatus(httpResp)).Msg("kratos login flow creation failed")
		return nil, transformKratosError(err, httpResp, "login_flow_create")
	}

	passwordMethod := kratosclient.UpdateLoginFlowWithPasswordMethod{
		Identifier: email,
		Password:   password,
		Method:     "password",
	}
	resp, httpResp, err := g.api.FrontendAPI.
		UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(kratosclient.UpdateLoginFlowWithPasswordMethodAsUpdateLoginFlowBody(&passwordMethod)).
		Execute()
	if err != nil {
		g.logger.Info().Str("flow_id", flow.Id).Int("http_status", getHTTPStatus(httpResp)).Msg("kratos login rejected")
		return nil, transformKratosError(err, httpResp, "login_flow_submit")
	}
	token := resp.GetSessionToken()
	if token == "" {
		return nil, identity.NewAuthError(identity.CodeUnknown, "Identity provider returned no session token", nil)
	}

	session := toSession(&resp.Session, token)
	if session == nil {
		return nil, identity.NewAuthError(identity.CodeUnknown, "Identity provider returned an inactive session", nil)
	}
	if err := g.establish(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (g *Gateway) SignUp(ctx context.Context, email, password string, meta identity.Metadata) (*identity.SignUpResult, error) {
	flow, httpResp, err := g.api.FrontendAPI.CreateNativeRegistrationFlow(ctx).Execute()
	if err != nil {
		g.logger.Error().Err(err).Int("http_status", getHTTPStatus(httpResp)).Msg("kratos registration flow creation failed")
		return nil, transformKratosError(err, httpResp, "registration_flow_create")
	}

	passwordMethod := kratosclient.UpdateRegistrationFlowWithPasswordMethod{
		Traits: map[string]interface{}{
			"email": email,
			"name":  meta.Name,
			"role":  meta.Role,
		},
		Password: password,
		Method:   "password",
	}
	resp, httpResp, err := g.api.FrontendAPI.
		UpdateRegistrationFlow(ctx).
		Flow(flow.Id).
		UpdateRegistrationFlowBody(kratosclient.UpdateRegistrationFlowWithPasswordMethodAsUpdateRegistrationFlowBody(&passwordMethod)).
		Execute()
	if err != nil {
		g.logger.Info().Str("flow_id", flow.Id).Int("http_status", getHTTPStatus(httpResp)).Msg("kratos registration rejected")
		return nil, transformKratosError(err, httpResp, "registration_flow_submit")
	}

	result := &identity.SignUpResult{UserID: resp.Identity.Id}
	// Kratos omits the session when the identity must verify its address first
	token := resp.GetSessionToken()
	if resp.Session == nil || token == "" {
		g.logger.Info().Str("identity_id", result.UserID).Msg("registration needs verification")
		return result, nil
	}

	session := toSession(resp.Session, token)
	if session == nil {
		return result, nil
	}
	if err := g.establish(ctx, session); err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// SignOut revokes the stored session token. Revocation failures are logged; the
// local token is dropped and a cleared event is announced either way.
func (g *Gateway) SignOut(ctx context.Context) error {
	token, err := g.tokens.Load(ctx)
	switch {
	case err == nil:
		httpResp, err := g.api.FrontendAPI.
			PerformNativeLogout(ctx).
			PerformNativeLogoutBody(kratosclient.PerformNativeLogoutBody{SessionToken: token}).
			Execute()
		if err != nil {
			g.logger.Warn().Err(err).Int("http_status", getHTTPStatus(httpResp)).Msg("kratos logout failed")
		}
	case !errors.Is(err, tokenstore.ErrNoToken):
		g.logger.Warn().Err(err).Msg("failed to read stored session")
	}

	if err := g.tokens.Clear(ctx); err != nil {
		return identity.NewAuthError(identity.CodeUnavailable, "Unable to sign out", err)
	}
	g.events.Publish(identity.Event{Type: identity.EventCleared})
	return nil
}

func (g *Gateway) Close() {
	g.events.Close()
}

func (g *Gateway) establish(ctx context.Context, session *identity.Session) error {
	if err := g.tokens.Save(ctx, session.Token); err != nil {
		return identity.NewAuthError(identity.CodeUnavailable, "Unable to store session", err)
	}
	g.events.Publish(identity.Event{Type: identity.EventEstablished, Session: session})
	return nil
}

func (g *Gateway) clearToken(ctx context.Context) {
	if err := g.tokens.Clear(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("failed to clear stored session")
	}
}

// toSession returns nil for inactive sessions or sessions without an identity
func toSession(s *kratosclient.Session, token string) *identity.Session {
	if s == nil || (s.Active != nil && !*s.Active) || s.Identity == nil {
		return nil
	}
	return &identity.Session{UserID: s.Identity.Id, Token: token, ExpiresAt: s.GetExpiresAt()}
}

func getHTTPStatus(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func isValidURL(urlStr string) bool {
	if urlStr == "" {
		return false
	}
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	return parsedURL.Scheme != "" && parsedURL.Host != ""
}
