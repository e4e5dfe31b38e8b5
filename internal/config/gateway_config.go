package config

import (
	"strconv"
	"time"
)

// Identity backends
const (
	IdentityMemory = "memory"
	IdentityKratos = "kratos"
	IdentityOIDC   = "oidc"
)

type GatewayConfig interface {
	GetIdentityBackend() string
	GetKratosURL() string
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetGatewayTimeout() time.Duration
	GetJWTSecret() string
	GetRequireConfirmation() bool
}

type Gateway struct {
	source
}

var _ GatewayConfig = Gateway{}

func (g Gateway) GetIdentityBackend() string {
	return g.get("IDENTITY_BACKEND", IdentityMemory)
}

func (g Gateway) GetKratosURL() string {
	return g.get("KRATOS_URL", "http://localhost:4433")
}

func (g Gateway) GetOIDCIssuer() string {
	return g.get("OIDC_ISSUER", "http://localhost:8080")
}

func (g Gateway) GetOIDCClientID() string {
	return g.get("OIDC_CLIENT_ID", "servicedesk-mobile")
}

func (g Gateway) GetOIDCClientSecret() string {
	return g.get("OIDC_CLIENT_SECRET", "")
}

func (g Gateway) GetGatewayTimeout() time.Duration {
	d, err := time.ParseDuration(g.get("GATEWAY_TIMEOUT", "10s"))
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetJWTSecret is the signing key for the in-memory gateway's session tokens.
// Empty means a random key per process.
func (g Gateway) GetJWTSecret() string {
	return g.get("JWT_SECRET", "")
}

func (g Gateway) GetRequireConfirmation() bool {
	b, err := strconv.ParseBool(g.get("REQUIRE_EMAIL_CONFIRMATION", "false"))
	return err == nil && b
}
