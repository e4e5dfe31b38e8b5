package config

import "time"

// Profile store backends
const (
	ProfileMemory   = "memory"
	ProfilePostgres = "postgres"
)

// Token store backends
const (
	TokenMemory = "memory"
	TokenSQLite = "sqlite"
	TokenRedis  = "redis"
)

type StoreConfig interface {
	GetProfileBackend() string
	GetDatabaseURL() string
	GetTokenStore() string
	GetTokenDBPath() string
	GetRedisAddr() string
	GetRedisKey() string
	GetRedisTokenTTL() time.Duration
}

type Stores struct {
	source
}

var _ StoreConfig = Stores{}

func (s Stores) GetProfileBackend() string {
	return s.get("PROFILE_BACKEND", ProfileMemory)
}

func (s Stores) GetDatabaseURL() string {
	return s.get("DATABASE_URL", "postgres://localhost:5432/servicedesk")
}

func (s Stores) GetTokenStore() string {
	return s.get("TOKEN_STORE", TokenMemory)
}

func (s Stores) GetTokenDBPath() string {
	return s.get("TOKEN_DB_PATH", "./data/session.db")
}

func (s Stores) GetRedisAddr() string {
	return s.get("REDIS_ADDR", "localhost:6379")
}

func (s Stores) GetRedisKey() string {
	return s.get("REDIS_TOKEN_KEY", "servicedesk:session_token")
}

// GetRedisTokenTTL bounds how long a stored session token survives; zero keeps it
// until sign-out.
func (s Stores) GetRedisTokenTTL() time.Duration {
	d, err := time.ParseDuration(s.get("REDIS_TOKEN_TTL", "0s"))
	if err != nil || d < 0 {
		return 0
	}
	return d
}
