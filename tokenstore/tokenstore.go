package tokenstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNoToken is returned by Load when nothing has been saved
var ErrNoToken = errors.New("no session token stored")

// Store persists the single session token of this client between runs
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Memory keeps the token for the life of the process
type Memory struct {
	mu    sync.RWMutex
	token string
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *Memory) Save(_ context.Context, token string) error {
	if token == "" {
		return errors.New("token is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Clear is a no-op when nothing is stored
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
