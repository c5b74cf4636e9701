package widget

import (
	"context"
	"errors"
	"sync"
)

// ErrNoToken is returned by a TokenStore that has never been written.
var ErrNoToken = errors.New("no auth token stored")

// TokenStore is the single-slot credential store the widget writes the
// session token to. Last write wins.
type TokenStore interface {
	SetAuthToken(ctx context.Context, token string) error
	AuthToken(ctx context.Context) (string, error)
}

// MemoryTokenStore keeps the token for the lifetime of the process.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) SetAuthToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) AuthToken(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}
