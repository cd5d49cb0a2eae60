// Package client provides helpers for API consumers of the auth service.
package client

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TokenPair is the client-side view of an issued access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RefreshFunc exchanges a refresh token for a new pair, typically by calling
// POST /auth/refresh.
type RefreshFunc func(ctx context.Context, refreshToken string) (*TokenPair, error)

// Refresher deduplicates concurrent refreshes. When several goroutines hit an
// expired access token at once, only one exchange runs; the rest share its
// result. Without this, the losers of the race would present an already
// rotated refresh token.
type Refresher struct {
	mu      sync.RWMutex
	current *TokenPair

	group   singleflight.Group
	refresh RefreshFunc
}

func NewRefresher(initial *TokenPair, refresh RefreshFunc) *Refresher {
	return &Refresher{
		current: initial,
		refresh: refresh,
	}
}

// Current returns the most recently issued pair, which may be stale.
func (r *Refresher) Current() *TokenPair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// AccessToken returns the current access token, or "" when no pair is held.
func (r *Refresher) AccessToken() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return ""
	}
	return r.current.AccessToken
}

// Refresh rotates the held pair. Concurrent callers coalesce into a single
// exchange and all receive the same new pair or the same error.
func (r *Refresher) Refresh(ctx context.Context) (*TokenPair, error) {
	v, err, _ := r.group.Do("refresh", func() (any, error) {
		r.mu.RLock()
		current := r.current
		r.mu.RUnlock()

		if current == nil {
			return nil, ErrNoTokens
		}

		pair, err := r.refresh(ctx, current.RefreshToken)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.current = pair
		r.mu.Unlock()

		return pair, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*TokenPair), nil
}

// Set replaces the held pair, e.g. after a fresh login.
func (r *Refresher) Set(pair *TokenPair) {
	r.mu.Lock()
	r.current = pair
	r.mu.Unlock()
}
