package fez

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Token is an authenticated API session.
type Token struct {
	BearerToken string
	SecretKey   string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be used at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.BearerToken != "" && now.Before(t.ExpiresAt)
}

// TokenProvider hands out a currently valid token.
type TokenProvider interface {
	Token(ctx context.Context) (*Token, error)
}

// Authenticator exchanges credentials for a new token.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Token, error)
}

// TokenSource caches one token for the whole process and refreshes it once
// it expires. Concurrent refreshes are coalesced into a single call.
type TokenSource struct {
	auth Authenticator
	now  func() time.Time

	mu    sync.RWMutex
	token *Token
	group singleflight.Group
}

// NewTokenSource creates a token source backed by auth.
func NewTokenSource(auth Authenticator) *TokenSource {
	return &TokenSource{auth: auth, now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (s *TokenSource) WithClock(now func() time.Time) *TokenSource {
	s.now = now
	return s
}

// Token returns the cached token or authenticates for a new one.
func (s *TokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.RLock()
	t := s.token
	s.mu.RUnlock()
	if t.Valid(s.now()) {
		return t, nil
	}

	v, err, _ := s.group.Do("token", func() (interface{}, error) {
		s.mu.RLock()
		cur := s.token
		s.mu.RUnlock()
		if cur.Valid(s.now()) {
			return cur, nil
		}

		fresh, err := s.auth.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.token = fresh
		s.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// Invalidate drops the cached token so the next call re-authenticates.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}

var _ TokenProvider = (*TokenSource)(nil)
