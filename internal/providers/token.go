package providers

import (
	"context"
	"sync"
	"time"
)

type tokenFetcher func(ctx context.Context) (token string, ttl time.Duration, err error)

// tokenSource caches a bearer token and refreshes it margin before expiry.
// The lock is held across a refresh so concurrent callers wait for a
// single token request instead of each issuing their own.
type tokenSource struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	fetch  tokenFetcher
	margin time.Duration
	now    func() time.Time
}

func newTokenSource(fetch tokenFetcher, margin time.Duration) *tokenSource {
	return &tokenSource{
		fetch:  fetch,
		margin: margin,
		now:    time.Now,
	}
}

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(s.margin).Before(s.expiresAt) {
		return s.token, nil
	}

	token, ttl, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiresAt = s.now().Add(ttl)
	return token, nil
}

// Invalidate forces the next Token call to fetch a fresh token.
func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}
