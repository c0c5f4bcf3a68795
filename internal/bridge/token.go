package bridge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoginTimeout bounds a shared login. The login is detached from the
// caller that started it so waiters are not failed by its cancellation.
const LoginTimeout = 15 * time.Second

// LoginFunc obtains a fresh bearer token.
type LoginFunc func(ctx context.Context) (string, error)

// TokenSource caches the cloud API token. Concurrent callers that find the
// same token stale share a single login.
type TokenSource struct {
	login LoginFunc
	group singleflight.Group

	mu    sync.RWMutex
	token string
}

func NewTokenSource(login LoginFunc) *TokenSource {
	return &TokenSource{login: login}
}

func (t *TokenSource) current() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Token returns the cached token, logging in if there is none yet.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if tok := t.current(); tok != "" {
		return tok, nil
	}
	return t.Refresh(ctx, "")
}

// Refresh replaces stale with a new token. If another caller already
// replaced it, the newer token is returned without logging in again.
func (t *TokenSource) Refresh(ctx context.Context, stale string) (string, error) {
	if tok := t.current(); tok != "" && tok != stale {
		return tok, nil
	}

	v, err, _ := t.group.Do("refresh", func() (any, error) {
		if tok := t.current(); tok != "" && tok != stale {
			return tok, nil
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoginTimeout)
		defer cancel()
		tok, err := t.login(lctx)
		if err != nil {
			return "", err
		}
		t.mu.Lock()
		t.token = tok
		t.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
