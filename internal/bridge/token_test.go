package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLogin(calls *atomic.Int32) LoginFunc {
	return func(context.Context) (string, error) {
		n := calls.Add(1)
		return fmt.Sprintf("tok-%d", n), nil
	}
}

func TestTokenCachesFirstLogin(t *testing.T) {
	var calls atomic.Int32
	ts := NewTokenSource(countingLogin(&calls))

	for i := 0; i < 3; i++ {
		tok, err := ts.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestConcurrentRefreshLogsInOnce(t *testing.T) {
	var calls atomic.Int32
	ts := NewTokenSource(countingLogin(&calls))

	stale, err := ts.Token(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Refresh(context.Background(), stale)
			assert.NoError(t, err)
			results[i] = tok
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
	for _, tok := range results {
		assert.Equal(t, "tok-2", tok)
	}
}

func TestRefreshLoginError(t *testing.T) {
	ts := NewTokenSource(func(context.Context) (string, error) { return "", errors.New("bad credentials") })
	_, err := ts.Token(context.Background())
	assert.EqualError(t, err, "bad credentials")
}

func TestSharedLoginSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	ts := NewTokenSource(func(ctx context.Context) (string, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "tok-1", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := ts.Token(ctx)
		first <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		tok, err := ts.Token(context.Background())
		assert.NoError(t, err)
		second <- tok
	}()

	cancel()
	close(release)

	select {
	case tok := <-second:
		assert.Equal(t, "tok-1", tok)
	case <-time.After(time.Second):
		t.Fatal("waiting caller did not get a token")
	}
	select {
	case err := <-first:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first caller did not return")
	}
}
