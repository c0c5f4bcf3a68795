package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionEnqueueDropsWhenFull(t *testing.T) {
	events := make(chan Event, 1)
	s := NewSession(SessionConfig{Name: "local", Broker: "tcp://127.0.0.1:1"}, events)

	s.enqueue(Connected{Source: "local"})
	s.enqueue(Connected{Source: "local"})

	require.Len(t, events, 1)
	assert.Equal(t, Connected{Source: "local"}, <-events)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSessionConnectGivesUp(t *testing.T) {
	s := NewSession(SessionConfig{Name: "local", Broker: "tcp://127.0.0.1:1", Retries: 1}, make(chan Event, 1))

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 attempts")
	assert.Equal(t, StateDisconnected, s.State())
}

func TestBridgeRunFailsWithoutLocalBroker(t *testing.T) {
	b := New(Config{
		Local: SessionConfig{Name: "local", Broker: "tcp://127.0.0.1:1", Retries: 1},
		API:   &APIConfig{BaseURL: "http://127.0.0.1:1"},
	})
	require.NotNil(t, b.API())

	err := b.Run(context.Background(), &fakeSubmitter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local broker")
}

func TestBridgeWithoutAPI(t *testing.T) {
	b := New(Config{Local: SessionConfig{Name: "local", Broker: "tcp://127.0.0.1:1"}})
	assert.Nil(t, b.API())
}
