package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

type published struct {
	topic   string
	payload string
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, string(payload)})
	return nil
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type scriptedStatus struct {
	mu    sync.Mutex
	steps []Status
	err   error
}

func (s *scriptedStatus) Status(context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Status{}, s.err
	}
	st := s.steps[0]
	if len(s.steps) > 1 {
		s.steps = s.steps[1:]
	}
	return st, nil
}

const cmdTopic = "devices/esp8266-001/cmd/led"

func TestPollerSkipsFirstObservation(t *testing.T) {
	fetch := &scriptedStatus{steps: []Status{
		{State: "ON", LastUpdated: "t1"},
		{State: "ON", LastUpdated: "t1"},
		{State: "OFF", LastUpdated: "t2"},
		{State: "OFF", LastUpdated: "t2"},
	}}
	pub := &fakePublisher{}
	p := NewPoller(fetch, pub, cmdTopic, time.Second)

	var flags []bool
	for i := 0; i < 4; i++ {
		ok, err := p.Poll(context.Background())
		require.NoError(t, err)
		flags = append(flags, ok)
	}

	assert.Equal(t, []bool{false, false, true, false}, flags)
	assert.Equal(t, []published{{cmdTopic, "OFF"}}, pub.sent())
}

func TestPollerRetriesFailedPublish(t *testing.T) {
	fetch := &scriptedStatus{steps: []Status{{State: "ON", LastUpdated: "t1"}, {State: "OFF", LastUpdated: "t2"}}}
	pub := &fakePublisher{err: errors.New("broker gone")}
	p := NewPoller(fetch, pub, cmdTopic, time.Second)

	_, err := p.Poll(context.Background())
	require.NoError(t, err)
	_, err = p.Poll(context.Background())
	require.Error(t, err)

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	ok, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPollerRunSurvivesErrors(t *testing.T) {
	fetch := &scriptedStatus{err: errors.New("timeout")}
	p := NewPoller(fetch, &fakePublisher{}, cmdTopic, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, p.Run(ctx))
}
