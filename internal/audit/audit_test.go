package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldchain/coldchain-monitor/internal/domain"
	"github.com/coldchain/coldchain-monitor/internal/repository"
)

type failingStore struct{}

func (failingStore) InsertAuditEvent(context.Context, *domain.AuditEvent) error {
	return errors.New("disk full")
}

func (failingStore) ListAuditEvents(context.Context, domain.AuditFilter) ([]domain.AuditEvent, error) {
	return nil, nil
}

func TestRecordDefaultsActor(t *testing.T) {
	rec := New(repository.NewMemory())

	ev, err := rec.Record(context.Background(), domain.AuditEvent{Kind: KindAlertTriggered, Action: "alert", SensorID: ID(3)})
	require.NoError(t, err)
	assert.Equal(t, ActorSystem, ev.Actor)
	assert.NotZero(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())

	ev, err = rec.Record(context.Background(), domain.AuditEvent{Actor: "alice", Kind: KindIncidentClosed, Action: "closed"})
	require.NoError(t, err)
	assert.Equal(t, "alice", ev.Actor)
}

func TestQueryPreservesOrder(t *testing.T) {
	rec := New(repository.NewMemory())
	for _, k := range []string{KindReadingReceived, KindAlertTriggered, KindIncidentCreated} {
		_, err := rec.Record(context.Background(), domain.AuditEvent{Kind: k, Action: k, SensorID: ID(1)})
		require.NoError(t, err)
	}

	evs, err := rec.Query(context.Background(), domain.AuditFilter{SensorID: 1})
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, KindReadingReceived, evs[0].Kind)
	assert.Equal(t, KindIncidentCreated, evs[2].Kind)
}

func TestRecordWrapsStoreError(t *testing.T) {
	_, err := New(failingStore{}).Record(context.Background(), domain.AuditEvent{Kind: KindUnknownSensor, Action: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record audit event")
}
