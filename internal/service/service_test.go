package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/coldchain/coldchain-monitor/internal/alerting"
	"github.com/coldchain/coldchain-monitor/internal/audit"
	"github.com/coldchain/coldchain-monitor/internal/config"
	"github.com/coldchain/coldchain-monitor/internal/domain"
	"github.com/coldchain/coldchain-monitor/internal/escalation"
	"github.com/coldchain/coldchain-monitor/internal/notify"
	"github.com/coldchain/coldchain-monitor/internal/repository"
)

func newTestServices(t *testing.T, ch notify.Channel) (*Services, *repository.Memory) {
	t.Helper()
	store := repository.NewMemory()

	policy, err := escalation.New([]escalation.Tier{
		{Level: 1, MinCount: 1, Routes: []escalation.Route{{Channel: "webhook"}}},
	})
	require.NoError(t, err)

	engine := alerting.NewEngine(store, audit.New(store), policy, notify.NewRegistry(ch), alerting.WithTimeout(time.Second))
	svc := New(store, engine)

	ctx := context.Background()
	require.NoError(t, svc.Sensors.Create(ctx, &domain.Sensor{ID: 1, Name: "Freezer A", Location: "Dock 2", MinTemp: 18, MaxTemp: 28, Active: true}, "admin"))
	require.NoError(t, svc.Sensors.Create(ctx, &domain.Sensor{ID: 2, Name: "Retired", MinTemp: 0, MaxTemp: 5}, "admin"))
	return svc, store
}

func webhookMock(t *testing.T) *notify.MockChannel {
	ctrl := gomock.NewController(t)
	ch := notify.NewMockChannel(ctrl)
	ch.EXPECT().Name().Return("webhook").AnyTimes()
	return ch
}

func eventsOfKind(t *testing.T, store *repository.Memory, kind string) []domain.AuditEvent {
	t.Helper()
	evs, err := store.ListAuditEvents(context.Background(), domain.AuditFilter{Kind: kind})
	require.NoError(t, err)
	return evs
}

func TestSubmitReadingUnknownSensor(t *testing.T) {
	svc, store := newTestServices(t, webhookMock(t))

	_, err := svc.Readings.SubmitReading(context.Background(), 99, 20, 40)
	require.ErrorIs(t, err, ErrSensorUnknown)

	assert.Empty(t, store.Readings())
	evs := eventsOfKind(t, store, audit.KindUnknownSensor)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(99), *evs[0].SensorID)
}

func TestSubmitReadingInactiveSensor(t *testing.T) {
	svc, store := newTestServices(t, webhookMock(t))

	_, err := svc.Readings.SubmitReading(context.Background(), 2, 3, 40)
	require.ErrorIs(t, err, ErrSensorInactive)
	assert.Empty(t, store.Readings())
	assert.Len(t, eventsOfKind(t, store, audit.KindInactiveSensor), 1)
}

func TestSubmitReadingRejectsNaN(t *testing.T) {
	svc, _ := newTestServices(t, webhookMock(t))
	_, err := svc.Readings.SubmitReading(context.Background(), 1, math.NaN(), 40)
	assert.ErrorIs(t, err, ErrInvalidReading)
}

func TestSubmitReadingInRange(t *testing.T) {
	svc, store := newTestServices(t, webhookMock(t))

	id, err := svc.Readings.SubmitReading(context.Background(), 1, 22.5, 41)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	rds := store.Readings()
	require.Len(t, rds, 1)
	assert.False(t, rds[0].AlertTriggered)
	assert.Equal(t, time.UTC, rds[0].Timestamp.Location())

	evs := eventsOfKind(t, store, audit.KindReadingReceived)
	require.Len(t, evs, 1)
	assert.Equal(t, id, *evs[0].ReadingID)

	incs, err := svc.Incidents.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, incs)
}

func TestSubmitReadingOutOfRange(t *testing.T) {
	ch := webhookMock(t)
	ch.EXPECT().Send(gomock.Any(), gomock.Any()).Return(notify.Outcome{Channel: "webhook"})
	svc, store := newTestServices(t, ch)

	id, err := svc.Readings.SubmitReading(context.Background(), 1, 99, 10)
	require.NoError(t, err)

	assert.True(t, store.Readings()[0].AlertTriggered)
	incs, err := svc.Incidents.List(context.Background(), domain.IncidentOpen)
	require.NoError(t, err)
	require.Len(t, incs, 1)
	assert.Equal(t, id, *incs[0].ReadingID)
	assert.Len(t, eventsOfKind(t, store, audit.KindNotificationSent), 1)
}

func TestUpdateThresholds(t *testing.T) {
	svc, store := newTestServices(t, webhookMock(t))
	ctx := context.Background()

	_, err := svc.Sensors.UpdateThresholds(ctx, 1, 30, 30, "alice")
	assert.ErrorIs(t, err, ErrInvalidThresholds)

	_, err = svc.Sensors.UpdateThresholds(ctx, 42, 1, 2, "alice")
	assert.ErrorIs(t, err, ErrSensorUnknown)

	s, err := svc.Sensors.UpdateThresholds(ctx, 1, 2, 8, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.MinTemp)
	assert.Equal(t, 8.0, s.MaxTemp)

	evs := eventsOfKind(t, store, audit.KindThresholdsUpdated)
	require.Len(t, evs, 1)
	assert.Equal(t, "alice", evs[0].Actor)
}

func TestCreateSensorValidation(t *testing.T) {
	svc, _ := newTestServices(t, webhookMock(t))
	ctx := context.Background()

	assert.ErrorIs(t, svc.Sensors.Create(ctx, &domain.Sensor{ID: 5, Name: "x", MinTemp: 5, MaxTemp: 1}, "admin"), ErrInvalidThresholds)
	assert.ErrorIs(t, svc.Sensors.Create(ctx, &domain.Sensor{ID: 0, Name: "x", MinTemp: 1, MaxTemp: 5}, "admin"), ErrInvalidSensor)

	list, err := svc.Sensors.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestIncidentLifecycle(t *testing.T) {
	ch := webhookMock(t)
	ch.EXPECT().Send(gomock.Any(), gomock.Any()).Return(notify.Outcome{Channel: "webhook"})
	svc, store := newTestServices(t, ch)
	ctx := context.Background()

	_, err := svc.Readings.SubmitReading(ctx, 1, 40, 20)
	require.NoError(t, err)
	incs, err := svc.Incidents.List(ctx, domain.IncidentOpen)
	require.NoError(t, err)
	require.Len(t, incs, 1)
	id := incs[0].ID

	_, err = svc.Incidents.Assign(ctx, id, 404, "lead")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	bob, err := svc.Incidents.EnsureUser(ctx, "bob", "bob@cold.local")
	require.NoError(t, err)

	inc, err := svc.Incidents.Assign(ctx, id, bob.ID, "lead")
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentAssigned, inc.Status)
	assert.Equal(t, bob.ID, *inc.AssignedTo)

	inc, err = svc.Incidents.Close(ctx, id, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentClosed, inc.Status)
	require.NotNil(t, inc.ClosedAt)

	_, err = svc.Incidents.Close(ctx, id, "bob")
	assert.ErrorIs(t, err, ErrIncidentClosed)
	_, err = svc.Incidents.Assign(ctx, id, bob.ID, "lead")
	assert.ErrorIs(t, err, ErrIncidentClosed)

	assigned := eventsOfKind(t, store, audit.KindIncidentAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, "lead", assigned[0].Actor)
	closed := eventsOfKind(t, store, audit.KindIncidentClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, "bob", closed[0].Actor)
}

func TestHistory(t *testing.T) {
	svc, _ := newTestServices(t, webhookMock(t))
	ctx := context.Background()

	_, err := svc.Readings.SubmitReading(ctx, 1, 20, 40)
	require.NoError(t, err)

	rds, err := svc.Readings.History(ctx, 1, 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, rds, 1)

	_, err = svc.Readings.History(ctx, 77, time.Hour)
	assert.ErrorIs(t, err, ErrSensorUnknown)

	latest, err := svc.Readings.Latest(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestBuildFromDefaults(t *testing.T) {
	require.NoError(t, config.Load())

	svc, err := Build(context.Background(), repository.NewMemory())
	require.NoError(t, err)
	assert.NotNil(t, svc.Engine)
	assert.NotNil(t, svc.Readings)
}

func TestChannelsRegistersEveryTransport(t *testing.T) {
	require.NoError(t, config.Load())
	reg := Channels(context.Background())
	assert.Equal(t, []string{"email", "pagerduty", "sns", "telegram", "voice", "webhook"}, reg.Names())
}
