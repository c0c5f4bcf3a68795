package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldchain/coldchain-monitor/internal/database"
	"github.com/coldchain/coldchain-monitor/internal/domain"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	db, err := database.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return New(db)
}

func stores(t *testing.T) map[string]func(*testing.T) Store {
	t.Helper()
	return map[string]func(*testing.T) Store{
		"sqlite": newSQLite,
		"memory": func(*testing.T) Store { return NewMemory() },
	}
}

func seedSensor(t *testing.T, s Store, id int64, active bool) {
	t.Helper()
	require.NoError(t, s.CreateSensor(context.Background(), &domain.Sensor{
		ID: id, Name: "sensor", Location: "dock", MinTemp: 2, MaxTemp: 8, Active: active,
	}))
}

func TestSensors(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			seedSensor(t, s, 2, true)
			seedSensor(t, s, 1, false)

			got, err := s.GetSensor(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, 8.0, got.MaxTemp)
			assert.True(t, got.Active)

			_, err = s.GetSensor(ctx, 3)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.UpdateThresholds(ctx, 2, -5, 0))
			got, err = s.GetSensor(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, -5.0, got.MinTemp)
			assert.ErrorIs(t, s.UpdateThresholds(ctx, 9, 1, 2), ErrNotFound)

			list, err := s.ListSensors(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, int64(1), list[0].ID)
		})
	}
}

func TestReadingsAndAlertWindow(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			seedSensor(t, s, 1, true)
			seedSensor(t, s, 2, true)
			now := time.Now().UTC()

			insert := func(sensor int64, at time.Time, alerted bool) int64 {
				rd := &domain.Reading{SensorID: sensor, Temperature: 10, Humidity: 50, Timestamp: at}
				require.NoError(t, s.InsertReading(ctx, rd))
				require.NotZero(t, rd.ID)
				if alerted {
					require.NoError(t, s.SetReadingAlert(ctx, rd.ID, true))
				}
				return rd.ID
			}

			insert(1, now.Add(-30*time.Hour), true)
			insert(1, now.Add(-2*time.Hour), true)
			insert(1, now.Add(-1*time.Hour), false)
			last := insert(1, now, true)
			insert(2, now, true)

			n, err := s.CountAlertedSince(ctx, 1, now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, s.SetReadingAlert(ctx, last, false))
			n, err = s.CountAlertedSince(ctx, 1, now.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.ErrorIs(t, s.SetReadingAlert(ctx, 999, true), ErrNotFound)

			hist, err := s.ReadingsSince(ctx, 1, now.Add(-3*time.Hour))
			require.NoError(t, err)
			assert.Len(t, hist, 3)

			latest, err := s.LatestReadings(ctx)
			require.NoError(t, err)
			require.Len(t, latest, 2)
			assert.Equal(t, last, latest[0].ID)
		})
	}
}

func TestUsersAndIncidents(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			seedSensor(t, s, 1, true)

			u1, err := s.EnsureUser(ctx, domain.SystemUsername, "")
			require.NoError(t, err)
			u2, err := s.EnsureUser(ctx, domain.SystemUsername, "")
			require.NoError(t, err)
			assert.Equal(t, u1.ID, u2.ID)

			_, err = s.GetUser(ctx, 404)
			assert.ErrorIs(t, err, ErrNotFound)

			rd := &domain.Reading{SensorID: 1, Temperature: 20, Humidity: 40}
			require.NoError(t, s.InsertReading(ctx, rd))

			sensorID := int64(1)
			inc := &domain.Incident{Title: "hot", Status: domain.IncidentOpen, CreatedBy: u1.ID, ReadingID: &rd.ID, SensorID: &sensorID}
			require.NoError(t, s.CreateIncident(ctx, inc))
			require.NotZero(t, inc.ID)

			dup := &domain.Incident{Title: "hot again", Status: domain.IncidentOpen, CreatedBy: u1.ID, ReadingID: &rd.ID}
			assert.ErrorIs(t, s.CreateIncident(ctx, dup), ErrIncidentExists)

			closedAt := time.Now().UTC()
			inc.Status = domain.IncidentClosed
			inc.ClosedAt = &closedAt
			require.NoError(t, s.UpdateIncident(ctx, inc))

			got, err := s.GetIncident(ctx, inc.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.IncidentClosed, got.Status)
			require.NotNil(t, got.ClosedAt)
			assert.Equal(t, rd.ID, *got.ReadingID)

			openIncs, err := s.ListIncidents(ctx, domain.IncidentOpen)
			require.NoError(t, err)
			assert.Empty(t, openIncs)
			all, err := s.ListIncidents(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 1)

			_, err = s.GetIncident(ctx, 99)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestAuditEvents(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			id := func(v int64) *int64 { return &v }

			for i, kind := range []string{"reading_received", "alert_triggered", "reading_received", "incident_created"} {
				ev := &domain.AuditEvent{Actor: "system", Kind: kind, Action: kind, SensorID: id(int64(1 + i%2))}
				require.NoError(t, s.InsertAuditEvent(ctx, ev))
				assert.NotZero(t, ev.ID)
				assert.False(t, ev.Timestamp.IsZero())
			}

			all, err := s.ListAuditEvents(ctx, domain.AuditFilter{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			for i := 1; i < len(all); i++ {
				assert.Less(t, all[i-1].ID, all[i].ID)
			}

			kind, err := s.ListAuditEvents(ctx, domain.AuditFilter{Kind: "reading_received"})
			require.NoError(t, err)
			assert.Len(t, kind, 2)

			bySensor, err := s.ListAuditEvents(ctx, domain.AuditFilter{SensorID: 2})
			require.NoError(t, err)
			assert.Len(t, bySensor, 2)

			limited, err := s.ListAuditEvents(ctx, domain.AuditFilter{Limit: 1})
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, all[0].ID, limited[0].ID)

			future, err := s.ListAuditEvents(ctx, domain.AuditFilter{From: time.Now().Add(time.Hour)})
			require.NoError(t, err)
			assert.Empty(t, future)
		})
	}
}

func TestOpenMemory(t *testing.T) {
	s, closeFn, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	assert.NoError(t, closeFn())

	_, _, err = Open(context.Background(), "oracle", "")
	assert.Error(t, err)
}
