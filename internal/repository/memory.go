package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coldchain/coldchain-monitor/internal/domain"
)

// Memory is a Store kept entirely in process memory. It backs
// DB_DRIVER=memory for local runs and the package tests of its callers.
type Memory struct {
	mu        sync.RWMutex
	sensors   map[int64]domain.Sensor
	readings  []domain.Reading
	users     []domain.User
	incidents []domain.Incident
	audit     []domain.AuditEvent
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		sensors: make(map[int64]domain.Sensor),
		now:     time.Now,
	}
}

// SetClock replaces the clock used for server-assigned timestamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) CreateSensor(_ context.Context, s *domain.Sensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sensors[s.ID]; ok {
		return fmt.Errorf("sensor %d already exists", s.ID)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	m.sensors[s.ID] = *s
	return nil
}

func (m *Memory) GetSensor(_ context.Context, id int64) (*domain.Sensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sensors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) ListSensors(_ context.Context) ([]domain.Sensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Sensor, 0, len(m.sensors))
	for _, s := range m.sensors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateThresholds(_ context.Context, id int64, minTemp, maxTemp float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sensors[id]
	if !ok {
		return ErrNotFound
	}
	s.MinTemp, s.MaxTemp = minTemp, maxTemp
	m.sensors[id] = s
	return nil
}

func (m *Memory) InsertReading(_ context.Context, rd *domain.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rd.Timestamp.IsZero() {
		rd.Timestamp = m.now().UTC()
	}
	rd.ID = int64(len(m.readings) + 1)
	m.readings = append(m.readings, *rd)
	return nil
}

func (m *Memory) SetReadingAlert(_ context.Context, id int64, triggered bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || id > int64(len(m.readings)) {
		return ErrNotFound
	}
	m.readings[id-1].AlertTriggered = triggered
	return nil
}

func (m *Memory) CountAlertedSince(_ context.Context, sensorID int64, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rd := range m.readings {
		if rd.SensorID == sensorID && rd.AlertTriggered && !rd.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) LatestReadings(_ context.Context) ([]domain.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := make(map[int64]domain.Reading)
	for _, rd := range m.readings {
		s, ok := m.sensors[rd.SensorID]
		if !ok || !s.Active {
			continue
		}
		cur, seen := latest[rd.SensorID]
		if !seen || !rd.Timestamp.Before(cur.Timestamp) {
			latest[rd.SensorID] = rd
		}
	}
	out := make([]domain.Reading, 0, len(latest))
	for _, rd := range latest {
		out = append(out, rd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func (m *Memory) ReadingsSince(_ context.Context, sensorID int64, since time.Time) ([]domain.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Reading
	for _, rd := range m.readings {
		if rd.SensorID == sensorID && !rd.Timestamp.Before(since) {
			out = append(out, rd)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Readings returns a copy of every stored reading in insertion order.
func (m *Memory) Readings() []domain.Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Reading(nil), m.readings...)
}

func (m *Memory) EnsureUser(_ context.Context, username, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	u := domain.User{ID: int64(len(m.users) + 1), Username: username, Email: email}
	m.users = append(m.users, u)
	return &u, nil
}

func (m *Memory) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 1 || id > int64(len(m.users)) {
		return nil, ErrNotFound
	}
	u := m.users[id-1]
	return &u, nil
}

func (m *Memory) CreateIncident(_ context.Context, inc *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc.ReadingID != nil {
		for _, existing := range m.incidents {
			if existing.ReadingID != nil && *existing.ReadingID == *inc.ReadingID {
				return ErrIncidentExists
			}
		}
	}
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = m.now().UTC()
	}
	inc.ID = int64(len(m.incidents) + 1)
	m.incidents = append(m.incidents, *inc)
	return nil
}

func (m *Memory) GetIncident(_ context.Context, id int64) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id < 1 || id > int64(len(m.incidents)) {
		return nil, ErrNotFound
	}
	inc := m.incidents[id-1]
	return &inc, nil
}

func (m *Memory) UpdateIncident(_ context.Context, inc *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc.ID < 1 || inc.ID > int64(len(m.incidents)) {
		return ErrNotFound
	}
	cur := &m.incidents[inc.ID-1]
	cur.Status = inc.Status
	cur.AssignedTo = inc.AssignedTo
	cur.ClosedAt = inc.ClosedAt
	return nil
}

func (m *Memory) ListIncidents(_ context.Context, status domain.IncidentStatus) ([]domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Incident
	for i := len(m.incidents) - 1; i >= 0; i-- {
		if status == "" || m.incidents[i].Status == status {
			out = append(out, m.incidents[i])
		}
	}
	return out, nil
}

func (m *Memory) InsertAuditEvent(_ context.Context, ev *domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Timestamp = m.now().UTC()
	ev.ID = int64(len(m.audit) + 1)
	m.audit = append(m.audit, *ev)
	return nil
}

func (m *Memory) ListAuditEvents(_ context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.AuditEvent
	for _, ev := range m.audit {
		if matchAudit(ev, f) {
			out = append(out, ev)
		}
	}
	// Stable sort keeps insertion order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchAudit(ev domain.AuditEvent, f domain.AuditFilter) bool {
	switch {
	case !f.From.IsZero() && ev.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && ev.Timestamp.After(f.To):
		return false
	case f.Kind != "" && ev.Kind != f.Kind:
		return false
	case f.SensorID != 0 && !eq(ev.SensorID, f.SensorID):
		return false
	case f.ReadingID != 0 && !eq(ev.ReadingID, f.ReadingID):
		return false
	case f.IncidentID != 0 && !eq(ev.IncidentID, f.IncidentID):
		return false
	}
	return true
}

func eq(p *int64, v int64) bool { return p != nil && *p == v }

var _ Store = (*Memory)(nil)
var _ Store = (*Repos)(nil)
