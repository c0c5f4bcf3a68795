package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coldchain/coldchain-monitor/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrIncidentExists = errors.New("incident already exists for reading")
)

// Store is the persistence surface used by the alerting core.
// Repos (sqlx) and Memory both implement it.
type Store interface {
	CreateSensor(ctx context.Context, s *domain.Sensor) error
	GetSensor(ctx context.Context, id int64) (*domain.Sensor, error)
	ListSensors(ctx context.Context) ([]domain.Sensor, error)
	UpdateThresholds(ctx context.Context, id int64, minTemp, maxTemp float64) error

	InsertReading(ctx context.Context, rd *domain.Reading) error
	SetReadingAlert(ctx context.Context, id int64, triggered bool) error
	CountAlertedSince(ctx context.Context, sensorID int64, since time.Time) (int, error)
	LatestReadings(ctx context.Context) ([]domain.Reading, error)
	ReadingsSince(ctx context.Context, sensorID int64, since time.Time) ([]domain.Reading, error)

	EnsureUser(ctx context.Context, username, email string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)

	CreateIncident(ctx context.Context, inc *domain.Incident) error
	GetIncident(ctx context.Context, id int64) (*domain.Incident, error)
	UpdateIncident(ctx context.Context, inc *domain.Incident) error
	ListIncidents(ctx context.Context, status domain.IncidentStatus) ([]domain.Incident, error)

	InsertAuditEvent(ctx context.Context, ev *domain.AuditEvent) error
	ListAuditEvents(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error)
}

type Repos struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(db *sqlx.DB) *Repos { return &Repos{db: db, now: time.Now} }

func (r *Repos) q(query string) string { return r.db.Rebind(query) }

func (r *Repos) CreateSensor(ctx context.Context, s *domain.Sensor) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO sensors(id, name, location, min_temp, max_temp, active, created_at) VALUES (?,?,?,?,?,?,?)`),
		s.ID, s.Name, s.Location, s.MinTemp, s.MaxTemp, s.Active, s.CreatedAt)
	return err
}

func (r *Repos) GetSensor(ctx context.Context, id int64) (*domain.Sensor, error) {
	var s domain.Sensor
	err := r.db.GetContext(ctx, &s, r.q(`SELECT id, name, location, min_temp, max_temp, active, created_at FROM sensors WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repos) ListSensors(ctx context.Context) ([]domain.Sensor, error) {
	var out []domain.Sensor
	err := r.db.SelectContext(ctx, &out, `SELECT id, name, location, min_temp, max_temp, active, created_at FROM sensors ORDER BY id`)
	return out, err
}

func (r *Repos) UpdateThresholds(ctx context.Context, id int64, minTemp, maxTemp float64) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE sensors SET min_temp = ?, max_temp = ? WHERE id = ?`), minTemp, maxTemp, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *Repos) InsertReading(ctx context.Context, rd *domain.Reading) error {
	if rd.Timestamp.IsZero() {
		rd.Timestamp = r.now().UTC()
	}
	return r.db.QueryRowxContext(ctx, r.q(`INSERT INTO readings(sensor_id, temperature, humidity, timestamp, alert_triggered) VALUES (?,?,?,?,?) RETURNING id`),
		rd.SensorID, rd.Temperature, rd.Humidity, rd.Timestamp, rd.AlertTriggered).Scan(&rd.ID)
}

func (r *Repos) SetReadingAlert(ctx context.Context, id int64, triggered bool) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE readings SET alert_triggered = ? WHERE id = ?`), triggered, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *Repos) CountAlertedSince(ctx context.Context, sensorID int64, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.q(`SELECT COUNT(*) FROM readings WHERE sensor_id = ? AND alert_triggered = ? AND timestamp >= ?`),
		sensorID, true, since.UTC())
	return n, err
}

func (r *Repos) LatestReadings(ctx context.Context) ([]domain.Reading, error) {
	var out []domain.Reading
	err := r.db.SelectContext(ctx, &out, r.q(`
		SELECT r.id, r.sensor_id, r.temperature, r.humidity, r.timestamp, r.alert_triggered
		FROM readings r JOIN sensors s ON s.id = r.sensor_id
		WHERE s.active = ? AND r.id = (
			SELECT r2.id FROM readings r2 WHERE r2.sensor_id = r.sensor_id
			ORDER BY r2.timestamp DESC, r2.id DESC LIMIT 1)
		ORDER BY r.sensor_id`), true)
	return out, err
}

func (r *Repos) ReadingsSince(ctx context.Context, sensorID int64, since time.Time) ([]domain.Reading, error) {
	var out []domain.Reading
	err := r.db.SelectContext(ctx, &out, r.q(`SELECT id, sensor_id, temperature, humidity, timestamp, alert_triggered FROM readings WHERE sensor_id = ? AND timestamp >= ? ORDER BY timestamp, id`),
		sensorID, since.UTC())
	return out, err
}

// EnsureUser returns the user with username, creating it if absent.
func (r *Repos) EnsureUser(ctx context.Context, username, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, r.q(`SELECT id, username, email FROM users WHERE username = ?`), username)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, r.q(`INSERT INTO users(username, email) VALUES (?, ?) ON CONFLICT (username) DO NOTHING`), username, email); err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	if err := r.db.GetContext(ctx, &u, r.q(`SELECT id, username, email FROM users WHERE username = ?`), username); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repos) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, r.q(`SELECT id, username, email FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repos) CreateIncident(ctx context.Context, inc *domain.Incident) error {
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = r.now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if inc.ReadingID != nil {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM incidents WHERE reading_id = ?`), *inc.ReadingID); err != nil {
			return err
		}
		if n > 0 {
			return ErrIncidentExists
		}
	}
	err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO incidents(title, description, status, created_by, assigned_to, reading_id, sensor_id, created_at) VALUES (?,?,?,?,?,?,?,?) RETURNING id`),
		inc.Title, inc.Description, inc.Status, inc.CreatedBy, inc.AssignedTo, inc.ReadingID, inc.SensorID, inc.CreatedAt).Scan(&inc.ID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repos) GetIncident(ctx context.Context, id int64) (*domain.Incident, error) {
	var inc domain.Incident
	err := r.db.GetContext(ctx, &inc, r.q(`SELECT id, title, description, status, created_by, assigned_to, reading_id, sensor_id, created_at, closed_at FROM incidents WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

func (r *Repos) UpdateIncident(ctx context.Context, inc *domain.Incident) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE incidents SET status = ?, assigned_to = ?, closed_at = ? WHERE id = ?`),
		inc.Status, inc.AssignedTo, inc.ClosedAt, inc.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *Repos) ListIncidents(ctx context.Context, status domain.IncidentStatus) ([]domain.Incident, error) {
	query := `SELECT id, title, description, status, created_by, assigned_to, reading_id, sensor_id, created_at, closed_at FROM incidents`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	var out []domain.Incident
	err := r.db.SelectContext(ctx, &out, r.q(query), args...)
	return out, err
}

// InsertAuditEvent appends ev. The timestamp is always assigned here.
func (r *Repos) InsertAuditEvent(ctx context.Context, ev *domain.AuditEvent) error {
	ev.Timestamp = r.now().UTC()
	return r.db.QueryRowxContext(ctx, r.q(`INSERT INTO audit_events(actor, kind, action, timestamp, sensor_id, reading_id, incident_id) VALUES (?,?,?,?,?,?,?) RETURNING id`),
		ev.Actor, ev.Kind, ev.Action, ev.Timestamp, ev.SensorID, ev.ReadingID, ev.IncidentID).Scan(&ev.ID)
}

// ListAuditEvents returns matching events oldest first; equal timestamps
// keep insertion order.
func (r *Repos) ListAuditEvents(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, f.To.UTC())
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.SensorID != 0 {
		conds = append(conds, "sensor_id = ?")
		args = append(args, f.SensorID)
	}
	if f.ReadingID != 0 {
		conds = append(conds, "reading_id = ?")
		args = append(args, f.ReadingID)
	}
	if f.IncidentID != 0 {
		conds = append(conds, "incident_id = ?")
		args = append(args, f.IncidentID)
	}

	query := `SELECT id, actor, kind, action, timestamp, sensor_id, reading_id, incident_id FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var out []domain.AuditEvent
	err := r.db.SelectContext(ctx, &out, r.q(query), args...)
	return out, err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
