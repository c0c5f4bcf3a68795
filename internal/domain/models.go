package domain

import "time"

// SystemUsername is the principal that owns automatically created incidents.
const SystemUsername = "system"

type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Email    string `db:"email" json:"email"`
}

type Sensor struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location"`
	MinTemp   float64   `db:"min_temp" json:"min_temp"`
	MaxTemp   float64   `db:"max_temp" json:"max_temp"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// InRange reports whether temp lies within the sensor thresholds.
// Values equal to MinTemp or MaxTemp are in range.
func (s Sensor) InRange(temp float64) bool {
	return !(temp < s.MinTemp || temp > s.MaxTemp)
}

type Reading struct {
	ID             int64     `db:"id" json:"id"`
	SensorID       int64     `db:"sensor_id" json:"sensor_id"`
	Temperature    float64   `db:"temperature" json:"temperature"`
	Humidity       float64   `db:"humidity" json:"humidity"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
	AlertTriggered bool      `db:"alert_triggered" json:"alert_triggered"`
}

type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "open"
	IncidentAssigned   IncidentStatus = "assigned"
	IncidentInProgress IncidentStatus = "in_progress"
	IncidentClosed     IncidentStatus = "closed"
)

type Incident struct {
	ID          int64          `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Status      IncidentStatus `db:"status" json:"status"`
	CreatedBy   int64          `db:"created_by" json:"created_by"`
	AssignedTo  *int64         `db:"assigned_to" json:"assigned_to,omitempty"`
	ReadingID   *int64         `db:"reading_id" json:"reading_id,omitempty"`
	SensorID    *int64         `db:"sensor_id" json:"sensor_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	ClosedAt    *time.Time     `db:"closed_at" json:"closed_at,omitempty"`
}

// AuditEvent is append-only. Timestamp is assigned by the store at write time.
type AuditEvent struct {
	ID         int64     `db:"id" json:"id"`
	Actor      string    `db:"actor" json:"actor"`
	Kind       string    `db:"kind" json:"kind"`
	Action     string    `db:"action" json:"action"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	SensorID   *int64    `db:"sensor_id" json:"sensor_id,omitempty"`
	ReadingID  *int64    `db:"reading_id" json:"reading_id,omitempty"`
	IncidentID *int64    `db:"incident_id" json:"incident_id,omitempty"`
}

// AuditFilter selects audit events. Zero values are ignored.
type AuditFilter struct {
	From       time.Time
	To         time.Time
	Kind       string
	SensorID   int64
	ReadingID  int64
	IncidentID int64
	Limit      int
}
