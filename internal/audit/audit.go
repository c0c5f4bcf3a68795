// Package audit records the append-only trail of system and user actions.
package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/coldchain/coldchain-monitor/internal/domain"
)

// ActorSystem is recorded for actions taken without a human principal.
const ActorSystem = "system"

// Event kinds.
const (
	KindReadingReceived    = "reading_received"
	KindUnknownSensor      = "unknown_sensor"
	KindInactiveSensor     = "inactive_sensor"
	KindAlertTriggered     = "alert_triggered"
	KindIncidentCreated    = "incident_created"
	KindIncidentAssigned   = "incident_assigned"
	KindIncidentClosed     = "incident_closed"
	KindNotificationSent   = "notification_sent"
	KindNotificationFailed = "notification_failed"
	KindSensorCreated      = "sensor_created"
	KindThresholdsUpdated  = "thresholds_updated"
)

// Sink is implemented by anything that accepts audit events.
type Sink interface {
	Record(ctx context.Context, ev domain.AuditEvent) (domain.AuditEvent, error)
}

type Store interface {
	InsertAuditEvent(ctx context.Context, ev *domain.AuditEvent) error
	ListAuditEvents(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error)
}

type Recorder struct {
	store Store
}

func New(store Store) *Recorder { return &Recorder{store: store} }

// Record appends ev and returns it with its ID and timestamp populated.
// There is no update or delete counterpart.
func (r *Recorder) Record(ctx context.Context, ev domain.AuditEvent) (domain.AuditEvent, error) {
	if ev.Actor == "" {
		ev.Actor = ActorSystem
	}
	if err := r.store.InsertAuditEvent(ctx, &ev); err != nil {
		log.Error().Err(err).Str("kind", ev.Kind).Str("action", ev.Action).Msg("audit write failed")
		return ev, fmt.Errorf("record audit event: %w", err)
	}
	log.Debug().Int64("audit_id", ev.ID).Str("kind", ev.Kind).Str("actor", ev.Actor).Msg(ev.Action)
	return ev, nil
}

// Query returns events matching f ordered by timestamp then insertion order.
func (r *Recorder) Query(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEvent, error) {
	return r.store.ListAuditEvents(ctx, f)
}

// ID returns a pointer suitable for the optional subject links of an event.
func ID(v int64) *int64 { return &v }
