// Package alerting evaluates readings against sensor thresholds and drives
// incident creation and tiered notification for out-of-range readings.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/coldchain/coldchain-monitor/internal/audit"
	"github.com/coldchain/coldchain-monitor/internal/domain"
	"github.com/coldchain/coldchain-monitor/internal/escalation"
	"github.com/coldchain/coldchain-monitor/internal/notify"
	"github.com/coldchain/coldchain-monitor/internal/repository"
)

// AlertWindow is the trailing window used to count a sensor's alerts.
const AlertWindow = 24 * time.Hour

var errUnknownChannel = errors.New("unknown channel")

// Store is the persistence the engine needs.
type Store interface {
	SetReadingAlert(ctx context.Context, id int64, triggered bool) error
	CountAlertedSince(ctx context.Context, sensorID int64, since time.Time) (int, error)
	EnsureUser(ctx context.Context, username, email string) (*domain.User, error)
	CreateIncident(ctx context.Context, inc *domain.Incident) error
}

type Result struct {
	InRange    bool
	Count      int
	IncidentID int64
	Outcomes   []notify.Outcome
}

type Engine struct {
	store    Store
	audit    audit.Sink
	policy   *escalation.Policy
	channels *notify.Registry
	timeout  time.Duration
	now      func() time.Time
}

type Option func(*Engine)

// WithTimeout bounds each channel send.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, sink audit.Sink, policy *escalation.Policy, channels *notify.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		audit:    sink,
		policy:   policy,
		channels: channels,
		timeout:  notify.DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate classifies reading, which must already be persisted, against
// sensor. Out-of-range readings are flagged, opened as an incident and
// escalated. Only a failure to persist the alert flag is returned; incident
// and notification problems are logged and audited instead.
func (e *Engine) Evaluate(ctx context.Context, sensor domain.Sensor, reading *domain.Reading) (Result, error) {
	if sensor.InRange(reading.Temperature) {
		if reading.AlertTriggered {
			if err := e.store.SetReadingAlert(ctx, reading.ID, false); err != nil {
				return Result{}, fmt.Errorf("clear alert flag: %w", err)
			}
			reading.AlertTriggered = false
		}
		return Result{InRange: true}, nil
	}

	if err := e.store.SetReadingAlert(ctx, reading.ID, true); err != nil {
		return Result{}, fmt.Errorf("set alert flag: %w", err)
	}
	reading.AlertTriggered = true

	_, _ = e.audit.Record(ctx, domain.AuditEvent{
		Kind:      audit.KindAlertTriggered,
		Action:    fmt.Sprintf("alert triggered: out-of-range reading %.1fC (allowed %.1fC to %.1fC)", reading.Temperature, sensor.MinTemp, sensor.MaxTemp),
		SensorID:  audit.ID(sensor.ID),
		ReadingID: audit.ID(reading.ID),
	})

	count, err := e.store.CountAlertedSince(ctx, sensor.ID, e.now().Add(-AlertWindow))
	if err != nil || count < 1 {
		log.Warn().Err(err).Int64("sensor_id", sensor.ID).Msg("alert count unavailable, escalating at baseline")
		count = 1
	}

	res := Result{Count: count}
	if inc, err := e.openIncident(ctx, sensor, *reading); err != nil {
		log.Error().Err(err).Int64("reading_id", reading.ID).Msg("incident not created")
	} else {
		res.IncidentID = inc.ID
	}

	res.Outcomes = e.Escalate(ctx, sensor, *reading, count, res.IncidentID)
	return res, nil
}

func (e *Engine) openIncident(ctx context.Context, sensor domain.Sensor, reading domain.Reading) (*domain.Incident, error) {
	owner, err := e.store.EnsureUser(ctx, domain.SystemUsername, "")
	if err != nil {
		return nil, fmt.Errorf("system user: %w", err)
	}

	inc := &domain.Incident{
		Title:       fmt.Sprintf("Temperature out of range: %s", sensor.Name),
		Description: fmt.Sprintf("%s at %s read %.1fC, allowed range %.1fC to %.1fC.", sensor.Name, sensor.Location, reading.Temperature, sensor.MinTemp, sensor.MaxTemp),
		Status:      domain.IncidentOpen,
		CreatedBy:   owner.ID,
		ReadingID:   audit.ID(reading.ID),
		SensorID:    audit.ID(sensor.ID),
	}
	if err := e.store.CreateIncident(ctx, inc); err != nil {
		if errors.Is(err, repository.ErrIncidentExists) {
			return nil, fmt.Errorf("reading %d: %w", reading.ID, err)
		}
		return nil, fmt.Errorf("create incident: %w", err)
	}

	_, _ = e.audit.Record(ctx, domain.AuditEvent{
		Kind:       audit.KindIncidentCreated,
		Action:     fmt.Sprintf("incident %d opened for sensor %s", inc.ID, sensor.Name),
		SensorID:   audit.ID(sensor.ID),
		ReadingID:  audit.ID(reading.ID),
		IncidentID: audit.ID(inc.ID),
	})
	return inc, nil
}

type dispatch struct {
	channel notify.Channel
	name    string
	msg     notify.Message
}

// Escalate notifies every route of every tier active at count. Sends run
// concurrently, each under its own timeout, and one channel's failure never
// affects another. Routes with no targets are skipped without an outcome.
func (e *Engine) Escalate(ctx context.Context, sensor domain.Sensor, reading domain.Reading, count int, incidentID int64) []notify.Outcome {
	var jobs []dispatch
	for _, tier := range e.policy.Resolve(count) {
		for _, route := range tier.Routes {
			msg := BuildMessage(sensor, reading, count, tier, incidentID)
			msg.Targets = route.Targets
			ch, _ := e.channels.Get(route.Channel)
			jobs = append(jobs, dispatch{channel: ch, name: route.Channel, msg: msg})
		}
	}

	escalationID := uuid.NewString()
	logger := log.With().Str("escalation_id", escalationID).Int64("sensor_id", sensor.ID).Int("count", count).Logger()
	logger.Info().Int("routes", len(jobs)).Msg("escalating alert")

	results := make([]notify.Outcome, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = e.send(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]notify.Outcome, 0, len(results))
	for i, out := range results {
		if errors.Is(out.Err, notify.ErrNoTargets) {
			logger.Debug().Str("channel", out.Channel).Int("tier", jobs[i].msg.Tier).Msg("route has no targets")
			continue
		}
		e.recordOutcome(ctx, jobs[i].msg, out, incidentID)
		if out.Sent() {
			logger.Info().Str("channel", out.Channel).Int("tier", jobs[i].msg.Tier).Msg("notification sent")
		} else {
			logger.Warn().Str("channel", out.Channel).Int("tier", jobs[i].msg.Tier).Str("reason", out.Reason()).Msg("notification failed")
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (e *Engine) send(ctx context.Context, job dispatch) (out notify.Outcome) {
	if job.channel == nil {
		return notify.Outcome{Channel: job.name, Err: errUnknownChannel}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			out = notify.Outcome{Channel: job.name, Err: fmt.Errorf("channel panic: %v", r)}
		}
	}()

	out = job.channel.Send(ctx, job.msg)
	out.Channel = job.name
	return out
}

func (e *Engine) recordOutcome(ctx context.Context, msg notify.Message, out notify.Outcome, incidentID int64) {
	ev := domain.AuditEvent{
		Kind:      audit.KindNotificationSent,
		Action:    fmt.Sprintf("%s notification sent (tier %d)", out.Channel, msg.Tier),
		SensorID:  audit.ID(msg.Sensor.ID),
		ReadingID: audit.ID(msg.Reading.ID),
	}
	if !out.Sent() {
		ev.Kind = audit.KindNotificationFailed
		ev.Action = fmt.Sprintf("%s notification failed (tier %d): %s", out.Channel, msg.Tier, out.Reason())
	}
	if incidentID > 0 {
		ev.IncidentID = audit.ID(incidentID)
	}
	_, _ = e.audit.Record(ctx, ev)
}
