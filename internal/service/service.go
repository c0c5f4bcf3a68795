package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coldchain/coldchain-monitor/internal/alerting"
	"github.com/coldchain/coldchain-monitor/internal/audit"
	"github.com/coldchain/coldchain-monitor/internal/config"
	"github.com/coldchain/coldchain-monitor/internal/escalation"
	"github.com/coldchain/coldchain-monitor/internal/repository"
)

var (
	ErrSensorUnknown     = errors.New("sensor unknown")
	ErrSensorInactive    = errors.New("sensor inactive")
	ErrInvalidThresholds = errors.New("min_temp must be below max_temp")
	ErrInvalidReading    = errors.New("reading values must be finite numbers")
	ErrInvalidSensor     = errors.New("sensor id and name are required")
	ErrSensorExists      = errors.New("sensor already exists")
	ErrIncidentClosed    = errors.New("incident already closed")
)

type Services struct {
	Store     repository.Store
	Audit     *audit.Recorder
	Engine    *alerting.Engine
	Readings  *ReadingService
	Sensors   *SensorService
	Incidents *IncidentService
}

func New(store repository.Store, engine *alerting.Engine) *Services {
	rec := audit.New(store)
	return &Services{
		Store:     store,
		Audit:     rec,
		Engine:    engine,
		Readings:  &ReadingService{store: store, audit: rec, engine: engine},
		Sensors:   &SensorService{store: store, audit: rec},
		Incidents: &IncidentService{store: store, audit: rec},
	}
}

// Build wires the alert engine from configuration: the escalation tier
// table and every notification channel.
func Build(ctx context.Context, store repository.Store) (*Services, error) {
	tiers, err := config.EscalationTiers()
	if err != nil {
		return nil, err
	}
	policy, err := escalation.FromConfig(tiers)
	if err != nil {
		return nil, fmt.Errorf("escalation policy: %w", err)
	}

	engine := alerting.NewEngine(store, audit.New(store), policy, Channels(ctx),
		alerting.WithTimeout(config.NotifyTimeout()))
	return New(store, engine), nil
}
