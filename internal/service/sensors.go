package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coldchain/coldchain-monitor/internal/audit"
	"github.com/coldchain/coldchain-monitor/internal/domain"
	"github.com/coldchain/coldchain-monitor/internal/repository"
)

type SensorService struct {
	store repository.Store
	audit *audit.Recorder
}

func (s *SensorService) Create(ctx context.Context, sensor *domain.Sensor, actor string) error {
	if sensor.ID < 1 || sensor.Name == "" {
		return ErrInvalidSensor
	}
	if sensor.MinTemp >= sensor.MaxTemp {
		return ErrInvalidThresholds
	}
	if _, err := s.store.GetSensor(ctx, sensor.ID); err == nil {
		return ErrSensorExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup sensor: %w", err)
	}
	if err := s.store.CreateSensor(ctx, sensor); err != nil {
		return fmt.Errorf("create sensor: %w", err)
	}
	_, _ = s.audit.Record(ctx, domain.AuditEvent{
		Actor:    actor,
		Kind:     audit.KindSensorCreated,
		Action:   fmt.Sprintf("sensor %s provisioned at %s (%.1fC to %.1fC)", sensor.Name, sensor.Location, sensor.MinTemp, sensor.MaxTemp),
		SensorID: audit.ID(sensor.ID),
	})
	return nil
}

func (s *SensorService) Get(ctx context.Context, id int64) (*domain.Sensor, error) {
	sensor, err := s.store.GetSensor(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSensorUnknown
	}
	return sensor, err
}

func (s *SensorService) List(ctx context.Context) ([]domain.Sensor, error) {
	return s.store.ListSensors(ctx)
}

// UpdateThresholds changes the safe range. Readings already stored keep
// the classification they were given.
func (s *SensorService) UpdateThresholds(ctx context.Context, id int64, minTemp, maxTemp float64, actor string) (*domain.Sensor, error) {
	if minTemp >= maxTemp {
		return nil, ErrInvalidThresholds
	}
	if err := s.store.UpdateThresholds(ctx, id, minTemp, maxTemp); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSensorUnknown
		}
		return nil, fmt.Errorf("update thresholds: %w", err)
	}
	_, _ = s.audit.Record(ctx, domain.AuditEvent{
		Actor:    actor,
		Kind:     audit.KindThresholdsUpdated,
		Action:   fmt.Sprintf("thresholds for sensor %d set to %.1fC to %.1fC", id, minTemp, maxTemp),
		SensorID: audit.ID(id),
	})
	return s.store.GetSensor(ctx, id)
}
