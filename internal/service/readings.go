package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coldchain/coldchain-monitor/internal/alerting"
	"github.com/coldchain/coldchain-monitor/internal/audit"
	"github.com/coldchain/coldchain-monitor/internal/domain"
	"github.com/coldchain/coldchain-monitor/internal/repository"
)

type ReadingService struct {
	store  repository.Store
	audit  *audit.Recorder
	engine *alerting.Engine
}

// SubmitReading persists a measurement for sensorID and runs it through the
// alert engine. It is the single entry point for HTTP and MQTT ingestion.
func (s *ReadingService) SubmitReading(ctx context.Context, sensorID int64, temperature, humidity float64) (int64, error) {
	if !finite(temperature) || !finite(humidity) {
		return 0, ErrInvalidReading
	}

	sensor, err := s.store.GetSensor(ctx, sensorID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Int64("sensor_id", sensorID).Msg("reading for unknown sensor dropped")
		_, _ = s.audit.Record(ctx, domain.AuditEvent{
			Kind:     audit.KindUnknownSensor,
			Action:   fmt.Sprintf("reading rejected: unknown sensor %d", sensorID),
			SensorID: audit.ID(sensorID),
		})
		return 0, ErrSensorUnknown
	}
	if err != nil {
		return 0, fmt.Errorf("load sensor %d: %w", sensorID, err)
	}
	if !sensor.Active {
		log.Warn().Int64("sensor_id", sensorID).Msg("reading for inactive sensor dropped")
		_, _ = s.audit.Record(ctx, domain.AuditEvent{
			Kind:     audit.KindInactiveSensor,
			Action:   fmt.Sprintf("reading rejected: sensor %s is inactive", sensor.Name),
			SensorID: audit.ID(sensorID),
		})
		return 0, ErrSensorInactive
	}

	rd := &domain.Reading{
		SensorID:    sensorID,
		Temperature: temperature,
		Humidity:    humidity,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.store.InsertReading(ctx, rd); err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}

	_, _ = s.audit.Record(ctx, domain.AuditEvent{
		Kind:      audit.KindReadingReceived,
		Action:    fmt.Sprintf("measurement received from sensor %s: %.1fC, %.1f%%", sensor.Name, temperature, humidity),
		SensorID:  audit.ID(sensorID),
		ReadingID: audit.ID(rd.ID),
	})

	res, err := s.engine.Evaluate(ctx, *sensor, rd)
	if err != nil {
		return rd.ID, fmt.Errorf("evaluate reading %d: %w", rd.ID, err)
	}
	log.Debug().
		Int64("sensor_id", sensorID).
		Int64("reading_id", rd.ID).
		Bool("in_range", res.InRange).
		Int("alert_count", res.Count).
		Msg("reading processed")
	return rd.ID, nil
}

// Latest returns the newest reading of every active sensor.
func (s *ReadingService) Latest(ctx context.Context) ([]domain.Reading, error) {
	return s.store.LatestReadings(ctx)
}

// History returns a sensor's readings over the trailing window.
func (s *ReadingService) History(ctx context.Context, sensorID int64, window time.Duration) ([]domain.Reading, error) {
	if _, err := s.store.GetSensor(ctx, sensorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSensorUnknown
		}
		return nil, err
	}
	return s.store.ReadingsSince(ctx, sensorID, time.Now().UTC().Add(-window))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
