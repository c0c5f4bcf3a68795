package bridge

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Submitter accepts a decoded measurement. The local reading service and
// the cloud APIClient both satisfy it.
type Submitter interface {
	SubmitReading(ctx context.Context, sensorID int64, temperature, humidity float64) (int64, error)
}

// Subscriber re-establishes subscriptions after a connect.
type Subscriber interface {
	Name() string
	Subscribe() error
}

type DispatcherConfig struct {
	FallbackSensorID int64
	CommandTopic     string
}

// Dispatcher is the single consumer of bridge events.
type Dispatcher struct {
	cfg      DispatcherConfig
	events   <-chan Event
	submit   Submitter
	local    Publisher
	sessions map[string]Subscriber
}

func NewDispatcher(cfg DispatcherConfig, events <-chan Event, submit Submitter, local Publisher, sessions ...Subscriber) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		events:   events,
		submit:   submit,
		local:    local,
		sessions: make(map[string]Subscriber, len(sessions)),
	}
	for _, s := range sessions {
		d.sessions[s.Name()] = s
	}
	return d
}

// Run consumes events until ctx is cancelled. A single bad event never
// stops the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			d.Handle(ctx, ev)
		}
	}
}

func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case Connected:
		s, ok := d.sessions[e.Source]
		if !ok {
			return
		}
		if err := s.Subscribe(); err != nil {
			log.Error().Err(err).Str("session", e.Source).Msg("resubscribe failed")
		}
	case Disconnected:
		log.Warn().Err(e.Err).Str("session", e.Source).Msg("broker connection lost, reconnecting")
	case TelemetryReceived:
		d.telemetry(ctx, e)
	case CommandReceived:
		if err := d.local.Publish(d.cfg.CommandTopic, e.Payload); err != nil {
			log.Error().Err(err).Str("topic", d.cfg.CommandTopic).Msg("command relay failed")
			return
		}
		log.Info().Str("from", e.Topic).Str("to", d.cfg.CommandTopic).Str("command", string(e.Payload)).Msg("command relayed")
	default:
		log.Warn().Type("event", ev).Msg("unhandled bridge event")
	}
}

func (d *Dispatcher) telemetry(ctx context.Context, e TelemetryReceived) {
	sensorID := SensorIDFromTopic(e.Topic, d.cfg.FallbackSensorID)
	t, err := DecodeTelemetry(e.Payload)
	if err != nil {
		log.Warn().Err(err).Str("topic", e.Topic).Msg("telemetry dropped")
		return
	}

	id, err := d.submit.SubmitReading(ctx, sensorID, t.Temperature, t.Humidity)
	switch {
	case err == nil:
		log.Debug().Int64("sensor_id", sensorID).Int64("reading_id", id).Msg("telemetry ingested")
	case errors.Is(err, ErrUnauthorized):
		log.Warn().Err(err).Int64("sensor_id", sensorID).Msg("telemetry not forwarded")
	default:
		log.Warn().Err(err).Int64("sensor_id", sensorID).Str("topic", e.Topic).Msg("telemetry rejected")
	}
}
