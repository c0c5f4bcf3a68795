package bridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	opTimeout      = 10 * time.Second
	disconnectWait = 250
)

var errTimeout = errors.New("mqtt operation timed out")

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Publisher sends a payload to a topic. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Converter turns an inbound broker message into a dispatcher event.
type Converter func(source, topic string, payload []byte) Event

type SessionConfig struct {
	Name     string
	Broker   string
	ClientID string
	Username string
	Password string
	TLS      bool
	Topics   []string
	Convert  Converter
	Retries  int
}

// Session is one MQTT connection. Its callbacks only enqueue events; the
// Dispatcher re-subscribes it on every Connected event.
type Session struct {
	cfg    SessionConfig
	client mqtt.Client
	events chan<- Event
	state  atomic.Int32
}

func NewSession(cfg SessionConfig, events chan<- Event) *Session {
	if cfg.ClientID == "" {
		cfg.ClientID = "coldchain"
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	s := &Session{cfg: cfg, events: events}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(fmt.Sprintf("%s-%s-%s", cfg.ClientID, cfg.Name, strings.Split(uuid.NewString(), "-")[0])).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(func(mqtt.Client) {
			s.state.Store(int32(StateConnected))
			s.enqueue(Connected{Source: cfg.Name})
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			s.state.Store(int32(StateDisconnected))
			s.enqueue(Disconnected{Source: cfg.Name, Err: err})
		}).
		SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
			s.state.Store(int32(StateConnecting))
		}).
		SetDefaultPublishHandler(func(_ mqtt.Client, m mqtt.Message) {
			if cfg.Convert == nil {
				return
			}
			s.enqueue(cfg.Convert(cfg.Name, m.Topic(), m.Payload()))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	s.client = mqtt.NewClient(opts)
	return s
}

func (s *Session) Name() string { return s.cfg.Name }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) enqueue(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Warn().Str("session", s.cfg.Name).Type("event", ev).Msg("event buffer full, dropping")
	}
}

// Connect dials the broker, retrying with linear backoff. Once connected,
// paho reconnects on its own.
func (s *Session) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		s.state.Store(int32(StateConnecting))
		tok := s.client.Connect()
		switch {
		case !tok.WaitTimeout(opTimeout):
			lastErr = errTimeout
		case tok.Error() != nil:
			lastErr = tok.Error()
		default:
			log.Info().Str("session", s.cfg.Name).Str("broker", s.cfg.Broker).Msg("mqtt connected")
			return nil
		}

		s.state.Store(int32(StateDisconnected))
		log.Warn().Err(lastErr).Str("session", s.cfg.Name).Int("attempt", attempt).Msg("mqtt connect failed")
		if attempt == s.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return fmt.Errorf("connect %s broker %s after %d attempts: %w", s.cfg.Name, s.cfg.Broker, s.cfg.Retries, lastErr)
}

// Subscribe (re)subscribes every configured topic. Messages arrive through
// the default publish handler.
func (s *Session) Subscribe() error {
	for _, topic := range s.cfg.Topics {
		tok := s.client.Subscribe(topic, 0, nil)
		if !tok.WaitTimeout(opTimeout) {
			return fmt.Errorf("subscribe %s: %w", topic, errTimeout)
		}
		if err := tok.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		log.Info().Str("session", s.cfg.Name).Str("topic", topic).Msg("subscribed")
	}
	return nil
}

// Publish sends at QoS 0. The paho client serialises concurrent publishers.
func (s *Session) Publish(topic string, payload []byte) error {
	tok := s.client.Publish(topic, 0, false, payload)
	if !tok.WaitTimeout(opTimeout) {
		return fmt.Errorf("publish %s: %w", topic, errTimeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (s *Session) Close() {
	s.client.Disconnect(disconnectWait)
	s.state.Store(int32(StateDisconnected))
}
