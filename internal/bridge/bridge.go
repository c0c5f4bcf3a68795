package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Local            SessionConfig
	Cloud            *SessionConfig
	API              *APIConfig
	CommandTopic     string
	FallbackSensorID int64
	PollInterval     time.Duration
	EventBuffer      int
}

// Bridge owns everything the ingestion loops share: the local publish
// session and the cloud API token. Nothing here is process global.
type Bridge struct {
	cfg    Config
	events chan Event
	local  *Session
	cloud  *Session
	api    *APIClient
}

// New builds the sessions without connecting. A nil cfg.Cloud or cfg.API
// disables the command relay or the status poller respectively.
func New(cfg Config) *Bridge {
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 256
	}
	b := &Bridge{cfg: cfg, events: make(chan Event, cfg.EventBuffer)}

	if cfg.Local.Convert == nil {
		cfg.Local.Convert = TelemetryEvent
	}
	b.local = NewSession(cfg.Local, b.events)
	if cfg.Cloud != nil {
		cloud := *cfg.Cloud
		if cloud.Convert == nil {
			cloud.Convert = CommandEvent
		}
		b.cloud = NewSession(cloud, b.events)
	}
	if cfg.API != nil {
		b.api = NewAPIClient(*cfg.API)
	}
	return b
}

// API returns the cloud API client, or nil when none is configured.
func (b *Bridge) API() *APIClient { return b.api }

// Run connects the brokers and runs the dispatcher and poller until ctx is
// cancelled. Failure to reach the local broker is fatal to Run; the cloud
// broker is optional.
func (b *Bridge) Run(ctx context.Context, submit Submitter) error {
	if err := b.local.Connect(ctx); err != nil {
		return fmt.Errorf("local broker: %w", err)
	}
	defer b.local.Close()

	sessions := []Subscriber{b.local}
	if b.cloud != nil {
		if err := b.cloud.Connect(ctx); err != nil {
			log.Error().Err(err).Msg("cloud broker unreachable, command relay disabled")
		} else {
			defer b.cloud.Close()
			sessions = append(sessions, b.cloud)
		}
	}

	if b.api != nil {
		if _, err := b.api.Tokens().Token(ctx); err != nil {
			log.Warn().Err(err).Msg("initial cloud login failed, will retry on demand")
		}
	}

	dispatcher := NewDispatcher(DispatcherConfig{
		FallbackSensorID: b.cfg.FallbackSensorID,
		CommandTopic:     b.cfg.CommandTopic,
	}, b.events, submit, b.local, sessions...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(ctx) })
	if b.api != nil {
		poller := NewPoller(b.api, b.local, b.cfg.CommandTopic, b.cfg.PollInterval)
		g.Go(func() error { return poller.Run(ctx) })
	}
	return g.Wait()
}
