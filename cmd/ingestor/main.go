package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/coldchain/coldchain-monitor/internal/bridge"
	"github.com/coldchain/coldchain-monitor/internal/config"
	"github.com/coldchain/coldchain-monitor/internal/repository"
	"github.com/coldchain/coldchain-monitor/internal/service"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	config.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := bridge.Config{
		Local: bridge.SessionConfig{
			Name:     "local",
			Broker:   config.MQTTBroker(),
			ClientID: config.MQTTClientID(),
			Topics:   []string{config.TelemetryTopic()},
			Retries:  config.ConnectRetries(),
		},
		CommandTopic:     config.CommandTopic(),
		FallbackSensorID: config.FallbackSensorID(),
		PollInterval:     config.PollInterval(),
		EventBuffer:      config.EventBuffer(),
	}
	if config.CloudBroker() != "" {
		cfg.Cloud = &bridge.SessionConfig{
			Name:     "cloud",
			Broker:   config.CloudBroker(),
			ClientID: config.MQTTClientID(),
			Username: config.CloudUsername(),
			Password: config.CloudPassword(),
			TLS:      true,
			Topics:   []string{config.CloudCommandTopic()},
			Retries:  config.ConnectRetries(),
		}
	}
	if config.CloudAPIURL() != "" {
		cfg.API = &bridge.APIConfig{
			BaseURL:      config.CloudAPIURL(),
			Username:     config.CloudAPIUsername(),
			Password:     config.CloudAPIPassword(),
			LoginPath:    config.CloudLoginPath(),
			StatusPath:   config.CloudStatusPath(),
			ReadingsPath: config.CloudReadingsPath(),
		}
	}
	b := bridge.New(cfg)

	var submit bridge.Submitter
	switch config.BridgeMode() {
	case "remote":
		if b.API() == nil {
			log.Fatal().Msg("BRIDGE_MODE=remote requires CLOUD_API_URL")
		}
		submit = b.API()
	default:
		store, closeStore, err := repository.Open(ctx, config.DBDriver(), config.DBDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("store open failed")
		}
		defer closeStore()
		svcs, err := service.Build(ctx, store)
		if err != nil {
			log.Fatal().Err(err).Msg("service wiring failed")
		}
		submit = svcs.Readings
	}

	log.Info().Str("mode", config.BridgeMode()).Str("topic", config.TelemetryTopic()).Msg("ingestor running; Ctrl+C to stop")
	if err := b.Run(ctx, submit); err != nil {
		log.Fatal().Err(err).Msg("ingestor failed")
	}
	log.Info().Msg("ingestor stopped")
}
