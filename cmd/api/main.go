package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/coldchain/coldchain-monitor/internal/config"
	httpHandlers "github.com/coldchain/coldchain-monitor/internal/http"
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

	store, closeStore, err := repository.Open(ctx, config.DBDriver(), config.DBDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer closeStore()

	svcs, err := service.Build(ctx, store)
	if err != nil {
		log.Fatal().Err(err).Msg("service wiring failed")
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	httpHandlers.Register(app, svcs)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("api shutdown")
		}
	}()

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Str("db", config.DBDriver()).Msg("api listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("server exit")
	}
}
