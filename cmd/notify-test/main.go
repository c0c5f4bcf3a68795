package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coldchain/coldchain-monitor/internal/config"
	"github.com/coldchain/coldchain-monitor/internal/notify"
	"github.com/coldchain/coldchain-monitor/internal/service"
)

// notify-test sends a synthetic alert through configured channels so
// credentials can be checked without waiting for a real excursion.
func main() {
	channels := flag.String("channels", "", "comma separated channel names, empty for all")
	targets := flag.String("to", "", "comma separated targets (emails, chat ids, phone numbers)")
	critical := flag.Bool("critical", true, "send at critical severity")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	config.SetupLogging()

	ctx, cancel := context.WithTimeout(context.Background(), 2*config.NotifyTimeout())
	defer cancel()

	reg := service.Channels(ctx)
	names := reg.Names()
	if *channels != "" {
		names = strings.Split(*channels, ",")
	}

	msg := notify.Message{
		Subject:  "TEST ALERT: manual notification check",
		Body:     "This is a test alert triggered manually.\nTime: " + time.Now().UTC().Format(time.RFC3339),
		Severity: notify.SeverityWarning,
		Tier:     1,
		Sensor:   notify.SensorRef{ID: 999, Name: "TEST_SENSOR", Location: "TEST_LOCATION"},
		Reading:  notify.ReadingRef{ID: time.Now().Unix(), Temperature: 99.9, Humidity: 100, Timestamp: time.Now().UTC()},
	}
	if *critical {
		msg.Severity = notify.SeverityCritical
	}
	if *targets != "" {
		msg.Targets = strings.Split(*targets, ",")
	}

	failed := 0
	for _, name := range names {
		ch, ok := reg.Get(strings.TrimSpace(name))
		if !ok {
			fmt.Printf("%-10s unknown channel\n", name)
			failed++
			continue
		}
		out := ch.Send(ctx, msg)
		if out.Sent() {
			fmt.Printf("%-10s sent\n", out.Channel)
			continue
		}
		fmt.Printf("%-10s failed: %s\n", out.Channel, out.Reason())
		failed++
	}
	if failed > 0 {
		os.Exit(1)
	}
}
