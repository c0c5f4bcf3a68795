package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coldchain/coldchain-monitor/internal/config"
)

type telemetry struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

func main() {
	sensor := flag.Int("sensor", 1, "sensor id embedded in the topic")
	count := flag.Int("count", 100, "messages to publish")
	base := flag.Float64("base", 4, "baseline temperature in C")
	spikeEvery := flag.Int("spike-every", 10, "publish an out-of-range spike every N messages, 0 disables")
	interval := flag.Duration("interval", 500*time.Millisecond, "delay between messages")
	flag.Parse()

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	config.SetupLogging()

	opts := mqtt.NewClientOptions().
		AddBroker(config.MQTTBroker()).
		SetClientID("coldchain-sim-" + uuid.NewString()[:8])
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	topic := fmt.Sprintf("sensors/%d/dht11", *sensor)
	for i := 1; i <= *count; i++ {
		t := telemetry{
			Temperature: *base + rand.Float64()*2 - 1,
			Humidity:    45 + rand.Float64()*10,
		}
		if *spikeEvery > 0 && i%*spikeEvery == 0 {
			t.Temperature = *base + 20
		}
		payload, _ := json.Marshal(t)
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		log.Debug().Str("topic", topic).RawJSON("payload", payload).Msg("published")
		time.Sleep(*interval)
	}
	log.Info().Int("messages", *count).Str("topic", topic).Msg("simulation done")
}
