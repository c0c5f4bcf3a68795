package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// placeholderHosts mark sample URLs that ship in example configs.
var placeholderHosts = []string{"webhook.site", "example.com", "your-webhook", "changeme"}

type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// Webhook posts a structured JSON alert to an operator-provided URL.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
}

type webhookPayload struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	SensorID    int64   `json:"sensor_id"`
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   string  `json:"timestamp"`
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	return &Webhook{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (*Webhook) Name() string { return "webhook" }

// IsPlaceholder reports whether url is empty or a known sample value.
func IsPlaceholder(url string) bool {
	if strings.TrimSpace(url) == "" {
		return true
	}
	lower := strings.ToLower(url)
	for _, p := range placeholderHosts {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (w *Webhook) Send(ctx context.Context, msg Message) Outcome {
	urls := msg.Targets
	if len(urls) == 0 {
		urls = []string{w.cfg.URL}
	}

	kind := "TEMPERATURE_ALERT"
	if msg.Severity == SeverityCritical {
		kind = "CRITICAL_ALERT"
	}
	body, err := json.Marshal(webhookPayload{
		Type:        kind,
		Message:     msg.Body,
		SensorID:    msg.Sensor.ID,
		Location:    msg.Sensor.Location,
		Temperature: msg.Reading.Temperature,
		Humidity:    msg.Reading.Humidity,
		Timestamp:   msg.Reading.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return failed(w.Name(), fmt.Errorf("marshal payload: %w", err))
	}

	var (
		errs      []error
		attempted int
	)
	for _, url := range urls {
		if IsPlaceholder(url) {
			continue
		}
		attempted++
		if err := post(ctx, w.client, url, "application/json", body, nil); err != nil {
			errs = append(errs, err)
		}
	}
	if attempted == 0 {
		return failed(w.Name(), ErrNotConfigured)
	}
	if err := errors.Join(errs...); err != nil {
		return failed(w.Name(), err)
	}
	return sent(w.Name())
}
