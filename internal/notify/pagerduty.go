package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const pagerDutyDedupTTL = 24 * time.Hour

type PagerDutyConfig struct {
	EventsURL  string
	RoutingKey string
	Timeout    time.Duration
}

// PagerDuty triggers Events API v2 incidents for critical alerts. Repeated
// sends for the same sensor and reading collapse onto one dedup key.
type PagerDuty struct {
	cfg    PagerDutyConfig
	client *http.Client
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key"`
	Payload     pagerDutyPayload `json:"payload"`
}

type pagerDutyPayload struct {
	Summary       string         `json:"summary"`
	Source        string         `json:"source"`
	Severity      string         `json:"severity"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

func NewPagerDuty(cfg PagerDutyConfig) *PagerDuty {
	if cfg.EventsURL == "" {
		cfg.EventsURL = "https://events.pagerduty.com/v2/enqueue"
	}
	return &PagerDuty{
		cfg:    cfg,
		client: newHTTPClient(cfg.Timeout),
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

func (*PagerDuty) Name() string { return "pagerduty" }

func (p *PagerDuty) configured() bool {
	key := strings.TrimSpace(p.cfg.RoutingKey)
	return key != "" && !strings.HasPrefix(strings.ToUpper(key), "YOUR")
}

// DedupKey identifies the page for a sensor reading.
func DedupKey(sensorID, readingID int64) string {
	return fmt.Sprintf("sensor-%d-%d", sensorID, readingID)
}

func (p *PagerDuty) Send(ctx context.Context, msg Message) Outcome {
	if !p.configured() {
		log.Warn().Msg("pagerduty routing key not configured; page skipped")
		return failed(p.Name(), ErrNotConfigured)
	}
	if msg.Severity != SeverityCritical {
		return failed(p.Name(), ErrBelowSeverity)
	}

	key := DedupKey(msg.Sensor.ID, msg.Reading.ID)
	if !p.reserve(key) {
		log.Debug().Str("dedup_key", key).Msg("pagerduty page already sent")
		return sent(p.Name())
	}

	event := pagerDutyEvent{
		RoutingKey:  p.cfg.RoutingKey,
		EventAction: "trigger",
		DedupKey:    key,
		Payload: pagerDutyPayload{
			Summary:   msg.Subject,
			Source:    fmt.Sprintf("sensor-%d", msg.Sensor.ID),
			Severity:  "critical",
			Timestamp: msg.Reading.Timestamp.UTC().Format(time.RFC3339),
			CustomDetails: map[string]any{
				"sensor_name": msg.Sensor.Name,
				"location":    msg.Sensor.Location,
				"temperature": msg.Reading.Temperature,
				"humidity":    msg.Reading.Humidity,
				"timestamp":   msg.Reading.Timestamp.UTC().Format(time.RFC3339),
				"tier":        msg.Tier,
				"details":     msg.Body,
			},
		},
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.release(key)
		return failed(p.Name(), fmt.Errorf("marshal event: %w", err))
	}

	if err := post(ctx, p.client, p.cfg.EventsURL, "application/json", body, nil); err != nil {
		p.release(key)
		return failed(p.Name(), err)
	}
	return sent(p.Name())
}

// reserve claims key, returning false if it was already claimed within the TTL.
func (p *PagerDuty) reserve(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for k, at := range p.seen {
		if now.Sub(at) > pagerDutyDedupTTL {
			delete(p.seen, k)
		}
	}
	if _, ok := p.seen[key]; ok {
		return false
	}
	p.seen[key] = now
	return true
}

func (p *PagerDuty) release(key string) {
	p.mu.Lock()
	delete(p.seen, key)
	p.mu.Unlock()
}
