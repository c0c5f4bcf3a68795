// Package notify implements the notification channels that carry alert
// messages out of the system. Every channel reports its result as an Outcome
// and never returns a panic or error to the caller.
package notify

//go:generate mockgen -destination=mock_channel.go -package=notify github.com/coldchain/coldchain-monitor/internal/notify Channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

var (
	// ErrNotConfigured is returned when a channel lacks credentials or a target URL.
	ErrNotConfigured = errors.New("not configured")

	// ErrNoTargets is returned when a route names no recipients for a channel that needs them.
	ErrNoTargets = errors.New("no targets")

	// ErrBelowSeverity is returned by channels that only fire on critical messages.
	ErrBelowSeverity = errors.New("severity below trigger threshold")

	errStatus = errors.New("unexpected HTTP status")
)

// DefaultTimeout bounds a single channel send.
const DefaultTimeout = 10 * time.Second

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type SensorRef struct {
	ID       int64
	Name     string
	Location string
}

type ReadingRef struct {
	ID          int64
	Temperature float64
	Humidity    float64
	Timestamp   time.Time
}

// Message is one alert notification handed to a channel.
type Message struct {
	Subject  string
	Body     string
	Severity Severity
	Tier     int
	Targets  []string
	Sensor   SensorRef
	Reading  ReadingRef
}

// Outcome is the result of one Send. A nil Err means the message was sent.
type Outcome struct {
	Channel string
	Err     error
}

func (o Outcome) Sent() bool { return o.Err == nil }

func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func sent(channel string) Outcome { return Outcome{Channel: channel} }

func failed(channel string, err error) Outcome { return Outcome{Channel: channel, Err: err} }

// Channel is the uniform send capability shared by all transports.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) Outcome
}

// Registry maps channel names to implementations so escalation tiers can
// refer to transports by name.
type Registry struct {
	channels map[string]Channel
}

func NewRegistry(channels ...Channel) *Registry {
	r := &Registry{channels: make(map[string]Channel, len(channels))}
	for _, ch := range channels {
		if ch != nil {
			r.channels[ch.Name()] = ch
		}
	}
	return r
}

func (r *Registry) Get(name string) (Channel, bool) {
	ch, ok := r.channels[name]
	return ch, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// post sends body and treats any non-2xx status as an error.
func post(ctx context.Context, client *http.Client, url, contentType string, body []byte, decorate func(*http.Request)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
	}
	return nil
}
