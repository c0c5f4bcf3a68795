package notify

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type VoiceConfig struct {
	APIURL     string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// Voice places a text-to-speech call per target number through the Twilio
// Calls API.
type Voice struct {
	cfg    VoiceConfig
	client *http.Client
}

func NewVoice(cfg VoiceConfig) *Voice {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.twilio.com"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Voice{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (*Voice) Name() string { return "voice" }

func (v *Voice) Send(ctx context.Context, msg Message) Outcome {
	if len(msg.Targets) == 0 {
		return failed(v.Name(), ErrNoTargets)
	}
	if v.cfg.AccountSID == "" || v.cfg.AuthToken == "" || v.cfg.FromNumber == "" {
		return failed(v.Name(), ErrNotConfigured)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", v.cfg.APIURL, v.cfg.AccountSID)
	twiml := callScript(msg)

	var errs []error
	for _, to := range msg.Targets {
		form := url.Values{}
		form.Set("To", to)
		form.Set("From", v.cfg.FromNumber)
		form.Set("Twiml", twiml)

		err := post(ctx, v.client, endpoint, "application/x-www-form-urlencoded", []byte(form.Encode()), func(r *http.Request) {
			r.SetBasicAuth(v.cfg.AccountSID, v.cfg.AuthToken)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("call %s: %w", to, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return failed(v.Name(), err)
	}
	return sent(v.Name())
}

func callScript(msg Message) string {
	text := fmt.Sprintf(
		"Critical temperature alert. Sensor %s at %s reads %.1f degrees. Please respond immediately.",
		msg.Sensor.Name, msg.Sensor.Location, msg.Reading.Temperature,
	)
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(text))
	return `<Response><Say voice="alice">` + buf.String() + `</Say></Response>`
}
