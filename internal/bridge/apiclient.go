package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrUnauthorized is returned when the cloud API rejects credentials even
	// after a token refresh.
	ErrUnauthorized = errors.New("cloud api unauthorized")

	// ErrRejected is returned for any other non-2xx response.
	ErrRejected = errors.New("cloud api rejected request")
)

type APIConfig struct {
	BaseURL      string
	Username     string
	Password     string
	LoginPath    string
	StatusPath   string
	ReadingsPath string
	Timeout      time.Duration
}

// Status is the remote device state reported by the cloud API.
type Status struct {
	State       string `json:"state"`
	LastUpdated string `json:"last_updated"`
}

// APIClient talks to the cloud API with a shared bearer token. A 401
// response refreshes the token and retries the request once.
type APIClient struct {
	cfg    APIConfig
	client *http.Client
	tokens *TokenSource
}

func NewAPIClient(cfg APIConfig) *APIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &APIClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
	c.tokens = NewTokenSource(c.Login)
	return c
}

func (c *APIClient) Tokens() *TokenSource { return c.tokens }

// Login exchanges the configured credentials for an access token.
func (c *APIClient) Login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.LoginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return "", fmt.Errorf("%w: login status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: login status %d", ErrRejected, resp.StatusCode)
	}

	var body struct {
		Access string `json:"access"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	tok := body.Access
	if tok == "" {
		tok = body.Token
	}
	if tok == "" {
		return "", fmt.Errorf("%w: login response carried no token", ErrUnauthorized)
	}
	log.Info().Str("api", c.cfg.BaseURL).Msg("cloud api token acquired")
	return tok, nil
}

// Status fetches the current remote device state.
func (c *APIClient) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, c.cfg.StatusPath, nil, &st)
	return st, err
}

// SubmitReading forwards a measurement to the cloud API instead of the local
// store. The returned ID is zero if the API does not report one.
func (c *APIClient) SubmitReading(ctx context.Context, sensorID int64, temperature, humidity float64) (int64, error) {
	payload := map[string]any{
		"sensor":      sensorID,
		"sensor_id":   sensorID,
		"temperature": temperature,
		"humidity":    humidity,
		"status":      "OK",
	}
	var out struct {
		ID        int64 `json:"id"`
		ReadingID int64 `json:"reading_id"`
	}
	if err := c.do(ctx, http.MethodPost, c.cfg.ReadingsPath, payload, &out); err != nil {
		return 0, err
	}
	if out.ReadingID != 0 {
		return out.ReadingID, nil
	}
	return out.ID, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = b
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	status, err := c.send(ctx, method, path, token, body, out)
	if status != http.StatusUnauthorized {
		return err
	}

	log.Warn().Str("path", path).Msg("cloud api token rejected, refreshing")
	if token, err = c.tokens.Refresh(ctx, token); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	status, err = c.send(ctx, method, path, token, body, out)
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return err
}

func (c *APIClient) send(ctx context.Context, method, path, token string, body []byte, out any) (int, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, r)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%w: %s %s status %d", ErrRejected, method, path, resp.StatusCode)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
