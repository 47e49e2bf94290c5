// Package fishcast is the HTTP client for the FishCast API: fishing-spot
// photo analysis, usage stats, catch log and forecasts.
package fishcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "http://localhost:8000"

// DefaultTimeout bounds a full analysis round trip. The model backends are
// slow, so this is deliberately generous.
const DefaultTimeout = 60 * time.Second

type ClientOpts struct {
	BaseURL string
	// Timeout overrides DefaultTimeout. Negative disables the timeout.
	Timeout time.Duration
	// HTTPClient replaces the underlying transport, mainly for tests.
	HTTPClient *http.Client
}

type Client struct {
	httpClient *resty.Client
	baseURL    string
}

func NewClient(opts ClientOpts) *Client {
	c := Client{baseURL: DefaultBaseURL}
	if opts.BaseURL != "" {
		c.baseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	} else if timeout < 0 {
		timeout = 0
	}
	if opts.HTTPClient != nil {
		c.httpClient = resty.NewWithClient(opts.HTTPClient)
	} else {
		c.httpClient = resty.New()
	}
	c.httpClient.
		SetDebug(false).
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &c
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.httpClient.NewRequest().SetContext(ctx)
}

// Analyze uploads an image to the provider's analysis endpoint. The image
// goes as a multipart form under the field name "file"; the server rejects
// parts without an image/* content type.
func (c *Client) Analyze(ctx context.Context, provider Provider, data []byte, mimeType, filename string) (*Analysis, error) {
	if filename == "" {
		filename = "image"
	}
	res, err := c.req(ctx).
		SetMultipartField("file", filename, mimeType, bytes.NewReader(data)).
		Post(provider.endpoint())
	if err != nil {
		return nil, &TransportError{Op: "analyze", Err: err}
	}

	var body analyzeResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, &TransportError{Op: "analyze", Err: fmt.Errorf("malformed response (status %d): %w", res.StatusCode(), err)}
	}
	if !body.Success {
		msg := firstNonEmpty(body.Error, body.Detail)
		if msg == "" {
			msg = "analysis failed"
		}
		return nil, &ProviderError{StatusCode: res.StatusCode(), Message: msg}
	}

	return &Analysis{
		Recommendation: body.Recommendation,
		Provider:       body.Provider,
		Filename:       body.Filename,
	}, nil
}

// UsageStats fetches the current quota windows. The server reports failures
// with success:false even on HTTP 200.
func (c *Client) UsageStats(ctx context.Context) (*UsageStats, error) {
	res, err := c.req(ctx).Get("/usage-stats")
	if err != nil {
		return nil, &TransportError{Op: "usage-stats", Err: err}
	}

	var body usageStatsResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, &TransportError{Op: "usage-stats", Err: fmt.Errorf("malformed response (status %d): %w", res.StatusCode(), err)}
	}
	if !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "usage stats unavailable"
		}
		return nil, &ProviderError{StatusCode: res.StatusCode(), Message: msg}
	}

	return &body.Usage, nil
}

// LogCatch records a catch and returns the server's confirmation message.
func (c *Client) LogCatch(ctx context.Context, entry CatchEntry) (string, error) {
	res, err := c.req(ctx).SetBody(entry).Post("/catches")
	if err != nil {
		return "", &TransportError{Op: "log catch", Err: err}
	}
	if res.IsError() {
		return "", errorFromResponse("log catch", res)
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return "", &TransportError{Op: "log catch", Err: fmt.Errorf("malformed response: %w", err)}
	}
	return body.Message, nil
}

// Catches returns all logged catches, oldest first.
func (c *Client) Catches(ctx context.Context) ([]CatchEntry, error) {
	res, err := c.req(ctx).Get("/catches")
	if err != nil {
		return nil, &TransportError{Op: "catches", Err: err}
	}
	if res.IsError() {
		return nil, errorFromResponse("catches", res)
	}

	var entries []CatchEntry
	if err := json.Unmarshal(res.Body(), &entries); err != nil {
		return nil, &TransportError{Op: "catches", Err: fmt.Errorf("malformed response: %w", err)}
	}
	return entries, nil
}

// Forecast requests a fishing forecast for a location.
func (c *Client) Forecast(ctx context.Context, req ForecastRequest) (*ForecastReport, error) {
	res, err := c.req(ctx).SetBody(req).Post("/forecast")
	if err != nil {
		return nil, &TransportError{Op: "forecast", Err: err}
	}
	if res.IsError() {
		return nil, errorFromResponse("forecast", res)
	}

	var report ForecastReport
	if err := json.Unmarshal(res.Body(), &report); err != nil {
		return nil, &TransportError{Op: "forecast", Err: fmt.Errorf("malformed response: %w", err)}
	}
	return &report, nil
}

// Health pings the service.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	res, err := c.req(ctx).Get("/health")
	if err != nil {
		return nil, &TransportError{Op: "health", Err: err}
	}
	if res.IsError() {
		return nil, errorFromResponse("health", res)
	}

	var status HealthStatus
	if err := json.Unmarshal(res.Body(), &status); err != nil {
		return nil, &TransportError{Op: "health", Err: fmt.Errorf("malformed response: %w", err)}
	}
	return &status, nil
}
