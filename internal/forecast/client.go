// Package forecast calls the remote prediction service and tracks the
// lifecycle of forecast requests.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/theirongolddev/salesdash/internal/model"
	"github.com/theirongolddev/salesdash/internal/source"
)

const (
	// DefaultTimeout bounds a single predict call.
	DefaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	userAgent      = "github.com/theirongolddev/salesdash/1.0"
)

var (
	// ErrUnexpectedStatus indicates a non-2xx response.
	ErrUnexpectedStatus = errors.New("forecast: unexpected status")
	// ErrTimeout indicates the request did not complete in time.
	ErrTimeout = errors.New("forecast: request timed out")
	// ErrMalformedResponse indicates the body could not be decoded.
	ErrMalformedResponse = errors.New("forecast: malformed response")
)

// Predictor produces a forecast for a sales series.
type Predictor interface {
	Predict(ctx context.Context, sales []model.SalesRecord) ([]model.ForecastRecord, error)
}

// WireKeys names the JSON keys used on the request and response.
type WireKeys struct {
	Date        string
	Value       string
	Predictions string
}

// DefaultWireKeys returns date/value/predictions.
func DefaultWireKeys() WireKeys {
	return WireKeys{Date: "date", Value: "value", Predictions: "predictions"}
}

// Client posts the sales series to a prediction endpoint.
type Client struct {
	url     string
	timeout time.Duration
	keys    WireKeys
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithWireKeys overrides the JSON key names. Empty keys keep their defaults.
func WithWireKeys(k WireKeys) Option {
	return func(c *Client) {
		if k.Date != "" {
			c.keys.Date = k.Date
		}
		if k.Value != "" {
			c.keys.Value = k.Value
		}
		if k.Predictions != "" {
			c.keys.Predictions = k.Predictions
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient creates a client for the given endpoint URL.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("forecast: invalid endpoint %q", endpoint)
	}

	c := &Client{
		url:     endpoint,
		timeout: DefaultTimeout,
		keys:    DefaultWireKeys(),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the configured endpoint.
func (c *Client) URL() string { return c.url }

// Predict sends the full series and returns the predicted records.
// A response without the predictions key is an empty forecast.
func (c *Client) Predict(ctx context.Context, sales []model.SalesRecord) ([]model.ForecastRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := c.encode(sales)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("forecast: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, c.timeout, err)
		}
		return nil, fmt.Errorf("forecast: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w reading response: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("forecast: reading response: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: response larger than %d bytes", ErrMalformedResponse, maxBodySize)
	}

	return c.decode(body)
}

func (c *Client) encode(sales []model.SalesRecord) ([]byte, error) {
	items := make([]map[string]any, len(sales))
	for i, r := range sales {
		var v any = r.Value
		if !isFinite(r.Value) {
			v = nil
		}
		items[i] = map[string]any{c.keys.Date: r.Date, c.keys.Value: v}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("forecast: encoding request: %w", err)
	}
	return payload, nil
}

func (c *Client) decode(body []byte) ([]model.ForecastRecord, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	raw, ok := envelope[c.keys.Predictions]
	if !ok || string(raw) == "null" {
		return []model.ForecastRecord{}, nil
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, c.keys.Predictions, err)
	}

	records := make([]model.ForecastRecord, 0, len(items))
	for _, item := range items {
		// Unreadable values become NaN, matching lenient series ingestion.
		v, _ := source.ParseValue(item[c.keys.Value])
		records = append(records, model.ForecastRecord{
			Date:  source.ParseDate(item[c.keys.Date]),
			Value: v,
		})
	}
	return records, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
