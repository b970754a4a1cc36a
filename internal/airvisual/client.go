// Package airvisual fetches air-quality measurements from the IQAir AirVisual API.
package airvisual

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/aqibot/core/logger"
	"github.com/m3rciful/aqibot/core/telegram/netutil"
	"github.com/m3rciful/aqibot/internal/aqi"
	"github.com/m3rciful/aqibot/internal/observability"
)

// DefaultBaseURL is the public AirVisual v2 endpoint.
const DefaultBaseURL = "http://api.airvisual.com/v2"

var (
	// ErrMissingAPIKey is returned when the client is used without an API key.
	ErrMissingAPIKey = errors.New("airvisual: api key is missing")
	// ErrInvalidMeasurement marks a payload that decoded but carries impossible values.
	ErrInvalidMeasurement = errors.New("airvisual: invalid measurement")
)

// APIError is a non-success answer from the API, either an HTTP status or a "fail" payload.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 && e.Status != http.StatusOK {
		return fmt.Sprintf("airvisual: status %d: %s", e.Status, e.Message)
	}
	return "airvisual: " + e.Message
}

// Code returns a stable identifier for log summaries.
func (e *APIError) Code() string {
	return "AIRVISUAL_" + strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(e.Message), " ", "_"))
}

// CityQuery selects a station by city, state and country.
type CityQuery struct {
	City    string
	State   string
	Country string
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Metrics *observability.Metrics
}

// Client implements the conversation air-quality source over HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewClient creates a client. A single attempt is made per request.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: base,
		httpClient: netutil.NewClient(netutil.ClientOptions{
			Timeout:        timeout,
			ResponseHeader: timeout,
		}),
		metrics: opts.Metrics,
	}, nil
}

// ByCity fetches the measurement of a named city. The label is "<city>, <state>".
func (c *Client) ByCity(ctx context.Context, q CityQuery) (aqi.Measurement, error) {
	params := url.Values{
		"city":    {q.City},
		"state":   {q.State},
		"country": {q.Country},
		"key":     {c.apiKey},
	}
	data, err := c.get(ctx, "city", "/city", params)
	if err != nil {
		return aqi.Measurement{}, err
	}
	return data.measurement(label(q.City, q.State))
}

// ByCoordinates fetches the measurement of the station nearest to lat/lon.
// The label is taken from the matched station.
func (c *Client) ByCoordinates(ctx context.Context, lat, lon float64) (aqi.Measurement, error) {
	params := url.Values{
		"lat": {fmt.Sprintf("%f", lat)},
		"lon": {fmt.Sprintf("%f", lon)},
		"key": {c.apiKey},
	}
	data, err := c.get(ctx, "nearest", "/nearest_city", params)
	if err != nil {
		return aqi.Measurement{}, err
	}
	city := data.City
	if city == "" {
		city = "Unknown City"
	}
	return data.measurement(label(city, data.State))
}

func label(city, state string) string {
	if strings.TrimSpace(state) == "" {
		return city
	}
	return city + ", " + state
}

func (c *Client) get(ctx context.Context, method, path string, params url.Values) (payload, error) {
	start := time.Now()
	data, err := c.do(ctx, c.baseURL+path+"?"+params.Encode())
	took := time.Since(start)

	outcome := "success"
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		outcome = "api_error"
	case err != nil:
		outcome = "error"
	}
	c.metrics.Fetch(method, outcome, took.Seconds())

	attrs := []slog.Attr{
		slog.String("op", method),
		slog.String("outcome", outcome),
		slog.Duration("duration", took),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Warn(ctx, "airvisual", "fetch.fail", attrs...)
		return payload{}, err
	}
	logger.Debug(ctx, "airvisual", "fetch.ok", attrs...)
	return data, nil
}

func (c *Client) do(ctx context.Context, fullURL string) (payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return payload{}, fmt.Errorf("airvisual: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return payload{}, fmt.Errorf("airvisual: request: %w", redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return payload{}, fmt.Errorf("airvisual: read body: %w", err)
	}

	var r response
	decodeErr := json.Unmarshal(body, &r)
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil {
			if m := r.failMessage(); m != "" {
				msg = m
			}
		}
		return payload{}, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return payload{}, fmt.Errorf("airvisual: decode response: %w", decodeErr)
	}
	if r.Status != "success" {
		msg := r.failMessage()
		if msg == "" {
			msg = "unknown API error"
		}
		return payload{}, &APIError{Status: resp.StatusCode, Message: msg}
	}

	var p payload
	if err := json.Unmarshal(r.Data, &p); err != nil {
		return payload{}, fmt.Errorf("airvisual: decode data: %w", err)
	}
	return p, nil
}

// redact strips the API key from transport errors, which embed the request URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "<redacted>"))
}
