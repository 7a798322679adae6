// Package forecast is a client for the WillyWeather forecast API.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

// Known WillyWeather location ids.
const (
	PerthID      = "14576"
	AustralindID = "15864"
)

// KnownLocations maps location ids to display names.
var KnownLocations = map[string]string{
	PerthID:      "Perth",
	AustralindID: "Australind",
}

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("forecast api key is not configured")

const defaultBaseURL = "https://api.willyweather.com.au/v2"

// Client fetches forecasts from WillyWeather.
type Client struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a Client. An empty apiKey yields a client whose calls
// fail with ErrNotConfigured.
func NewClient(client *http.Client, apiKey string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "willyweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

// WithBaseURL points the client at another API root. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Forecast fetches the weather and UV forecast for a location.
func (c *Client) Forecast(ctx context.Context, locationID string, days int) (Forecast, error) {
	if !c.Configured() {
		return Forecast{}, ErrNotConfigured
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("forecasts", "weather,uv")
		values.Set("days", strconv.Itoa(days))

		u := fmt.Sprintf("%s/%s/locations/%s/weather.json?%s",
			c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(locationID), values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return Forecast{}, err
	}
	defer resp.Body.Close()

	var payload Forecast
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Forecast{}, fmt.Errorf("decode forecast: %w", err)
	}
	return payload, nil
}
