// Package openweather is the remote fetch client for the OpenWeatherMap
// API: current conditions by free-form query, forecast by coordinates. It
// returns raw response bodies; parsing belongs to the consumers.
package openweather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/SzymonGieraga/weatherGapp/internal/weather"
)

const defaultBaseURL = "https://api.openweathermap.org"

// Client fetches raw weather payloads with retries, backoff and a circuit
// breaker around the underlying HTTP client.
type Client struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewClient builds a Client. baseURL may be empty to use the production API.
func NewClient(httpClient *http.Client, apiKey, baseURL string, log *logrus.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: httpClient,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
		log:     log,
	}
}

// FetchCurrent looks up current conditions for a free-form location query.
// The query is classified before any network attempt; an unrecognized input
// fails with weather.ErrInvalidQuery.
func (c *Client) FetchCurrent(ctx context.Context, location string, unit weather.Unit) ([]byte, error) {
	query, err := weather.ClassifyQuery(location)
	if err != nil {
		return nil, err
	}

	values := query.Values()
	values.Set("appid", c.apiKey)
	values.Set("units", unit.Param())

	return c.get(ctx, "/data/2.5/weather", values)
}

// FetchForecast retrieves the multi-sample forecast for coordinates returned
// by a prior current-weather fetch.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64, unit weather.Unit) ([]byte, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("appid", c.apiKey)
	values.Set("units", unit.Param())

	return c.get(ctx, "/data/2.5/forecast", values)
}

func (c *Client) get(ctx context.Context, path string, values url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", c.baseURL, path, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	c.log.WithField("path", path).Debug("requesting remote weather data")

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return body, nil
}
