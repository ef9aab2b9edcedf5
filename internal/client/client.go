package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rmaloney/weather-proxy/internal/apperror"
	"github.com/rmaloney/weather-proxy/internal/models"
	"github.com/rmaloney/weather-proxy/internal/observability"
)

// WeatherClient fetches normalized weather documents from the upstream
// provider. Implementations return typed operational errors
// (*apperror.Error) rather than partial data.
type WeatherClient interface {
	FetchCurrent(ctx context.Context, city string) (models.CurrentWeather, error)
	FetchForecast(ctx context.Context, city string) (models.Forecast, error)
}

const (
	currentPath  = "/weather"
	forecastPath = "/forecast"

	// 40 × 3h samples cover the full 5-day horizon.
	forecastCount = "40"
)

// OpenWeatherClient calls the OpenWeatherMap API with a bounded timeout
// and maps provider failures onto the service error taxonomy.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewOpenWeatherClient validates the key and builds a client. baseURL is
// the API root (e.g. https://api.openweathermap.org/data/2.5).
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openweathermap API key is required")
	}
	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker installs a breaker around upstream calls. Optional;
// when the breaker is open, calls fail fast as UPSTREAM_ERROR.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// FetchCurrent issues one call to the current-weather endpoint and returns
// the normalized document. Cached is left false; the orchestrator owns it.
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, city string) (models.CurrentWeather, error) {
	body, err := c.call(ctx, currentPath, city, "current weather")
	if err != nil {
		return models.CurrentWeather{}, err
	}

	var raw owmCurrent
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.CurrentWeather{}, apperror.Internal("current weather")
	}
	return mapCurrent(raw), nil
}

// FetchForecast issues one call to the forecast endpoint and returns the
// aggregated 5-day document.
func (c *OpenWeatherClient) FetchForecast(ctx context.Context, city string) (models.Forecast, error) {
	body, err := c.call(ctx, forecastPath, city, "forecast")
	if err != nil {
		return models.Forecast{}, err
	}

	var raw owmForecast
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.Forecast{}, apperror.Internal("forecast")
	}
	return mapForecast(raw), nil
}

// call performs one upstream GET and returns the response body, or a typed
// operational error per the taxonomy. opContext names the operation for
// messages and metric labels ("current weather" or "forecast").
func (c *OpenWeatherClient) call(ctx context.Context, path, city, opContext string) ([]byte, error) {
	start := time.Now()
	endpoint := metricEndpoint(path)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, path, city)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, apperror.Internal(opContext)
	}

	resp, err := c.do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(endpoint, "error").Observe(duration)
		if isTimeout(err) {
			return nil, apperror.UpstreamTimeout(opContext)
		}
		return nil, apperror.Upstream("", opContext)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.UpstreamDuration.WithLabelValues(endpoint, status).Observe(duration)

	body, readErr := io.ReadAll(resp.Body)

	if aerr := c.mapStatus(resp.StatusCode, body, city, opContext); aerr != nil {
		return nil, aerr
	}
	if readErr != nil {
		// The deadline can also fire mid-download, after a 2xx header.
		if isTimeout(readErr) {
			return nil, apperror.UpstreamTimeout(opContext)
		}
		return nil, apperror.Internal(opContext)
	}
	return body, nil
}

// do routes the request through the circuit breaker when one is installed.
func (c *OpenWeatherClient) do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.client.Do(req)
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*http.Response), nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, path, city string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	if path == forecastPath {
		params.Set("cnt", forecastCount)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// mapStatus converts a non-2xx provider response into the error taxonomy.
// Returns nil for success statuses.
func (c *OpenWeatherClient) mapStatus(statusCode int, body []byte, city, opContext string) *apperror.Error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusNotFound:
		return apperror.CityNotFound(city)
	case statusCode == http.StatusUnauthorized:
		return apperror.InvalidAPIKey()
	case statusCode == http.StatusTooManyRequests:
		return apperror.UpstreamRateLimit()
	default:
		return apperror.Upstream(providerMessage(body), opContext)
	}
}

// providerMessage extracts the provider's message field when the error
// body is parseable, else returns "" so the caller's default applies.
func providerMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}

// isTimeout reports whether a transport or body-read error is a deadline
// breach rather than a provider-side failure. Body reads surface timeouts
// as net.Error rather than url.Error.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}

func metricEndpoint(path string) string {
	if path == forecastPath {
		return "forecast"
	}
	return "current"
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
