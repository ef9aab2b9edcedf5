package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rmaloney/weather-proxy/internal/cache"
	"github.com/rmaloney/weather-proxy/internal/client"
	"github.com/rmaloney/weather-proxy/internal/models"
	"github.com/rmaloney/weather-proxy/internal/observability"
)

// WeatherService orchestrates weather retrieval using the cache-aside
// pattern: cache hit returns immediately with cached=true and no upstream
// call; cache miss performs exactly one upstream call, stores the result,
// and returns it with cached=false. Upstream errors propagate to the
// caller unchanged; no retries happen at this layer.
type WeatherService struct {
	client client.WeatherClient
	cache  cache.Cache
}

// NewWeatherService creates a WeatherService. The cache is normally a
// BestEffort-wrapped store, so cache failures surface here as misses.
func NewWeatherService(client client.WeatherClient, cache cache.Cache) *WeatherService {
	return &WeatherService{
		client: client,
		cache:  cache,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetCurrent returns current conditions for the city, from cache when a
// live entry exists.
func (s *WeatherService) GetCurrent(ctx context.Context, city string) (models.CurrentWeather, error) {
	city = strings.TrimSpace(city)
	logger := loggerFromContext(ctx)

	var cached models.CurrentWeather
	if s.lookup(ctx, cache.EndpointCurrent, city, &cached, logger) {
		cached.Cached = true
		return cached, nil
	}

	data, err := s.client.FetchCurrent(ctx, city)
	if err != nil {
		return models.CurrentWeather{}, err
	}
	data.Cached = false
	s.store(ctx, cache.EndpointCurrent, city, data, logger)
	return data, nil
}

// GetForecast returns the 5-day forecast for the city, from cache when a
// live entry exists.
func (s *WeatherService) GetForecast(ctx context.Context, city string) (models.Forecast, error) {
	city = strings.TrimSpace(city)
	logger := loggerFromContext(ctx)

	var cached models.Forecast
	if s.lookup(ctx, cache.EndpointForecast, city, &cached, logger) {
		cached.Cached = true
		return cached, nil
	}

	data, err := s.client.FetchForecast(ctx, city)
	if err != nil {
		return models.Forecast{}, err
	}
	data.Cached = false
	s.store(ctx, cache.EndpointForecast, city, data, logger)
	return data, nil
}

// GetBundle fetches current conditions and forecast for one city
// concurrently. The two calls touch disjoint cache keys, so they never
// contend. The current-weather error wins when both fail.
func (s *WeatherService) GetBundle(ctx context.Context, city string) (models.WeatherBundle, error) {
	var (
		wg     sync.WaitGroup
		bundle models.WeatherBundle
		curErr error
		fcErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		bundle.Current, curErr = s.GetCurrent(ctx, city)
	}()
	go func() {
		defer wg.Done()
		bundle.Forecast, fcErr = s.GetForecast(ctx, city)
	}()
	wg.Wait()

	if curErr != nil {
		return models.WeatherBundle{}, curErr
	}
	if fcErr != nil {
		return models.WeatherBundle{}, fcErr
	}
	return bundle, nil
}

// lookup reads and decodes a cached document into v. Any failure counts as
// a miss; a payload that no longer decodes degrades the same way.
func (s *WeatherService) lookup(ctx context.Context, endpoint cache.Endpoint, city string, v interface{}, logger *zap.Logger) bool {
	payload, ok, err := s.cache.Get(ctx, endpoint, city)
	if err != nil || !ok {
		observability.CacheMissesTotal.WithLabelValues(string(endpoint)).Inc()
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		observability.CacheMissesTotal.WithLabelValues(string(endpoint)).Inc()
		if logger != nil {
			logger.Warn("cache payload corrupt, refetching",
				zap.String("key", cache.Key(endpoint, city)), zap.Error(err))
		}
		return false
	}
	observability.CacheHitsTotal.WithLabelValues(string(endpoint)).Inc()
	if logger != nil {
		logger.Debug("cache hit", zap.String("key", cache.Key(endpoint, city)))
	}
	return true
}

// store serializes and writes a result back. Failures are swallowed; the
// result already in hand is returned to the caller regardless.
func (s *WeatherService) store(ctx context.Context, endpoint cache.Endpoint, city string, v interface{}, logger *zap.Logger) {
	payload, err := json.Marshal(v)
	if err != nil {
		if logger != nil {
			logger.Warn("cache marshal failed", zap.String("key", cache.Key(endpoint, city)), zap.Error(err))
		}
		return
	}
	if err := s.cache.Set(ctx, endpoint, city, payload); err != nil {
		if logger != nil {
			logger.Warn("cache set failed", zap.String("key", cache.Key(endpoint, city)), zap.Error(err))
		}
	}
}
