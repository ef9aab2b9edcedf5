package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rmaloney/weather-proxy/internal/apperror"
	"github.com/rmaloney/weather-proxy/internal/cache"
	"github.com/rmaloney/weather-proxy/internal/models"
)

type mockWeatherClient struct {
	current       models.CurrentWeather
	forecast      models.Forecast
	err           error
	currentCalls  int
	forecastCalls int
}

func (m *mockWeatherClient) FetchCurrent(ctx context.Context, city string) (models.CurrentWeather, error) {
	m.currentCalls++
	return m.current, m.err
}

func (m *mockWeatherClient) FetchForecast(ctx context.Context, city string) (models.Forecast, error) {
	m.forecastCalls++
	return m.forecast, m.err
}

type mockCache struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func (m *mockCache) Get(ctx context.Context, endpoint cache.Endpoint, city string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[cache.Key(endpoint, city)]
	return v, ok, nil
}

func (m *mockCache) Set(ctx context.Context, endpoint cache.Endpoint, city string, payload []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[cache.Key(endpoint, city)] = payload
	return nil
}

func (m *mockCache) Invalidate(ctx context.Context, endpoint cache.Endpoint, city string) error {
	delete(m.data, cache.Key(endpoint, city))
	return nil
}

func (m *mockCache) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestGetCurrent_CacheHitSkipsUpstream(t *testing.T) {
	cached := models.CurrentWeather{City: "Berlin", Country: "DE", Temperature: 15.5}
	mc := &mockCache{data: map[string][]byte{
		cache.Key(cache.EndpointCurrent, "berlin"): mustMarshal(t, cached),
	}}
	mockClient := &mockWeatherClient{}

	svc := NewWeatherService(mockClient, mc)
	got, err := svc.GetCurrent(context.Background(), " Berlin ")
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}

	if mockClient.currentCalls != 0 {
		t.Errorf("upstream calls = %d, want 0 on cache hit", mockClient.currentCalls)
	}
	if !got.Cached {
		t.Error("Cached = false, want true on cache hit")
	}
	if got.City != "Berlin" || got.Temperature != 15.5 {
		t.Errorf("got = %+v", got)
	}
}

func TestGetCurrent_CacheMissFetchesOnceAndStores(t *testing.T) {
	upstream := models.CurrentWeather{City: "Lisbon", Country: "PT", Temperature: 18.3}
	mc := &mockCache{}
	mockClient := &mockWeatherClient{current: upstream}

	svc := NewWeatherService(mockClient, mc)
	got, err := svc.GetCurrent(context.Background(), "Lisbon")
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}

	if mockClient.currentCalls != 1 {
		t.Errorf("upstream calls = %d, want exactly 1 on miss", mockClient.currentCalls)
	}
	if got.Cached {
		t.Error("Cached = true, want false on fresh fetch")
	}

	payload, ok := mc.data[cache.Key(cache.EndpointCurrent, "Lisbon")]
	if !ok {
		t.Fatal("cache not populated after fetch")
	}
	var stored models.CurrentWeather
	if err := json.Unmarshal(payload, &stored); err != nil {
		t.Fatalf("stored payload invalid: %v", err)
	}
	if stored.City != "Lisbon" {
		t.Errorf("stored city = %q", stored.City)
	}
	if stored.Cached {
		t.Error("stored Cached = true, want false; hit flag is set at read time")
	}
}

func TestGetCurrent_UpstreamErrorPropagatesUnchanged(t *testing.T) {
	wantErr := apperror.CityNotFound("atlantis")
	mockClient := &mockWeatherClient{err: wantErr}

	svc := NewWeatherService(mockClient, &mockCache{})
	_, err := svc.GetCurrent(context.Background(), "atlantis")
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetCurrent() error = %v, want the upstream error unchanged", err)
	}
}

func TestGetCurrent_CacheGetErrorFallsThrough(t *testing.T) {
	upstream := models.CurrentWeather{City: "Berlin"}
	mc := &mockCache{getErr: errors.New("backend down")}
	mockClient := &mockWeatherClient{current: upstream}

	svc := NewWeatherService(mockClient, mc)
	got, err := svc.GetCurrent(context.Background(), "Berlin")
	if err != nil {
		t.Fatalf("GetCurrent() error = %v, want nil (cache errors are non-fatal)", err)
	}
	if got.City != "Berlin" {
		t.Errorf("got = %+v", got)
	}
	if mockClient.currentCalls != 1 {
		t.Errorf("upstream calls = %d, want 1", mockClient.currentCalls)
	}
}

func TestGetCurrent_CacheSetErrorDoesNotAffectResult(t *testing.T) {
	upstream := models.CurrentWeather{City: "Berlin", Temperature: 9.9}
	mc := &mockCache{setErr: errors.New("disk full")}
	mockClient := &mockWeatherClient{current: upstream}

	svc := NewWeatherService(mockClient, mc)
	got, err := svc.GetCurrent(context.Background(), "Berlin")
	if err != nil {
		t.Fatalf("GetCurrent() error = %v, want nil (write failure swallowed)", err)
	}
	if got.Temperature != 9.9 {
		t.Errorf("got = %+v", got)
	}
}

func TestGetCurrent_CorruptCachePayloadRefetches(t *testing.T) {
	mc := &mockCache{data: map[string][]byte{
		cache.Key(cache.EndpointCurrent, "berlin"): []byte(`{not json`),
	}}
	mockClient := &mockWeatherClient{current: models.CurrentWeather{City: "Berlin"}}

	svc := NewWeatherService(mockClient, mc)
	got, err := svc.GetCurrent(context.Background(), "Berlin")
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}
	if got.Cached {
		t.Error("Cached = true, want false after corrupt payload refetch")
	}
	if mockClient.currentCalls != 1 {
		t.Errorf("upstream calls = %d, want 1", mockClient.currentCalls)
	}
}

func TestGetForecast_CacheHit(t *testing.T) {
	cached := models.Forecast{City: "Berlin", Forecast: []models.ForecastDay{{Date: "2024-03-15"}}}
	mc := &mockCache{data: map[string][]byte{
		cache.Key(cache.EndpointForecast, "berlin"): mustMarshal(t, cached),
	}}
	mockClient := &mockWeatherClient{}

	svc := NewWeatherService(mockClient, mc)
	got, err := svc.GetForecast(context.Background(), "berlin")
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if mockClient.forecastCalls != 0 {
		t.Errorf("upstream calls = %d, want 0", mockClient.forecastCalls)
	}
	if !got.Cached || len(got.Forecast) != 1 {
		t.Errorf("got = %+v", got)
	}
}

func TestGetForecast_EndpointsUseDisjointKeys(t *testing.T) {
	// A live current entry must not satisfy a forecast lookup.
	mc := &mockCache{data: map[string][]byte{
		cache.Key(cache.EndpointCurrent, "berlin"): mustMarshal(t, models.CurrentWeather{City: "Berlin"}),
	}}
	mockClient := &mockWeatherClient{forecast: models.Forecast{City: "Berlin"}}

	svc := NewWeatherService(mockClient, mc)
	_, err := svc.GetForecast(context.Background(), "berlin")
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if mockClient.forecastCalls != 1 {
		t.Errorf("forecast upstream calls = %d, want 1", mockClient.forecastCalls)
	}
}

func TestGetBundle_FetchesBoth(t *testing.T) {
	mockClient := &mockWeatherClient{
		current:  models.CurrentWeather{City: "Berlin", Temperature: 12.0},
		forecast: models.Forecast{City: "Berlin", Forecast: []models.ForecastDay{{Date: "2024-03-15"}}},
	}
	svc := NewWeatherService(mockClient, &mockCache{})

	got, err := svc.GetBundle(context.Background(), "Berlin")
	if err != nil {
		t.Fatalf("GetBundle() error = %v", err)
	}
	if got.Current.City != "Berlin" || got.Forecast.City != "Berlin" {
		t.Errorf("got = %+v", got)
	}
	if mockClient.currentCalls != 1 || mockClient.forecastCalls != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", mockClient.currentCalls, mockClient.forecastCalls)
	}
}

func TestGetBundle_ErrorPropagates(t *testing.T) {
	wantErr := apperror.UpstreamRateLimit()
	mockClient := &mockWeatherClient{err: wantErr}
	svc := NewWeatherService(mockClient, &mockCache{})

	_, err := svc.GetBundle(context.Background(), "Berlin")
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetBundle() error = %v, want upstream error", err)
	}
}
