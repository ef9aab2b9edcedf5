package models

// CurrentWeather is the normalized current-conditions document returned to
// API callers. Units are metric: °C, m/s, hPa, metres. Timestamps are
// Unix seconds (UTC). Cached is set by the orchestrator, never by the
// normalizer.
type CurrentWeather struct {
	City          string  `json:"city"`
	Country       string  `json:"country"`
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feelsLike"`
	Humidity      int     `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection int     `json:"windDirection"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	Visibility    int     `json:"visibility"`
	Pressure      int     `json:"pressure"`
	Sunrise       int64   `json:"sunrise"`
	Sunset        int64   `json:"sunset"`
	Timestamp     int64   `json:"timestamp"`
	Cached        bool    `json:"cached"`
}

// ForecastDay is one aggregated calendar day of a forecast.
type ForecastDay struct {
	Date          string  `json:"date"` // YYYY-MM-DD
	TempMin       float64 `json:"tempMin"`
	TempMax       float64 `json:"tempMax"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	Humidity      int     `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	Precipitation float64 `json:"precipitation"` // mm
}

// Forecast is the normalized 5-day forecast document.
type Forecast struct {
	City     string        `json:"city"`
	Country  string        `json:"country"`
	Forecast []ForecastDay `json:"forecast"`
	Cached   bool          `json:"cached"`
}

// WeatherBundle carries both documents for one city when fetched together.
type WeatherBundle struct {
	Current  CurrentWeather `json:"current"`
	Forecast Forecast       `json:"forecast"`
}
