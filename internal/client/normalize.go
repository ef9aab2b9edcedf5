package client

import (
	"math"
	"strings"

	"github.com/rmaloney/weather-proxy/internal/models"
)

// Raw OpenWeatherMap payload shapes. Internal to the client; callers only
// ever see the normalized models.

type owmWeather struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmCurrent struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Weather    []owmWeather `json:"weather"`
	Visibility int          `json:"visibility"`
	Dt         int64        `json:"dt"`
}

type owmForecastItem struct {
	Dt   int64 `json:"dt"`
	Main struct {
		TempMin  float64 `json:"temp_min"`
		TempMax  float64 `json:"temp_max"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []owmWeather `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		ThreeH float64 `json:"3h"`
	} `json:"rain"`
	DtTxt string `json:"dt_txt"`
}

type owmForecast struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []owmForecastItem `json:"list"`
}

// mapCurrent normalizes a current-conditions payload. The provider already
// applies metric units; only rounding happens here.
func mapCurrent(raw owmCurrent) models.CurrentWeather {
	var weather owmWeather
	if len(raw.Weather) > 0 {
		weather = raw.Weather[0]
	}
	return models.CurrentWeather{
		City:          raw.Name,
		Country:       raw.Sys.Country,
		Temperature:   round1(raw.Main.Temp),
		FeelsLike:     round1(raw.Main.FeelsLike),
		Humidity:      raw.Main.Humidity,
		WindSpeed:     round1(raw.Wind.Speed),
		WindDirection: raw.Wind.Deg,
		Description:   weather.Description,
		Icon:          weather.Icon,
		Visibility:    raw.Visibility,
		Pressure:      raw.Main.Pressure,
		Sunrise:       raw.Sys.Sunrise,
		Sunset:        raw.Sys.Sunset,
		Timestamp:     raw.Dt,
		Cached:        false,
	}
}

// maxForecastDays caps the aggregated horizon.
const maxForecastDays = 5

// mapForecast aggregates 3-hour samples into at most five calendar days,
// in first-seen date order. Samples for a sixth or later date are never
// processed. Per day: temp min/max over the union of each sample's
// temp_min and temp_max, mean humidity (nearest integer), mean wind speed
// (one decimal), summed precipitation (one decimal). The representative
// description/icon comes from the local-noon sample, else the
// middle-index sample of the group.
func mapForecast(raw owmForecast) models.Forecast {
	groups := make(map[string][]owmForecastItem)
	var order []string

	for _, item := range raw.List {
		date, _, _ := strings.Cut(item.DtTxt, " ")
		if date == "" {
			continue
		}
		if _, seen := groups[date]; !seen {
			if len(order) >= maxForecastDays {
				continue
			}
			order = append(order, date)
		}
		groups[date] = append(groups[date], item)
	}

	days := make([]models.ForecastDay, 0, len(order))
	for _, date := range order {
		days = append(days, aggregateDay(date, groups[date]))
	}

	return models.Forecast{
		City:     raw.City.Name,
		Country:  raw.City.Country,
		Forecast: days,
		Cached:   false,
	}
}

func aggregateDay(date string, slots []owmForecastItem) models.ForecastDay {
	tempMin := slots[0].Main.TempMin
	tempMax := slots[0].Main.TempMax
	var humiditySum, windSum, precipSum float64
	for _, s := range slots {
		tempMin = math.Min(tempMin, math.Min(s.Main.TempMin, s.Main.TempMax))
		tempMax = math.Max(tempMax, math.Max(s.Main.TempMin, s.Main.TempMax))
		humiditySum += float64(s.Main.Humidity)
		windSum += s.Wind.Speed
		precipSum += s.Rain.ThreeH
	}
	n := float64(len(slots))

	rep := representativeSlot(slots)
	var weather owmWeather
	if len(rep.Weather) > 0 {
		weather = rep.Weather[0]
	}

	return models.ForecastDay{
		Date:          date,
		TempMin:       round1(tempMin),
		TempMax:       round1(tempMax),
		Description:   weather.Description,
		Icon:          weather.Icon,
		Humidity:      int(math.Round(humiditySum / n)),
		WindSpeed:     round1(windSum / n),
		Precipitation: round1(precipSum),
	}
}

// representativeSlot prefers the sample at local noon; when none matches
// exactly it falls back to the middle index (integer division). The noon
// heuristic is preserved as-is; changing the tie-break would change
// observable output.
func representativeSlot(slots []owmForecastItem) owmForecastItem {
	for _, s := range slots {
		if strings.Contains(s.DtTxt, "12:00:00") {
			return s
		}
	}
	return slots[len(slots)/2]
}

// round1 rounds to one decimal, half away from zero.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
