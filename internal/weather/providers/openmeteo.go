package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/cyclone-tracker/internal/weather"
)

const (
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultForecastDays = 7
	MaxForecastDays     = 16

	dailyForecastFields = "temperature_2m_max,temperature_2m_min,surface_pressure,wind_speed_10m_max,wind_gusts_10m_max"
)

// OpenMeteoProvider implements weather.ForecastProvider for the Open-Meteo daily forecast API.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	fetcher *Fetcher
}

func NewOpenMeteoProvider(fetcher *Fetcher, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		fetcher: fetcher,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoDaily struct {
	Time      []string   `json:"time"`
	TempMax   []*float64 `json:"temperature_2m_max"`
	TempMin   []*float64 `json:"temperature_2m_min"`
	Pressure  []*float64 `json:"surface_pressure"`
	WindSpeed []*float64 `json:"wind_speed_10m_max"`
	WindGusts []*float64 `json:"wind_gusts_10m_max"`
}

// FetchForecast requests opts.Days days of forecast, or the single day opts.Date.
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, loc weather.Location, opts weather.ForecastOptions) (weather.Forecast, error) {
	values := coordinateValues(loc)
	values.Set("daily", dailyForecastFields)
	values.Set("timezone", "auto")

	if opts.Date != "" {
		if _, err := time.Parse(time.DateOnly, opts.Date); err != nil {
			return weather.Forecast{}, invalidParameter("date must be YYYY-MM-DD, got %q", opts.Date)
		}
		values.Set("start_date", opts.Date)
		values.Set("end_date", opts.Date)
	} else {
		days := opts.Days
		if days == 0 {
			days = DefaultForecastDays
		}
		if days < 1 || days > MaxForecastDays {
			return weather.Forecast{}, invalidParameter("forecast_days must be between 1 and %d, got %d", MaxForecastDays, days)
		}
		values.Set("forecast_days", fmt.Sprint(days))
	}

	var payload struct {
		Daily *openMeteoDaily `json:"daily"`
	}
	if err := p.fetcher.Fetch(ctx, Request{BaseURL: p.baseURL, Params: values}, &payload); err != nil {
		return weather.Forecast{}, fmt.Errorf("%s forecast: %w", p.name, err)
	}

	days, err := parseDailyForecast(payload.Daily)
	if err != nil {
		return weather.Forecast{}, fmt.Errorf("%s forecast: %w", p.name, err)
	}

	location := loc
	return weather.Forecast{Location: &location, Days: days}, nil
}

func parseDailyForecast(d *openMeteoDaily) ([]weather.ForecastPoint, error) {
	if d == nil {
		return nil, malformed("missing daily object")
	}
	n := len(d.Time)
	if n == 0 {
		return nil, malformed("daily.time is empty")
	}
	required := []struct {
		name string
		vals []*float64
	}{
		{"temperature_2m_max", d.TempMax},
		{"temperature_2m_min", d.TempMin},
		{"surface_pressure", d.Pressure},
		{"wind_speed_10m_max", d.WindSpeed},
	}
	for _, r := range required {
		if len(r.vals) != n {
			return nil, malformed("daily.%s has %d values, want %d", r.name, len(r.vals), n)
		}
	}

	out := make([]weather.ForecastPoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, weather.ForecastPoint{
			Date:        d.Time[i],
			TempMax:     d.TempMax[i],
			TempMin:     d.TempMin[i],
			Pressure:    d.Pressure[i],
			WindSpeed:   d.WindSpeed[i],
			WindGustMax: at(d.WindGusts, i),
		})
	}
	return out, nil
}

func coordinateValues(loc weather.Location) url.Values {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", loc.Latitude))
	values.Set("longitude", fmt.Sprintf("%f", loc.Longitude))
	return values
}

// at returns vals[i], or nil when the optional series is shorter.
func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}
