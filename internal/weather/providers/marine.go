package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/i474232898/cyclone-tracker/internal/weather"
)

const (
	DefaultMarineURL = "https://marine-api.open-meteo.com/v1/marine"
	MaxMarineDays    = 7

	dailyMarineFields = "wave_height_max,wave_direction_dominant,ocean_current_velocity,ocean_current_direction"
)

// MarineProvider implements weather.MarineProvider for the Open-Meteo marine API.
type MarineProvider struct {
	name    string
	baseURL string
	fetcher *Fetcher
}

func NewMarineProvider(fetcher *Fetcher, baseURL string) *MarineProvider {
	if baseURL == "" {
		baseURL = DefaultMarineURL
	}
	return &MarineProvider{
		name:    "openmeteo-marine",
		baseURL: baseURL,
		fetcher: fetcher,
	}
}

func (p *MarineProvider) Name() string {
	return p.name
}

type marinePayload struct {
	Daily *struct {
		Time             []string   `json:"time"`
		WaveHeight       []*float64 `json:"wave_height_max"`
		WaveDirection    []*float64 `json:"wave_direction_dominant"`
		CurrentVelocity  []*float64 `json:"ocean_current_velocity"`
		CurrentDirection []*float64 `json:"ocean_current_direction"`
	} `json:"daily"`
	Hourly *struct {
		Time []string   `json:"time"`
		SST  []*float64 `json:"sea_surface_temperature"`
	} `json:"hourly"`
}

// FetchMarine returns up to opts.Days days of marine data. A historical
// opts.Date is not supported by the marine endpoint and only selects which
// returned day callers will match against.
func (p *MarineProvider) FetchMarine(ctx context.Context, loc weather.Location, opts weather.ForecastOptions) (weather.MarineForecast, error) {
	days := opts.Days
	if days == 0 {
		days = MaxMarineDays
	}
	if days < 1 || days > MaxMarineDays {
		return weather.MarineForecast{}, invalidParameter("marine forecast_days must be between 1 and %d, got %d", MaxMarineDays, days)
	}

	values := coordinateValues(loc)
	values.Set("daily", dailyMarineFields)
	values.Set("hourly", "sea_surface_temperature")
	values.Set("timezone", "auto")

	var payload marinePayload
	if err := p.fetcher.Fetch(ctx, Request{BaseURL: p.baseURL, Params: values}, &payload); err != nil {
		return weather.MarineForecast{}, fmt.Errorf("%s: %w", p.name, err)
	}

	samples, err := parseMarine(payload)
	if err != nil {
		return weather.MarineForecast{}, fmt.Errorf("%s: %w", p.name, err)
	}
	if len(samples) > days {
		samples = samples[:days]
	}

	location := loc
	return weather.MarineForecast{Location: &location, Days: samples}, nil
}

func parseMarine(p marinePayload) ([]weather.MarineSample, error) {
	d := p.Daily
	if d == nil {
		return nil, malformed("missing daily object")
	}
	n := len(d.Time)
	if n == 0 {
		return nil, malformed("daily.time is empty")
	}
	if len(d.WaveHeight) != n {
		return nil, malformed("daily.wave_height_max has %d values, want %d", len(d.WaveHeight), n)
	}
	if len(d.WaveDirection) != n {
		return nil, malformed("daily.wave_direction_dominant has %d values, want %d", len(d.WaveDirection), n)
	}

	var sst map[string]float64
	if p.Hourly != nil {
		sst = dailyMeans(p.Hourly.Time, p.Hourly.SST)
	}

	out := make([]weather.MarineSample, 0, n)
	for i := 0; i < n; i++ {
		s := weather.MarineSample{
			Date:             d.Time[i],
			WaveHeight:       d.WaveHeight[i],
			WaveDirection:    d.WaveDirection[i],
			CurrentVelocity:  at(d.CurrentVelocity, i),
			CurrentDirection: at(d.CurrentDirection, i),
		}
		if mean, ok := sst[d.Time[i]]; ok {
			s.SST = weather.Float(mean)
		}
		out = append(out, s)
	}
	return out, nil
}

// dailyMeans averages hourly readings per calendar day. Timestamps look like
// "2024-01-15T13:00"; null readings are skipped.
func dailyMeans(times []string, vals []*float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, ts := range times {
		if i >= len(vals) || vals[i] == nil {
			continue
		}
		day, _, _ := strings.Cut(ts, "T")
		sums[day] += *vals[i]
		counts[day]++
	}
	means := make(map[string]float64, len(sums))
	for day, sum := range sums {
		means[day] = sum / float64(counts[day])
	}
	return means
}
