package providers

import (
	"context"
	"fmt"

	"github.com/i474232898/cyclone-tracker/internal/weather"
)

const currentFields = "temperature_2m,surface_pressure,wind_speed_10m"

type openMeteoCurrent struct {
	Time        *string  `json:"time"`
	Temperature *float64 `json:"temperature_2m"`
	Pressure    *float64 `json:"surface_pressure"`
	WindSpeed   *float64 `json:"wind_speed_10m"`
}

// FetchCurrent requests the current conditions at loc. Every field is
// required; a missing one is a MalformedResponse.
func (p *OpenMeteoProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.CurrentConditions, error) {
	values := coordinateValues(loc)
	values.Set("current", currentFields)
	values.Set("timezone", "auto")

	var payload struct {
		Current *openMeteoCurrent `json:"current"`
	}
	if err := p.fetcher.Fetch(ctx, Request{BaseURL: p.baseURL, Params: values}, &payload); err != nil {
		return weather.CurrentConditions{}, fmt.Errorf("%s current: %w", p.name, err)
	}

	reading, err := parseCurrent(payload.Current)
	if err != nil {
		return weather.CurrentConditions{}, fmt.Errorf("%s current: %w", p.name, err)
	}
	return weather.CurrentConditions{Location: loc, Current: reading}, nil
}

func parseCurrent(c *openMeteoCurrent) (weather.CurrentReading, error) {
	if c == nil {
		return weather.CurrentReading{}, malformed("missing current object")
	}
	switch {
	case c.Time == nil:
		return weather.CurrentReading{}, malformed("current.time is missing")
	case c.Temperature == nil:
		return weather.CurrentReading{}, malformed("current.temperature_2m is missing")
	case c.Pressure == nil:
		return weather.CurrentReading{}, malformed("current.surface_pressure is missing")
	case c.WindSpeed == nil:
		return weather.CurrentReading{}, malformed("current.wind_speed_10m is missing")
	}
	return weather.CurrentReading{
		Time:        *c.Time,
		Temperature: *c.Temperature,
		Pressure:    *c.Pressure,
		WindSpeed:   *c.WindSpeed,
	}, nil
}
