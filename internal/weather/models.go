package weather

import (
	"errors"
	"fmt"
)

// ErrMissingField is matched by every FieldError.
var ErrMissingField = errors.New("missing required field")

// FieldError names a required field that a record does not carry.
type FieldError struct {
	Record string
	Field  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Record, e.Field)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrMissingField
}

// Location is a geographic point in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ForecastPoint is one day of atmospheric forecast.
// Measured values are pointers because the upstream arrays may carry nulls;
// Validate reports the first one that is absent.
type ForecastPoint struct {
	Date        string   `json:"date"`
	TempMax     *float64 `json:"temperature_2m_max"`
	TempMin     *float64 `json:"temperature_2m_min"`
	Pressure    *float64 `json:"surface_pressure"`
	WindSpeed   *float64 `json:"wind_speed_10m_max"`
	WindGustMax *float64 `json:"wind_gusts_10m_max,omitempty"`
}

// Validate checks that every required field of the day is populated.
// WindGustMax is optional.
func (p ForecastPoint) Validate() error {
	switch {
	case p.Date == "":
		return &FieldError{Record: "forecast day", Field: "date"}
	case p.TempMax == nil:
		return &FieldError{Record: "forecast day", Field: "temperature_2m_max"}
	case p.TempMin == nil:
		return &FieldError{Record: "forecast day", Field: "temperature_2m_min"}
	case p.Pressure == nil:
		return &FieldError{Record: "forecast day", Field: "surface_pressure"}
	case p.WindSpeed == nil:
		return &FieldError{Record: "forecast day", Field: "wind_speed_10m_max"}
	}
	return nil
}

// Forecast is the parsed atmospheric response for one location, ordered by date.
type Forecast struct {
	Location *Location       `json:"location"`
	Days     []ForecastPoint `json:"forecast"`
}

// MarineSample is one day of marine forecast. SST is only populated when the
// provider returned sea-surface temperature readings for that day.
type MarineSample struct {
	Date             string   `json:"date"`
	WaveHeight       *float64 `json:"wave_height"`
	WaveDirection    *float64 `json:"wave_direction"`
	CurrentVelocity  *float64 `json:"ocean_current_velocity,omitempty"`
	CurrentDirection *float64 `json:"ocean_current_direction,omitempty"`
	SST              *float64 `json:"sst,omitempty"`
}

// MarineForecast is the parsed marine response for one location, ordered by date.
type MarineForecast struct {
	Location *Location      `json:"location"`
	Days     []MarineSample `json:"marine_forecast"`
}

// Float returns a pointer to v. Handy for building records in code and tests.
func Float(v float64) *float64 {
	return &v
}

// CurrentReading is the latest observation Open-Meteo reports for a point.
type CurrentReading struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature_2m"`
	Pressure    float64 `json:"surface_pressure"`
	WindSpeed   float64 `json:"wind_speed_10m"`
}

type CurrentConditions struct {
	Location Location       `json:"location"`
	Current  CurrentReading `json:"current"`
}
