package weather

import (
	"context"
)

// ForecastOptions selects which days a forecast provider returns.
// Date, when set, requests that single historical day (YYYY-MM-DD) and Days is ignored.
type ForecastOptions struct {
	Days int
	Date string
}

// ForecastProvider abstracts an atmospheric forecast source (e.g. Open-Meteo).
type ForecastProvider interface {
	Name() string
	FetchForecast(ctx context.Context, loc Location, opts ForecastOptions) (Forecast, error)
}

// MarineProvider abstracts a marine forecast source.
type MarineProvider interface {
	Name() string
	FetchMarine(ctx context.Context, loc Location, opts ForecastOptions) (MarineForecast, error)
}

// CurrentProvider abstracts a source of current conditions.
type CurrentProvider interface {
	Name() string
	FetchCurrent(ctx context.Context, loc Location) (CurrentConditions, error)
}
