package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/cyclone-tracker/internal/cyclone"
	"github.com/i474232898/cyclone-tracker/internal/scheduler"
	"github.com/i474232898/cyclone-tracker/internal/weather/providers"
)

// AppConfig is read once at startup and passed to constructors.
type AppConfig struct {
	WeatherAPIURL string `envconfig:"WEATHER_API_URL" default:"https://api.open-meteo.com/v1/forecast" validate:"required,url,startswith=https://"`
	MarineAPIURL  string `envconfig:"MARINE_API_URL" default:"https://marine-api.open-meteo.com/v1/marine" validate:"required,url,startswith=https://"`

	// Outbound request policy.
	Timeout            time.Duration `envconfig:"TIMEOUT" default:"10s" validate:"gt=0s"`
	RetryCount         int           `envconfig:"RETRY_COUNT" default:"3" validate:"gte=0,lte=10"`
	RetryDelay         time.Duration `envconfig:"RETRY_DELAY" default:"2s" validate:"gt=0s"`
	MaxRetryDelay      time.Duration `envconfig:"MAX_RETRY_DELAY" default:"60s" validate:"gtefield=RetryDelay"`
	UserAgent          string        `envconfig:"USER_AGENT" default:"CycloneTracker/1.0.0" validate:"required"`
	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" validate:"gte=1"`
	BreakerOpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s" validate:"gt=0s"`

	// Detection thresholds; range checks live in cyclone.Thresholds.
	SSTThreshold      float64 `envconfig:"CYCLONE_SST_THRESHOLD" default:"26.5"`
	PressureThreshold float64 `envconfig:"CYCLONE_PRESSURE_THRESHOLD" default:"980"`
	WindThreshold     float64 `envconfig:"CYCLONE_WIND_THRESHOLD" default:"117"`

	ForecastDays  int  `envconfig:"FORECAST_DAYS" default:"7" validate:"gte=1,lte=16"`
	MarineEnabled bool `envconfig:"MARINE_ENABLED" default:"true"`

	Port            string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0s"`

	WatchInterval  time.Duration  `envconfig:"WATCH_INTERVAL" default:"15m" validate:"gt=0s"`
	WatchLocations WatchLocations `envconfig:"WATCH_LOCATIONS"`
}

// WatchLocations decodes "name:lat:lon;name:lat:lon".
type WatchLocations []scheduler.WatchLocation

// Decode implements envconfig.Decoder.
func (w *WatchLocations) Decode(value string) error {
	var out WatchLocations
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 {
			return fmt.Errorf("watch location %q: want name:lat:lon", entry)
		}
		n := len(parts)
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[n-2]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return fmt.Errorf("watch location %q: invalid latitude", entry)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[n-1]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return fmt.Errorf("watch location %q: invalid longitude", entry)
		}
		name := strings.TrimSpace(strings.Join(parts[:n-2], ":"))
		if name == "" {
			return fmt.Errorf("watch location %q: empty name", entry)
		}
		out = append(out, scheduler.WatchLocation{Name: name, Latitude: lat, Longitude: lon})
	}
	*w = out
	return nil
}

var validate = newValidator()

// newValidator reports fields by their environment key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if key := f.Tag.Get("envconfig"); key != "" {
			return key
		}
		return f.Name
	})
	return v
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (*AppConfig, error) {
	// A missing .env file is fine; real environment variables win.
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and detection thresholds.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("config: CYCLONE_*_THRESHOLD: %w", err)
	}
	return nil
}

func (c *AppConfig) Thresholds() cyclone.Thresholds {
	return cyclone.Thresholds{
		SST:      c.SSTThreshold,
		Pressure: c.PressureThreshold,
		Wind:     c.WindThreshold,
	}
}

// FetcherConfig returns the outbound policy for the named upstream.
func (c *AppConfig) FetcherConfig(name string) providers.FetcherConfig {
	return providers.FetcherConfig{
		Name:    name,
		Timeout: c.Timeout,
		Retry: providers.RetryPolicy{
			RetryCount: c.RetryCount,
			BaseDelay:  c.RetryDelay,
			MaxDelay:   c.MaxRetryDelay,
		},
		Breaker: providers.BreakerConfig{
			MaxFailures: c.BreakerMaxFailures,
			OpenTimeout: c.BreakerOpenTimeout,
		},
		UserAgent: c.UserAgent,
	}
}
