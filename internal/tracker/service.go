package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/i474232898/cyclone-tracker/internal/cyclone"
	"github.com/i474232898/cyclone-tracker/internal/observability"
	"github.com/i474232898/cyclone-tracker/internal/weather"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const (
	AnalysisRealTime   = "real_time"
	AnalysisHistorical = "historical"

	maxMarineDays = 7
)

// ErrCurrentUnavailable is returned by Current when no current-conditions
// provider is configured.
var ErrCurrentUnavailable = errors.New("current conditions are not configured")

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Request asks for a detection at one point. Coordinates are pointers so a
// missing value can be told apart from zero.
type Request struct {
	Latitude     *float64 `json:"latitude" validate:"required"`
	Longitude    *float64 `json:"longitude" validate:"required"`
	LocationName string   `json:"location_name"`
	AnalysisDate string   `json:"analysis_date" validate:"omitempty,datetime=2006-01-02"`
	SSTOverride  *float64 `json:"sst_override,omitempty"`
}

type Risk struct {
	Level   string `json:"level"`
	Tier    string `json:"tier"`
	Message string `json:"message"`
}

// Analysis is a detection result annotated for presentation.
type Analysis struct {
	LocationName string                  `json:"location_name"`
	Result       cyclone.DetectionResult `json:"data"`
	Risk         Risk                    `json:"risk"`
}

// Service fetches forecast and marine data for a request and runs the detector.
type Service struct {
	forecast weather.ForecastProvider
	marine   weather.MarineProvider
	current  weather.CurrentProvider
	detector *cyclone.Detector
	days     int
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

type Option func(*Service)

// WithForecastDays sets how many days real-time requests fetch.
func WithForecastDays(n int) Option {
	return func(s *Service) { s.days = n }
}

// WithCurrentProvider enables Current.
func WithCurrentProvider(p weather.CurrentProvider) Option {
	return func(s *Service) { s.current = p }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the providers to the detector. marine may be nil, in which
// case SST comes from the override or the air-temperature estimate.
func NewService(forecast weather.ForecastProvider, marine weather.MarineProvider, detector *cyclone.Detector, opts ...Option) *Service {
	s := &Service{
		forecast: forecast,
		marine:   marine,
		detector: detector,
		days:     7,
		clock:    clockwork.NewRealClock(),
		logger:   observability.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs one detection. Marine failures are logged and ignored.
func (s *Service) Analyze(ctx context.Context, req Request) (Analysis, error) {
	if err := validateRequest(req); err != nil {
		return Analysis{}, err
	}

	loc := weather.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	name := req.LocationName
	if name == "" {
		name = fmt.Sprintf("%v, %v", loc.Latitude, loc.Longitude)
	}
	historical := req.AnalysisDate != ""
	opts := weather.ForecastOptions{Days: s.days, Date: req.AnalysisDate}

	var (
		forecast weather.Forecast
		marine   *weather.MarineForecast
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fc, err := s.forecast.FetchForecast(gctx, loc, opts)
		if err != nil {
			return fmt.Errorf("fetch forecast: %w", err)
		}
		forecast = fc
		return nil
	})
	if s.marine != nil {
		g.Go(func() error {
			mOpts := weather.ForecastOptions{Days: min(s.days, maxMarineDays), Date: req.AnalysisDate}
			mf, err := s.marine.FetchMarine(gctx, loc, mOpts)
			if err != nil {
				if gctx.Err() == nil {
					s.logger.Warn("marine data unavailable, continuing without it",
						"location", name, "provider", s.marine.Name(), "error", err)
				}
				return nil
			}
			marine = &mf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Analysis{}, err
	}

	forecast = weather.SelectDay(forecast, req.AnalysisDate)
	var matchDate string
	if len(forecast.Days) > 0 {
		matchDate = forecast.Days[0].Date
	}

	result, err := s.detector.Detect(forecast, weather.MatchMarine(marine, matchDate), req.SSTOverride)
	if err != nil {
		return Analysis{}, fmt.Errorf("detect: %w", err)
	}

	if historical {
		// AnalysisDate keeps the day actually analysed, which differs from the
		// requested one when the forecast has no such day.
		result.Details.AnalysisType = AnalysisHistorical
		result.Details.RequestedDate = req.AnalysisDate
		if result.Details.AnalysisDate != req.AnalysisDate {
			s.logger.Warn("requested date missing from forecast, analysed first available day",
				"location", name, "requested_date", req.AnalysisDate, "analysed_date", result.Details.AnalysisDate)
		}
	} else {
		result.Details.AnalysisType = AnalysisRealTime
		result.Details.AnalysisDate = s.clock.Now().UTC().Format(time.RFC3339)
	}

	gust := result.Conditions.WindGusts.Value
	level := cyclone.RiskLevelFromGusts(gust)

	s.metrics.ObserveDetection(result.Category.String(), result.SeverityScore)
	s.logger.Info("detection complete",
		"location", name,
		"category", result.Category.String(),
		"severity_score", result.SeverityScore,
		"sst_source", string(result.Details.SSTSource),
		"analysis_type", result.Details.AnalysisType)

	return Analysis{
		LocationName: name,
		Result:       result,
		Risk: Risk{
			Level:   level.Label,
			Tier:    level.Tier,
			Message: cyclone.RiskMessageFromGusts(gust),
		},
	}, nil
}

// Current returns the latest conditions at the request's coordinates.
// Only the coordinates of req are used.
func (s *Service) Current(ctx context.Context, req Request) (weather.CurrentConditions, error) {
	if s.current == nil {
		return weather.CurrentConditions{}, ErrCurrentUnavailable
	}
	if err := validateRequest(req); err != nil {
		return weather.CurrentConditions{}, err
	}

	loc := weather.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	cur, err := s.current.FetchCurrent(ctx, loc)
	if err != nil {
		return weather.CurrentConditions{}, fmt.Errorf("fetch current conditions: %w", err)
	}
	s.logger.Info("current conditions fetched",
		"latitude", loc.Latitude, "longitude", loc.Longitude, "time", cur.Current.Time)
	return cur, nil
}

// validateRequest converts validator failures into cyclone.ValidationError so
// callers handle request and engine input faults the same way.
func validateRequest(req Request) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &cyclone.ValidationError{Field: fe.Field(), Msg: describe(fe), Err: err}
	}
	return &cyclone.ValidationError{Field: "request", Err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
