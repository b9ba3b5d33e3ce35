package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/cyclone-tracker/internal/cyclone"
	"github.com/i474232898/cyclone-tracker/internal/tracker"
	"github.com/i474232898/cyclone-tracker/internal/weather"
	"github.com/i474232898/cyclone-tracker/internal/weather/providers"
)

const serviceName = "Cyclone Tracker API"

var validate = validator.New()

// Analyzer runs a detection for a request and reports current conditions.
type Analyzer interface {
	Analyze(ctx context.Context, req tracker.Request) (tracker.Analysis, error)
	Current(ctx context.Context, req tracker.Request) (weather.CurrentConditions, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. gatherer may be
// nil, in which case /metrics is not exposed.
func RegisterRoutes(app *fiber.App, analyzer Analyzer, gatherer prometheus.Gatherer) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	api.Get("/detect", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":  serviceName,
			"status":   "operational",
			"endpoint": "/api/detect",
			"method":   fiber.MethodPost,
			"usage": fiber.Map{
				"description":     "Detects cyclone conditions for a location",
				"required_params": []string{"latitude", "longitude"},
				"optional_params": []string{"location_name", "analysis_date", "sst_override"},
				"notes":           "latitude, longitude and sst_override accept numbers or numeric strings",
				"example": fiber.Map{
					"latitude":      -21.1151,
					"longitude":     55.5364,
					"location_name": "La Réunion",
				},
			},
		})
	})

	api.Post("/detect", func(c *fiber.Ctx) error {
		if len(c.Body()) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "No JSON data provided")
		}

		var body detectBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
		}

		analysis, err := analyzer.Analyze(c.UserContext(), body.request())
		if err != nil {
			return detectError(c, err)
		}

		return c.JSON(fiber.Map{
			"success":       true,
			"location_name": analysis.LocationName,
			"data":          analysis.Result,
			"risk":          analysis.Risk,
		})
	})

	api.Get("/current", func(c *fiber.Ctx) error {
		var req tracker.Request
		for key, dst := range map[string]**float64{"latitude": &req.Latitude, "longitude": &req.Longitude} {
			raw := c.Query(key)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be a number, got %q", key, raw))
			}
			*dst = &v
		}

		cur, err := analyzer.Current(c.UserContext(), req)
		if err != nil {
			if errors.Is(err, tracker.ErrCurrentUnavailable) {
				return fiber.NewError(fiber.StatusNotImplemented, err.Error())
			}
			return detectError(c, err)
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"location": cur.Location,
			"current":  cur.Current,
		})
	})

	api.Get("/risk", func(c *fiber.Ctx) error {
		q, err := parseRiskQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		level := cyclone.RiskLevelFromGusts(*q.Gusts)
		return c.JSON(fiber.Map{
			"gusts":   *q.Gusts,
			"level":   level.Label,
			"tier":    level.Tier,
			"message": cyclone.RiskMessageFromGusts(*q.Gusts),
		})
	})

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// detectError maps the error taxonomy onto status codes: input faults are 400,
// upstream faults 502, the rest 500.
func detectError(c *fiber.Ctx, err error) error {
	if errors.Is(err, cyclone.ErrValidation) || errors.Is(err, providers.ErrInvalidParameter) {
		return fiber.NewError(fiber.StatusBadRequest, "Validation error: "+err.Error())
	}

	var fe *providers.FetchError
	if errors.As(err, &fe) {
		if fe.Kind == providers.KindRateLimited && fe.RetryAfter > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(fe.RetryAfter.Seconds())))
		}
		return fiber.NewError(fiber.StatusBadGateway, "API error: "+err.Error())
	}

	return fiber.NewError(fiber.StatusInternalServerError, "Internal server error: "+err.Error())
}

// ErrorHandler renders every error as {"success": false, "error": "..."}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

// detectBody is the wire form of tracker.Request. Numeric fields accept
// either JSON numbers or numeric strings.
type detectBody struct {
	Latitude     *flexFloat `json:"latitude"`
	Longitude    *flexFloat `json:"longitude"`
	LocationName string     `json:"location_name"`
	AnalysisDate string     `json:"analysis_date"`
	SSTOverride  *flexFloat `json:"sst_override"`
}

func (b detectBody) request() tracker.Request {
	return tracker.Request{
		Latitude:     b.Latitude.float(),
		Longitude:    b.Longitude.float(),
		LocationName: b.LocationName,
		AnalysisDate: b.AnalysisDate,
		SSTOverride:  b.SSTOverride.float(),
	}
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%s is not a number", data)
	}
	*f = flexFloat(v)
	return nil
}

func (f *flexFloat) float() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// riskQuery holds query parameters for the gust risk endpoint.
type riskQuery struct {
	Gusts *float64 `validate:"required,gte=0"`
}

func parseRiskQuery(c *fiber.Ctx) (riskQuery, error) {
	var q riskQuery

	raw := c.Query("gusts")
	if raw == "" {
		return q, errors.New("gusts query parameter is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return q, fmt.Errorf("gusts must be a number, got %q", raw)
	}
	q.Gusts = &v

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}
