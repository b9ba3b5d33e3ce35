package cyclone

import (
	"errors"
	"math"

	"github.com/i474232898/cyclone-tracker/internal/weather"
)

const (
	sstAirOffset    = 1.5 // °C added to mean air temperature
	gustWindFactor  = 1.5
	gustScoreWeight = 2.0
)

// SSTSource tells where the sea-surface temperature used by a detection came from.
type SSTSource string

const (
	SSTFromOverride SSTSource = "override"
	SSTFromMarine   SSTSource = "marine"
	SSTEstimated    SSTSource = "estimated"
)

// ConditionCheck is one observed value compared against its threshold.
// Estimated is set when the value was derived rather than observed.
type ConditionCheck struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Met       bool    `json:"met"`
	Estimated bool    `json:"estimated"`
}

type Conditions struct {
	SST       ConditionCheck `json:"sst"`
	Pressure  ConditionCheck `json:"pressure"`
	Wind      ConditionCheck `json:"wind"`
	WindGusts ConditionCheck `json:"wind_gusts"`
}

// primaryMet counts SST, pressure and wind. Gusts are deliberately excluded.
func (c Conditions) primaryMet() int {
	n := 0
	for _, met := range []bool{c.SST.Met, c.Pressure.Met, c.Wind.Met} {
		if met {
			n++
		}
	}
	return n
}

type Details struct {
	TemperatureMax float64   `json:"temperature_max"`
	TemperatureMin float64   `json:"temperature_min"`
	AnalysisDate   string    `json:"analysis_date"`
	AnalysisType   string    `json:"analysis_type,omitempty"`
	RequestedDate  string    `json:"requested_date,omitempty"`
	SSTSource      SSTSource `json:"sst_source"`
}

// DetectionResult is the output of one detection.
type DetectionResult struct {
	Location      weather.Location `json:"location"`
	Category      Category         `json:"category"`
	SeverityScore float64          `json:"severity_score"`
	Conditions    Conditions       `json:"conditions"`
	Details       Details          `json:"details"`
}

// Detector classifies forecast days against fixed thresholds. It holds no
// mutable state and is safe for concurrent use.
type Detector struct {
	th Thresholds
}

// NewDetector validates th once and returns a Detector bound to it.
func NewDetector(th Thresholds) (*Detector, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Detector{th: th}, nil
}

func (d *Detector) Thresholds() Thresholds {
	return d.th
}

// Detect analyses the first day of forecast. marine and sstOverride are
// optional; an override wins over marine SST, which wins over the estimate
// from air temperature.
func (d *Detector) Detect(forecast weather.Forecast, marine *weather.MarineSample, sstOverride *float64) (DetectionResult, error) {
	if forecast.Location == nil {
		return DetectionResult{}, &ValidationError{Field: "location", Msg: "forecast must carry a location"}
	}
	if len(forecast.Days) == 0 {
		return DetectionResult{}, &ValidationError{Field: "forecast", Msg: "forecast is empty"}
	}

	day := forecast.Days[0]
	if err := day.Validate(); err != nil {
		var fe *weather.FieldError
		if errors.As(err, &fe) {
			return DetectionResult{}, &ValidationError{Field: fe.Field, Msg: "missing from analysis day", Err: err}
		}
		return DetectionResult{}, &ValidationError{Field: "forecast", Err: err}
	}

	tmax, tmin := *day.TempMax, *day.TempMin

	var (
		sst       float64
		sstSource SSTSource
	)
	switch {
	case sstOverride != nil:
		sst, sstSource = *sstOverride, SSTFromOverride
	case marine != nil && marine.SST != nil:
		sst, sstSource = *marine.SST, SSTFromMarine
	default:
		sst, sstSource = EstimateSST(tmax, tmin), SSTEstimated
	}

	wind := *day.WindSpeed
	gust, gustEstimated := wind*gustWindFactor, true
	if day.WindGustMax != nil {
		gust, gustEstimated = *day.WindGustMax, false
	}

	conds := d.checks(sst, *day.Pressure, wind, gust)
	conds.SST.Estimated = sstSource == SSTEstimated
	conds.WindGusts.Estimated = gustEstimated

	score := d.score(sst, *day.Pressure, wind, gust)

	return DetectionResult{
		Location:      *forecast.Location,
		Category:      classify(conds.primaryMet(), score),
		SeverityScore: score,
		Conditions:    conds,
		Details: Details{
			TemperatureMax: tmax,
			TemperatureMin: tmin,
			AnalysisDate:   day.Date,
			SSTSource:      sstSource,
		},
	}, nil
}

// EstimateSST approximates sea-surface temperature from the day's air temperatures.
func EstimateSST(tempMax, tempMin float64) float64 {
	return (tempMax+tempMin)/2 + sstAirOffset
}

func (d *Detector) checks(sst, pressure, wind, gust float64) Conditions {
	return Conditions{
		SST:       ConditionCheck{Value: sst, Threshold: d.th.SST, Met: sst > d.th.SST},
		Pressure:  ConditionCheck{Value: pressure, Threshold: d.th.Pressure, Met: pressure < d.th.Pressure},
		Wind:      ConditionCheck{Value: wind, Threshold: d.th.Wind, Met: wind > d.th.Wind},
		WindGusts: ConditionCheck{Value: gust, Threshold: GustThreshold, Met: gust >= GustThreshold},
	}
}

// score returns the weighted severity in [0,1].
func (d *Detector) score(sst, pressure, wind, gust float64) float64 {
	sstScore := clamp01((sst - d.th.SST) / (SSTMax - d.th.SST))
	pressureScore := clamp01((d.th.Pressure - pressure) / (d.th.Pressure - PressureFloor))
	windScore := clamp01((wind - d.th.Wind) / (WindMax - d.th.Wind))
	gustScore := clamp01((gust - GustThreshold) / (GustMax - GustThreshold))

	return (sstScore + pressureScore + windScore + gustScoreWeight*gustScore) / (3 + gustScoreWeight)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
