package cyclone

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Fixed scoring constants.
const (
	SSTMax        = 30.0  // °C
	PressureFloor = 900.0 // hPa
	WindMax       = 250.0 // km/h
	GustThreshold = 120.0 // km/h
	GustMax       = 300.0 // km/h
)

// Thresholds are the configurable trigger values of the three primary conditions.
type Thresholds struct {
	SST      float64 `json:"sst" validate:"gt=0,lt=30"`
	Pressure float64 `json:"pressure" validate:"gt=900,lte=1100"`
	Wind     float64 `json:"wind" validate:"gt=0,lt=250"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{SST: 26.5, Pressure: 980, Wind: 117}
}

var validate = validator.New()

// Validate checks the thresholds sit strictly inside the scoring ranges so
// every normalisation has a positive denominator.
func (t Thresholds) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidThresholds, err)
	}
	return nil
}
