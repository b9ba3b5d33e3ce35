package cyclone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLevelFromGusts(t *testing.T) {
	tests := []struct {
		gust  float64
		label string
		tier  string
	}{
		{0, "Normal", "safe"},
		{49.9, "Normal", "safe"},
		{50, "Surveillance", "normal"},
		{69, "Surveillance", "normal"},
		{70, "Heightened Vigilance", "caution"},
		{89.5, "Heightened Vigilance", "caution"},
		{90, "Cyclone Alert", "warning"},
		{95, "Cyclone Alert", "warning"},
		{119.9, "Cyclone Alert", "warning"},
		{120, "Cyclone Detected", "danger"},
		{300, "Cyclone Detected", "danger"},
	}
	for _, tt := range tests {
		got := RiskLevelFromGusts(tt.gust)
		assert.Equal(t, tt.label, got.Label, "gust %v", tt.gust)
		assert.Equal(t, tt.tier, got.Tier, "gust %v", tt.gust)
	}
}

func TestRiskMessageFromGusts(t *testing.T) {
	assert.Contains(t, RiskMessageFromGusts(10), "Light gusts")
	assert.Contains(t, RiskMessageFromGusts(55), "Moderate gusts")
	assert.Contains(t, RiskMessageFromGusts(75), "Significant gusts")
	assert.Contains(t, RiskMessageFromGusts(95), "Pre-cyclonic")
	assert.Contains(t, RiskMessageFromGusts(150), "Cyclonic formation confirmed")
}
