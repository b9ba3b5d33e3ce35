package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/cyclone-tracker/internal/cyclone"
	"github.com/i474232898/cyclone-tracker/internal/scheduler"
	"github.com/i474232898/cyclone-tracker/internal/tracker"
)

func TestSeverityMarker(t *testing.T) {
	assert.Equal(t, "[HIGH]", severityMarker(0.71))
	assert.Equal(t, "[MED]", severityMarker(0.7))
	assert.Equal(t, "[MED]", severityMarker(0.41))
	assert.Equal(t, "[LOW]", severityMarker(0.4))
	assert.Equal(t, "[LOW]", severityMarker(0))
}

func TestPrintSummary_SkipsFailures(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, []scheduler.Result{
		{
			Location: presets[0],
			Analysis: tracker.Analysis{Result: cyclone.DetectionResult{Category: cyclone.CategoryCyclone, SeverityScore: 0.82}},
		},
		{Location: presets[1], Err: errors.New("upstream down")},
	})

	out := buf.String()
	assert.Contains(t, out, "[HIGH] La Réunion: Cyclone (Severity: 82.00%)")
	assert.NotContains(t, out, "Maurice")
}

func TestPrintReport_FlagsEstimates(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, tracker.Analysis{
		LocationName: "Comores (Moroni)",
		Result: cyclone.DetectionResult{
			Category: cyclone.CategoryTropicalDepression,
			Conditions: cyclone.Conditions{
				SST:       cyclone.ConditionCheck{Value: 28.9, Threshold: 26.5, Met: true, Estimated: true},
				WindGusts: cyclone.ConditionCheck{Value: 45, Threshold: 120},
			},
		},
		Risk: tracker.Risk{Level: "Normal", Message: "Light gusts."},
	})

	out := buf.String()
	assert.Contains(t, out, "CYCLONE ANALYSIS - Comores (Moroni)")
	assert.Contains(t, out, "[OK] Sea surface temperature: 28.9C (threshold: >26.5C) (estimated)")
	assert.Contains(t, out, "[NO] Wind gusts: 45.0 km/h")
	assert.Contains(t, out, "CATEGORY: Tropical Depression")
}
