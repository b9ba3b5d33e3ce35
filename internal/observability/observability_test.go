package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json")

	log.Info("dropped")
	log.Warn("kept", "location", "Moroni")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "Moroni", entry["location"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "info", "text").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello k=v")
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	m1, err := NewMetrics(reg)
	require.NoError(t, err)
	m2, err := NewMetrics(reg)
	require.NoError(t, err)

	m1.ObserveDetection("Cyclone", 0.9)
	m2.ObserveDetection("Cyclone", 0.8)
	assert.Equal(t, 2.0, testutil.ToFloat64(m1.Detections.WithLabelValues("Cyclone")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("forecast", "success", time.Second)
		m.ObserveRetry("forecast")
		m.SetBreakerState("forecast", 2)
		m.ObserveDetection("None", 0)
		m.ObserveWatchRun("success")
	})
}

func TestMetrics_Fetch(t *testing.T) {
	m, _ := NewMetricsForTesting()

	m.ObserveFetch("marine", "timed_out", 250*time.Millisecond)
	m.ObserveRetry("marine")
	m.SetBreakerState("marine", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("marine", "timed_out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchRetries.WithLabelValues("marine")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("marine")))
}
