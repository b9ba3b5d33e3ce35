package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/cyclone-tracker/internal/cyclone"
	"github.com/i474232898/cyclone-tracker/internal/observability"
	"github.com/i474232898/cyclone-tracker/internal/tracker"
)

const defaultRunTimeout = 2 * time.Minute

// Analyzer runs one detection.
type Analyzer interface {
	Analyze(ctx context.Context, req tracker.Request) (tracker.Analysis, error)
}

// WatchLocation is a named point the scheduler analyses on every run.
type WatchLocation struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Result is the outcome of one location in a run. Err is set when the
// analysis failed.
type Result struct {
	Location WatchLocation
	Analysis tracker.Analysis
	Err      error
}

// Scheduler periodically runs cyclone detection for configured locations.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	analyzer   Analyzer
	locations  []WatchLocation
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
	onResult   func(Result)
	onRun      func([]Result)
}

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithRunTimeout bounds each location's analysis, retries included.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.runTimeout = d }
}

// WithResultHandler is called for every location after each run.
func WithResultHandler(fn func(Result)) Option {
	return func(s *Scheduler) { s.onResult = fn }
}

// WithRunHandler is called once with all results at the end of each run.
func WithRunHandler(fn func([]Result)) Option {
	return func(s *Scheduler) { s.onRun = fn }
}

// New creates a new Scheduler.
func New(locations []WatchLocation, interval time.Duration, analyzer Analyzer, opts ...Option) *Scheduler {
	s := &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		analyzer:   analyzer,
		locations:  locations,
		interval:   interval,
		runTimeout: defaultRunTimeout,
		logger:     observability.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Info("scheduler: no watch locations configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce analyses every location concurrently and returns the results in
// configuration order. A failing location never aborts the others.
func (s *Scheduler) RunOnce(ctx context.Context) []Result {
	s.logger.Info("scheduler: running cyclone watch", "locations", len(s.locations))

	results := make([]Result, len(s.locations))
	var wg sync.WaitGroup
	for i, loc := range s.locations {
		wg.Add(1)
		go func(i int, loc WatchLocation) {
			defer wg.Done()
			results[i] = s.analyze(ctx, loc)
		}(i, loc)
	}
	wg.Wait()

	for _, r := range results {
		if s.onResult != nil {
			s.onResult(r)
		}
	}
	if s.onRun != nil {
		s.onRun(results)
	}
	s.logger.Info("scheduler: completed cyclone watch")
	return results
}

func (s *Scheduler) analyze(ctx context.Context, loc WatchLocation) Result {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	lat, lon := loc.Latitude, loc.Longitude
	a, err := s.analyzer.Analyze(ctx, tracker.Request{
		Latitude:     &lat,
		Longitude:    &lon,
		LocationName: loc.Name,
	})
	if err != nil {
		s.metrics.ObserveWatchRun("error")
		s.logger.Error("scheduler: analysis failed", "location", loc.Name, "error", err)
		return Result{Location: loc, Err: err}
	}

	s.metrics.ObserveWatchRun("success")
	attrs := []any{
		"location", loc.Name,
		"category", a.Result.Category.String(),
		"severity_score", a.Result.SeverityScore,
		"risk", a.Risk.Level,
	}
	if a.Result.Category >= cyclone.CategoryTropicalStorm {
		s.logger.Warn("scheduler: cyclone conditions detected", attrs...)
	} else {
		s.logger.Info("scheduler: analysis complete", attrs...)
	}
	return Result{Location: loc, Analysis: a}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
