package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/cyclone-tracker/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

const (
	defaultRetryAfter = 60 * time.Second
	maxBodyBytes      = 4 << 20
)

// RetryPolicy controls capped exponential backoff between attempts.
type RetryPolicy struct {
	RetryCount int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Delay returns the wait between attempt i (0-indexed) and attempt i+1:
// min(BaseDelay * 2^i, MaxDelay). There is no jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// BreakerConfig controls the circuit breaker wrapped around every Fetch call.
// MaxFailures counts consecutive calls that exhausted their retries.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// FetcherConfig bundles everything a Fetcher needs besides its collaborators.
type FetcherConfig struct {
	// Name labels the breaker, logs and metrics, e.g. "forecast".
	Name      string
	Timeout   time.Duration
	Retry     RetryPolicy
	Breaker   BreakerConfig
	UserAgent string
}

// Request is one logical fetch. Timeout bounds each attempt and falls back to
// the fetcher's configured timeout when zero.
type Request struct {
	BaseURL string
	Params  url.Values
	Timeout time.Duration
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher issues GET requests against a JSON API with validation, per-attempt
// timeouts, retries and a circuit breaker. Safe for concurrent use.
type Fetcher struct {
	name      string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	policy    RetryPolicy
	timeout   time.Duration
	userAgent string
	clock     clockwork.Clock
	sleep     SleepFunc
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithClock sets the clock used for backoff waits and attempt timing.
func WithClock(c clockwork.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

// WithSleepFunc replaces the backoff wait entirely. Tests use it to record delays.
func WithSleepFunc(fn SleepFunc) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// NewFetcher builds a Fetcher. The base URLs it is used with are expected to
// have been validated by configuration loading.
func NewFetcher(cfg FetcherConfig, opts ...Option) *Fetcher {
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker.MaxFailures = 5
	}

	f := &Fetcher{
		name:      cfg.Name,
		client:    &http.Client{},
		policy:    cfg.Retry,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		clock:     clockwork.NewRealClock(),
		logger:    observability.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.sleep == nil {
		f.sleep = f.clockSleep
	}

	maxFailures := cfg.Breaker.MaxFailures
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
			f.metrics.SetBreakerState(name, float64(to))
		},
	})
	return f
}

// Name returns the label this fetcher reports under.
func (f *Fetcher) Name() string {
	return f.name
}

// Delay exposes the backoff schedule.
func (f *Fetcher) Delay(attempt int) time.Duration {
	return f.policy.Delay(attempt)
}

// Close releases idle keep-alive connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

type fetchOutcome struct {
	body     []byte
	attempts int
	err      error
}

// Fetch performs up to RetryCount+1 attempts and decodes the JSON body into dst.
// Failures are *FetchError values, except for cancellation of ctx which is
// returned as ctx.Err().
//
// The circuit breaker sees one outcome per call: a failure only when every
// attempt ended in a retryable error. An open breaker fails the call before
// any attempt.
func (f *Fetcher) Fetch(ctx context.Context, req Request, dst any) error {
	if err := ValidateCoordinates(req.Params); err != nil {
		return err
	}
	target, err := buildURL(req.BaseURL, req.Params)
	if err != nil {
		return err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.timeout
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		body, attempts, err := f.retry(ctx, target, timeout)
		var fe *FetchError
		if errors.As(err, &fe) && fe.Kind.Retryable() {
			return nil, fe
		}
		return fetchOutcome{body: body, attempts: attempts, err: err}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			f.metrics.ObserveFetch(f.name, "circuit_open", 0)
			return &FetchError{Kind: KindUnreachable, Msg: "circuit breaker open", Err: err}
		}
		return err
	}

	out, ok := result.(fetchOutcome)
	if !ok {
		return fmt.Errorf("unexpected result type from circuit breaker: %T", result)
	}
	if out.err != nil {
		return out.err
	}
	if err := json.Unmarshal(out.body, dst); err != nil {
		return &FetchError{Kind: KindMalformedResponse, Attempts: out.attempts, Msg: "decode body", Err: err}
	}
	return nil
}

// retry runs attempts until one succeeds, one fails with a non-retryable
// error, or the budget is spent. It reports how many attempts were made.
func (f *Fetcher) retry(ctx context.Context, target string, timeout time.Duration) ([]byte, int, error) {
	maxAttempts := f.policy.RetryCount + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr *FetchError
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}

		body, err := f.attempt(ctx, target, timeout)
		if err == nil {
			return body, attempt + 1, nil
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			return nil, attempt + 1, err
		}
		fe.Attempts = attempt + 1
		if !fe.Kind.Retryable() {
			return nil, attempt + 1, fe
		}
		lastErr = fe

		if attempt+1 >= maxAttempts {
			break
		}

		delay := f.policy.Delay(attempt)
		f.logger.Warn("upstream attempt failed, retrying",
			"endpoint", f.name,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", fe)
		f.metrics.ObserveRetry(f.name)

		if err := f.sleep(ctx, delay); err != nil {
			return nil, attempt + 1, err
		}
	}

	f.logger.Error("upstream request failed after retries",
		"endpoint", f.name, "attempts", lastErr.Attempts, "error", lastErr)
	return nil, lastErr.Attempts, lastErr
}

// attempt performs one HTTP round trip and classifies its outcome.
func (f *Fetcher) attempt(ctx context.Context, target string, timeout time.Duration) (body []byte, err error) {
	start := f.clock.Now()
	defer func() {
		f.metrics.ObserveFetch(f.name, outcomeLabel(err), f.clock.Since(start))
	}()

	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, invalidParameter("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &FetchError{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Msg:        "upstream rate limit reached",
		}
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &FetchError{
			Kind:       KindInvalidParameter,
			StatusCode: resp.StatusCode,
			Msg:        badRequestReason(resp.Body),
		}
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &FetchError{Kind: KindUpstream, StatusCode: resp.StatusCode, Msg: "server error"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &FetchError{Kind: KindUpstream, StatusCode: resp.StatusCode, Msg: "unexpected status"}
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	return body, nil
}

func (f *Fetcher) clockSleep(ctx context.Context, d time.Duration) error {
	t := f.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

// classifyTransport maps a transport error to TimedOut or Unreachable. When the
// caller's own context is done its error is returned unchanged.
func classifyTransport(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: KindTimedOut, Msg: "attempt deadline exceeded", Err: err}
	}
	return &FetchError{Kind: KindUnreachable, Msg: "connection failed", Err: err}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	return "canceled"
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func badRequestReason(r io.Reader) string {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(&payload); err == nil && payload.Reason != "" {
		return payload.Reason
	}
	return "upstream rejected request parameters"
}

func buildURL(base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", invalidParameter("invalid base url %q", base)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

// ValidateCoordinates checks latitude and longitude query parameters when present.
// Non-numeric values and values outside [-90,90] x [-180,180] are rejected.
func ValidateCoordinates(params url.Values) error {
	if err := checkRange(params, "latitude", 90); err != nil {
		return err
	}
	return checkRange(params, "longitude", 180)
}

func checkRange(params url.Values, key string, limit float64) error {
	if !params.Has(key) {
		return nil
	}
	raw := params.Get(key)
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		return invalidParameter("%s must be a number, got %q", key, raw)
	}
	if v < -limit || v > limit {
		return invalidParameter("%s must be between %g and %g, got %g", key, -limit, limit, v)
	}
	return nil
}
