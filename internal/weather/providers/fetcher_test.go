package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleepRecorder replaces the backoff wait and records requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func testPolicy(retries int) RetryPolicy {
	return RetryPolicy{RetryCount: retries, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second}
}

func newTestFetcher(t *testing.T, policy RetryPolicy, opts ...Option) (*Fetcher, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	opts = append([]Option{WithSleepFunc(rec.sleep)}, opts...)
	f := NewFetcher(FetcherConfig{
		Name:      "test",
		Timeout:   2 * time.Second,
		Retry:     policy,
		Breaker:   BreakerConfig{MaxFailures: 50, OpenTimeout: time.Minute},
		UserAgent: "CycloneTracker-Test/1.0",
	}, opts...)
	t.Cleanup(f.Close)
	return f, rec
}

func coords(lat, lon string) url.Values {
	v := url.Values{}
	v.Set("latitude", lat)
	v.Set("longitude", lon)
	return v
}

// countingServer responds with status and body and counts requests.
func countingServer(t *testing.T, status int, body string, headers map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetch_SuccessDecodesBody(t *testing.T) {
	var gotUA, gotLat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLat = r.URL.Query().Get("latitude")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, testPolicy(3))

	var out struct {
		Status string `json:"status"`
	}
	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL, Params: coords("-21.1151", "55.5364")}, &out)
	require.NoError(t, err)

	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, "CycloneTracker-Test/1.0", gotUA)
	assert.Equal(t, "-21.1151", gotLat)
	assert.Empty(t, rec.recorded())
}

func TestFetch_RateLimitedIsNotRetried(t *testing.T) {
	srv, calls := countingServer(t, http.StatusTooManyRequests, "", map[string]string{"Retry-After": "7"})
	f, rec := newTestFetcher(t, testPolicy(3))

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL, Params: coords("0", "0")}, &struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 7*time.Second, fe.RetryAfter)
	assert.Equal(t, 1, fe.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rec.recorded())
}

func TestFetch_RateLimitedDefaultRetryAfter(t *testing.T) {
	srv, _ := countingServer(t, http.StatusTooManyRequests, "", nil)
	f, _ := newTestFetcher(t, testPolicy(3))

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &struct{}{})

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 60*time.Second, fe.RetryAfter)
}

func TestFetch_ServerErrorRetriedUntilExhausted(t *testing.T) {
	srv, calls := countingServer(t, http.StatusInternalServerError, "boom", nil)
	f, rec := newTestFetcher(t, testPolicy(3))

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL, Params: coords("10", "20")}, &struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Equal(t, 4, fe.Attempts)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, rec.recorded())
}

func TestFetch_ZeroRetriesReturnsSingleAttemptError(t *testing.T) {
	srv, calls := countingServer(t, http.StatusBadGateway, "", nil)
	f, rec := newTestFetcher(t, testPolicy(0))

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &struct{}{})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rec.recorded())
}

func TestFetch_UnexpectedStatusIsRetried(t *testing.T) {
	srv, calls := countingServer(t, http.StatusNotFound, "", nil)
	f, _ := newTestFetcher(t, testPolicy(2))

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &struct{}{})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_BadRequestSurfacesReason(t *testing.T) {
	srv, calls := countingServer(t, http.StatusBadRequest, `{"error":true,"reason":"Cannot initialize WeatherVariable from invalid String value foo"}`, nil)
	f, _ := newTestFetcher(t, testPolicy(3))

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &struct{}{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Contains(t, err.Error(), "invalid String value foo")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_MalformedBodyIsNotRetried(t *testing.T) {
	srv, calls := countingServer(t, http.StatusOK, `{"daily": [`, nil)
	f, rec := newTestFetcher(t, testPolicy(3))

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &map[string]any{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rec.recorded())
}

func TestFetch_AttemptTimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, testPolicy(2))

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, &struct{}{})
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, rec.recorded(), 2)
}

func TestFetch_UnreachableIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f, rec := newTestFetcher(t, testPolicy(1))

	err := f.Fetch(context.Background(), Request{BaseURL: addr}, &struct{}{})
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Len(t, rec.recorded(), 1)
}

func TestFetch_InvalidCoordinatesMakeNoCall(t *testing.T) {
	srv, calls := countingServer(t, http.StatusOK, `{}`, nil)
	f, _ := newTestFetcher(t, testPolicy(3))

	tests := []struct {
		name     string
		lat, lon string
	}{
		{"latitude too high", "90.5", "0"},
		{"latitude too low", "-91", "0"},
		{"longitude too high", "0", "180.01"},
		{"longitude too low", "0", "-200"},
		{"latitude not numeric", "north", "0"},
		{"longitude not numeric", "0", ""},
		{"latitude NaN", "NaN", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.Fetch(context.Background(), Request{BaseURL: srv.URL, Params: coords(tt.lat, tt.lon)}, &struct{}{})
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestValidateCoordinates_AcceptsBounds(t *testing.T) {
	for _, c := range [][2]string{{"90", "180"}, {"-90", "-180"}, {"0", "0"}, {"-21.1151", "55.5364"}} {
		assert.NoError(t, ValidateCoordinates(coords(c[0], c[1])), c)
	}
	assert.NoError(t, ValidateCoordinates(url.Values{}))
}

func TestRetryPolicy_DelaySequence(t *testing.T) {
	p := testPolicy(10)
	want := []time.Duration{2, 4, 8, 16, 32, 60, 60, 60}
	for i, w := range want {
		assert.Equal(t, w*time.Second, p.Delay(i), "attempt %d", i)
	}
}

func TestFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv, calls := countingServer(t, http.StatusServiceUnavailable, "", nil)
	f := NewFetcher(FetcherConfig{
		Name:    "breaker-test",
		Timeout: time.Second,
		Retry:   testPolicy(0),
		Breaker: BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute},
	})
	defer f.Close()

	for i := 0; i < 2; i++ {
		err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &struct{}{})
		require.ErrorIs(t, err, ErrUpstream)
	}

	err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &struct{}{})
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_BreakerKeepsFullRetryBudget(t *testing.T) {
	srv, calls := countingServer(t, http.StatusInternalServerError, "", nil)
	rec := &sleepRecorder{}
	f := NewFetcher(FetcherConfig{
		Name:    "forecast",
		Timeout: time.Second,
		Retry:   testPolicy(5),
		Breaker: BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second},
	}, WithSleepFunc(rec.sleep))
	defer f.Close()

	for i := 1; i <= 2; i++ {
		err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &struct{}{})
		require.ErrorIs(t, err, ErrUpstream)
		assert.NotErrorIs(t, err, ErrUnreachable)

		var fe *FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, 6, fe.Attempts)
		assert.Equal(t, int32(6*i), calls.Load())
	}
	assert.Len(t, rec.recorded(), 10)
}

func TestFetch_NonRetryableOutcomesDoNotTripBreaker(t *testing.T) {
	srv, calls := countingServer(t, http.StatusBadRequest, `{"reason":"bad"}`, nil)
	f := NewFetcher(FetcherConfig{
		Timeout: time.Second,
		Retry:   testPolicy(0),
		Breaker: BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute},
	})
	defer f.Close()

	for i := 0; i < 3; i++ {
		err := f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &struct{}{})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_BackoffWaitsOnClock(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	f := NewFetcher(FetcherConfig{Timeout: time.Second, Retry: testPolicy(3)}, WithClock(clock))
	defer f.Close()

	done := make(chan error, 1)
	var out struct {
		OK bool `json:"ok"`
	}
	go func() {
		done <- f.Fetch(context.Background(), Request{BaseURL: srv.URL}, &out)
	}()

	clock.BlockUntil(1)
	assert.Equal(t, int32(1), calls.Load())
	clock.Advance(2 * time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.True(t, out.OK)
		assert.Equal(t, int32(2), calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not resume after the backoff elapsed")
	}
}

func TestFetch_CancelDuringBackoff(t *testing.T) {
	srv, calls := countingServer(t, http.StatusInternalServerError, "", nil)

	clock := clockwork.NewFakeClock()
	f := NewFetcher(FetcherConfig{Timeout: time.Second, Retry: testPolicy(5)}, WithClock(clock))
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.Fetch(ctx, Request{BaseURL: srv.URL}, &struct{}{})
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not return after cancellation")
	}
}
