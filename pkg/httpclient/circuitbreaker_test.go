package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDoer answers every request with the next scripted outcome, repeating
// the last one once the script runs out.
type stubDoer struct {
	mu      sync.Mutex
	outcome []func() (*http.Response, error)
	calls   int
}

func (s *stubDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.outcome)-1)
	s.calls++
	return s.outcome[i]()
}

func (s *stubDoer) script(outcome ...func() (*http.Response, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = outcome
}

func status(code int) func() (*http.Response, error) {
	return func() (*http.Response, error) {
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader("upstream says no"))}, nil
	}
}

func failure(err error) func() (*http.Response, error) {
	return func() (*http.Response, error) { return nil, err }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testCBConfig trips after two of three requests fail and probes again after
// 100ms. Names must be unique per test because the state gauge is global.
func testCBConfig(t *testing.T) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         "test-" + strings.ReplaceAll(t.Name(), "/", "-"),
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      100 * time.Millisecond,
		FailureRatio: 0.6,
		MinRequests:  3,
	}
}

func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, breakerState.WithLabelValues(name).Write(&m))
	return m.GetGauge().GetValue()
}

func send(t *testing.T, cb *CircuitBreakerClient) (*http.Response, error) {
	t.Helper()
	return cb.Do(context.Background(), getRequest(t, "http://backend.test/hoodies"))
}

func TestDefaultCircuitBreakerConfig(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("storefront-backend")
	assert.Equal(t, "storefront-backend", cfg.Name)
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 0.5, cfg.FailureRatio)
	assert.Equal(t, uint32(5), cfg.MinRequests)
}

func TestCircuitBreaker_PassesThroughBelow500(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusNotFound, http.StatusUnprocessableEntity} {
		doer := &stubDoer{}
		doer.script(status(code))
		cfg := testCBConfig(t)
		cfg.Name += "-" + http.StatusText(code)
		cb := NewCircuitBreakerClient(doer, cfg, discardLogger())

		for i := 0; i < 5; i++ {
			resp, err := send(t, cb)
			require.NoError(t, err)
			assert.Equal(t, code, resp.StatusCode)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State(), "status %d", code)
	}
}

func TestCircuitBreaker_ServerErrorBecomesError(t *testing.T) {
	doer := &stubDoer{}
	doer.script(status(http.StatusBadGateway))
	cfg := testCBConfig(t)
	cb := NewCircuitBreakerClient(doer, cfg, discardLogger())

	resp, err := send(t, cb)
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), cfg.Name+" server error 502: upstream says no")
	assert.False(t, IsBreakerRejection(err))
}

func TestCircuitBreaker_OpensAndRejects(t *testing.T) {
	doer := &stubDoer{}
	doer.script(failure(errors.New("connection refused")), status(http.StatusInternalServerError))
	cfg := testCBConfig(t)
	cb := NewCircuitBreakerClient(doer, cfg, discardLogger())

	for i := 0; i < 3; i++ {
		_, err := send(t, cb)
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, 2.0, gaugeValue(t, cfg.Name))

	_, err := send(t, cb)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsBreakerRejection(err))
	assert.Equal(t, 3, doer.calls, "an open breaker does not reach the upstream")
}

func TestCircuitBreaker_CancelledCallerIsNotAFailure(t *testing.T) {
	doer := &stubDoer{}
	doer.script(failure(context.Canceled))
	cb := NewCircuitBreakerClient(doer, testCBConfig(t), discardLogger())

	for i := 0; i < 5; i++ {
		_, err := send(t, cb)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	doer := &stubDoer{}
	doer.script(status(http.StatusServiceUnavailable))
	cfg := testCBConfig(t)
	cb := NewCircuitBreakerClient(doer, cfg, discardLogger())

	for i := 0; i < 3; i++ {
		_, _ = send(t, cb)
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	doer.script(status(http.StatusOK))
	require.Eventually(t, func() bool {
		return cb.State() == gobreaker.StateHalfOpen
	}, time.Second, 10*time.Millisecond)

	resp, err := send(t, cb)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, 0.0, gaugeValue(t, cfg.Name))
}
