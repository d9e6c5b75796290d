package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func testClientConfig() Config {
	return Config{Timeout: 5 * time.Second, MaxConnsPerHost: 4, UserAgent: "storefront-test"}
}

func getRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := NewJSONRequest(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 32, cfg.MaxConnsPerHost)
	assert.Equal(t, "hoodiewala-storefront", cfg.UserAgent)
}

func TestNewJSONRequest(t *testing.T) {
	t.Run("without body", func(t *testing.T) {
		req, err := NewJSONRequest(context.Background(), http.MethodGet, "http://backend/hoodies", nil)
		require.NoError(t, err)
		assert.Equal(t, "application/json", req.Header.Get("Accept"))
		assert.Empty(t, req.Header.Get("Content-Type"))
		assert.Equal(t, http.NoBody, req.Body)
	})

	t.Run("with body", func(t *testing.T) {
		msg := map[string]string{"name": "Asha", "email": "asha@example.com", "message": "XL restock?"}
		req, err := NewJSONRequest(context.Background(), http.MethodPost, "http://backend/contact", msg)
		require.NoError(t, err)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Asha","email":"asha@example.com","message":"XL restock?"}`, string(raw))
	})

	t.Run("unencodable body", func(t *testing.T) {
		_, err := NewJSONRequest(context.Background(), http.MethodPost, "http://backend/contact", make(chan int))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encode POST")
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := NewJSONRequest(context.Background(), http.MethodGet, "://bad", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create GET request")
	})
}

func TestDo_SetsUserAgentUnlessPresent(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
	}))
	defer server.Close()
	c := New(testClientConfig())

	resp, err := c.Do(context.Background(), getRequest(t, server.URL))
	require.NoError(t, err)
	DrainAndClose(resp)
	assert.Equal(t, "storefront-test", got.Load())

	req := getRequest(t, server.URL)
	req.Header.Set("User-Agent", "probe")
	resp, err = c.Do(context.Background(), req)
	require.NoError(t, err)
	DrainAndClose(resp)
	assert.Equal(t, "probe", got.Load())
}

func TestDo_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var traceparent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent.Store(r.Header.Get("traceparent"))
	}))
	defer server.Close()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	resp, err := New(testClientConfig()).Do(ctx, getRequest(t, server.URL))
	require.NoError(t, err)
	DrainAndClose(resp)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", traceparent.Load())
}

func TestDo_ServerErrorIsAResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp, err := New(testClientConfig()).Do(context.Background(), getRequest(t, server.URL))
	require.NoError(t, err)
	defer DrainAndClose(resp)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "no retry")
}

func TestDo_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(testClientConfig()).Do(context.Background(), getRequest(t, url+"/hoodies"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET "+url+"/hoodies")
}

func TestDo_DeadlineFromCaller(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(testClientConfig()).Do(ctx, getRequest(t, server.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsSuccess(t *testing.T) {
	for status, want := range map[int]bool{
		199: false, 200: true, 201: true, 204: true, 299: true,
		304: false, 404: false, 409: false, 502: false,
	} {
		assert.Equal(t, want, IsSuccess(status), "status %d", status)
	}
}

func TestDrainAndClose(t *testing.T) {
	assert.NotPanics(t, func() { DrainAndClose(nil) })
	assert.NotPanics(t, func() { DrainAndClose(&http.Response{}) })

	body := &trackingBody{}
	DrainAndClose(&http.Response{Body: body})
	assert.True(t, body.closed)
}

type trackingBody struct {
	closed bool
}

func (b *trackingBody) Read([]byte) (int, error) { return 0, io.EOF }

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}
