package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func sampledSpanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("b7ad6b7169203331")
	require.NoError(t, err)
	return trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
}

func TestWithContext(t *testing.T) {
	tests := []struct {
		name    string
		ctx     func(t *testing.T) context.Context
		want    map[string]string
		missing []string
	}{
		{
			name:    "empty context adds nothing",
			ctx:     func(*testing.T) context.Context { return context.Background() },
			missing: []string{"correlation_id", "session_id", "trace_id", "span_id"},
		},
		{
			name: "correlation only",
			ctx: func(*testing.T) context.Context {
				return WithCorrelationID(context.Background(), "corr-1")
			},
			want:    map[string]string{"correlation_id": "corr-1"},
			missing: []string{"session_id", "trace_id"},
		},
		{
			name: "session only",
			ctx: func(*testing.T) context.Context {
				return WithSessionID(context.Background(), "3c0e3f6a-1b7e-4f63-9a55-0f7c2a9d4e10")
			},
			want:    map[string]string{"session_id": "3c0e3f6a-1b7e-4f63-9a55-0f7c2a9d4e10"},
			missing: []string{"correlation_id"},
		},
		{
			name: "everything",
			ctx: func(t *testing.T) context.Context {
				ctx := sampledSpanContext(t)
				ctx = WithCorrelationID(ctx, "corr-2")
				return WithSessionID(ctx, "sess-2")
			},
			want: map[string]string{
				"correlation_id": "corr-2",
				"session_id":     "sess-2",
				"trace_id":       "0af7651916cd43dd8448eb211c80319c",
				"span_id":        "b7ad6b7169203331",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			WithContext(tc.ctx(t), NewWithWriter("storefront", "info", &buf)).Info("contact submitted")

			line := decodeLine(t, &buf)
			for k, v := range tc.want {
				assert.Equal(t, v, line[k], k)
			}
			for _, k := range tc.missing {
				assert.NotContains(t, line, k)
			}
		})
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationIDFromContext(ctx))
	assert.Empty(t, SessionIDFromContext(ctx))

	ctx = WithSessionID(WithCorrelationID(ctx, "corr"), "sess")
	assert.Equal(t, "corr", CorrelationIDFromContext(ctx))
	assert.Equal(t, "sess", SessionIDFromContext(ctx))
}

func TestFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := slog.New(slog.DiscardHandler)
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("storefront", "warn", &buf)

	l.Info("catalog loaded")
	assert.Zero(t, buf.Len(), "info is below warn")

	l.Warn("catalog load failed")
	line := decodeLine(t, &buf)
	assert.Equal(t, "storefront", line["service"])
	assert.Equal(t, "WARN", line["level"])
	assert.NotContains(t, line, "source", "source is only added at debug")
}
