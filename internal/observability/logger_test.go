package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("loud"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test", LevelInfo, FormatText, &buf)

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.WithFields(map[string]interface{}{"b": 2, "a": 1}).Warn("slow listing")
	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "[WARN] logger_test.go:")
	assert.True(t, strings.HasSuffix(line, "slow listing a=1 b=2"), line)
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger("weddingcard", LevelDebug, FormatJSON, &buf)
	derived := base.WithField("error", errors.New("denied"))

	derived.Error("listing failed")
	base.Info("unchanged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "weddingcard", entry["service"])
	assert.Equal(t, "listing failed", entry["msg"])
	assert.Equal(t, "denied", entry["error"])

	entry = map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.NotContains(t, entry, "error")
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test", LevelInfo, FormatText, &buf)

	assert.Same(t, l, l.WithContext(context.Background()))

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	l.WithContext(ctx).Info("traced")
	assert.Contains(t, buf.String(), "trace_id="+span.SpanContext().TraceID().String())
}

func TestConfigure(t *testing.T) {
	prev := GetLogger()
	defer func() {
		defaultMu.Lock()
		defaultLogger = prev
		defaultMu.Unlock()
	}()

	var buf bytes.Buffer
	Configure("test", LevelWarn, FormatText, &buf)
	Info("dropped")
	WithField("key", "history/a.jpg").Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept key=history/a.jpg")
}
