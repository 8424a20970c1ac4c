package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInitialize_Disabled(t *testing.T) {
	tel, err := Initialize(context.Background(), Config{ServiceName: "test"})
	require.NoError(t, err)
	assert.Nil(t, tel.TracerProvider)
	assert.Nil(t, tel.MeterProvider)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	params := func(id byte) sdktrace.SamplingParameters {
		return sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       trace.TraceID{id, id, id, id, id, id, id, id, id, id, id, id, id, id, id, id},
			Name:          "op",
		}
	}

	for _, ratio := range []float64{0, 1, 2} {
		assert.Equal(t, sdktrace.RecordAndSample, sampler(ratio).ShouldSample(params(0xff)).Decision)
	}

	half := sampler(0.5)
	assert.Equal(t, sdktrace.RecordAndSample, half.ShouldSample(params(0x00)).Decision)
	assert.Equal(t, sdktrace.Drop, half.ShouldSample(params(0xff)).Decision)
}

func TestSpanAttributes(t *testing.T) {
	assert.Equal(t, "photo.key", string(PhotoKey("history/a.jpg").Key))
	assert.Equal(t, "photo.prefix", string(PhotoPrefix("history/").Key))
	assert.Equal(t, "guestbook.entry_id", string(EntryID("e1").Key))
	assert.Equal(t, "timeline.session_id", string(SessionID("s1").Key))
	assert.Equal(t, int64(1500), Duration(1500*time.Millisecond).Value.AsInt64())
}
