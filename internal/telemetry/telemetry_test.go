package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:     false,
		ServiceName: "streamcheck",
		Exporter:    "grpc",
	})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	tracer := otel.Tracer("test")
	_, span := tracer.Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestNewProvider_NoopExporter(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:     true,
		ServiceName: "streamcheck",
		Exporter:    "noop",
	})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:  true,
		Exporter: "carrier-pigeon",
	})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: carrier-pigeon (supported: grpc, http, noop)", err.Error())
}

func TestShutdown_NoopProvider(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestTracer(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	tracer := Tracer("streamcheck.engine")
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "probe")
	span.End()
}
