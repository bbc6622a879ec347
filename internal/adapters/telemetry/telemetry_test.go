package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"accesspanel/internal/adapters/telemetry"
)

func TestSetup_CollectsCounters(t *testing.T) {
	ctx := context.Background()
	p, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "accesspanel-test"})
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(ctx) })

	counter, err := otel.Meter("test").Int64Counter("scans_total")
	require.NoError(t, err)
	counter.Add(ctx, 2, metric.WithAttributes(attribute.String("outcome", "success")))
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))

	got, err := p.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got["scans_total{outcome=success}"])
	assert.Equal(t, int64(1), got["scans_total{outcome=error}"])
}

func TestShutdown_WithoutTraceExport(t *testing.T) {
	ctx := context.Background()
	p, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "accesspanel-test"})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(ctx))
}
