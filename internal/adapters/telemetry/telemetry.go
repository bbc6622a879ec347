// Package telemetry installs the OpenTelemetry tracer and meter providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects what gets exported.
type Config struct {
	ServiceName  string
	Environment  string
	OTLPEndpoint string // full URL, e.g. http://collector:4318; empty disables trace export
}

// Provider owns the installed SDK providers.
type Provider struct {
	traces *sdktrace.TracerProvider
	meters *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// Setup installs global providers. Metrics are always collected in-process
// for the stats endpoint; traces are exported only when an endpoint is set.
// PRE: cfg.ServiceName is non-empty
// POST: otel globals point at the returned provider; call Shutdown on exit
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	)

	p := &Provider{reader: sdkmetric.NewManualReader()}
	p.meters = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(p.reader),
	)
	otel.SetMeterProvider(p.meters)

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		p.traces = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(p.traces)
		slog.Info("telemetry_event", "event", "trace_export_enabled", "endpoint", cfg.OTLPEndpoint)
	}
	return p, nil
}

// Counters collects every int64 sum as "name{k=v,...}" -> value.
func (p *Provider) Counters(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[seriesKey(m.Name, dp.Attributes)] += dp.Value
			}
		}
	}
	return out, nil
}

func seriesKey(name string, attrs attribute.Set) string {
	if attrs.Len() == 0 {
		return name
	}
	parts := make([]string, 0, attrs.Len())
	for _, kv := range attrs.ToSlice() {
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
	}
	errs = append(errs, p.meters.Shutdown(ctx))
	return errors.Join(errs...)
}
