package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"

	"github.com/giantswarm/oauth2-ebay/instrumentation"
)

// telemetryShutdownTimeout bounds the final flush of spans and metrics.
const telemetryShutdownTimeout = 5 * time.Second

// telemetry is set when --telemetry is given; nil keeps the provider's
// no-op instrumentation.
var telemetry *instrumentation.Instrumentation

// newTelemetry returns instrumentation that writes spans as they end and
// metrics on shutdown to w.
func newTelemetry(w io.Writer, version string) (*instrumentation.Instrumentation, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	return instrumentation.New(instrumentation.Config{
		ServiceName:    "ebay-oauth",
		ServiceVersion: version,
		Enabled:        true,
		SpanExporter:   traceExporter,
		MetricExporter: metricExporter,
	})
}

func shutdownTelemetry() {
	if telemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := telemetry.Shutdown(ctx); err != nil {
		logger.Warn("Failed to flush telemetry", "error", err)
	}
}
