// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// resetProviders restores the global providers to noop implementations
// so each test observes an unconfigured process.
func resetProviders(t *testing.T) {
	t.Helper()

	prevTracer := otel.GetTracerProvider()
	prevMeter := otel.GetMeterProvider()
	prevLogger := global.GetLoggerProvider()

	otel.SetTracerProvider(tracenoop.NewTracerProvider())
	otel.SetMeterProvider(metricnoop.NewMeterProvider())
	global.SetLoggerProvider(lognoop.NewLoggerProvider())

	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
		global.SetLoggerProvider(prevLogger)
	})
}

func TestConfigurator_Configure(t *testing.T) {
	t.Run("will configure every signal once", func(t *testing.T) {
		t.Run("if no endpoint is configured", func(t *testing.T) {
			resetProviders(t)

			c := NewConfigurator(Config{}, WithLogger(slog.Default()))
			c.Configure(context.Background())

			assert.True(t, c.traceDone)
			assert.True(t, c.metricDone)
			assert.True(t, c.logDone)
			assert.Len(t, c.shutdowns, 3)

			require.NoError(t, c.Shutdown(context.Background()))
		})
	})

	t.Run("will not duplicate exporters", func(t *testing.T) {
		t.Run("if Configure is called twice", func(t *testing.T) {
			resetProviders(t)

			c := NewConfigurator(Config{})
			c.Configure(context.Background())
			c.Configure(context.Background())

			assert.Len(t, c.shutdowns, 3)

			require.NoError(t, c.Shutdown(context.Background()))
		})
	})

	t.Run("will skip a signal", func(t *testing.T) {
		t.Run("if the global provider was configured by an external path", func(t *testing.T) {
			resetProviders(t)

			external := sdktrace.NewTracerProvider()
			t.Cleanup(func() {
				_ = external.Shutdown(context.Background())
			})
			otel.SetTracerProvider(external)

			c := NewConfigurator(Config{})
			c.Configure(context.Background())

			assert.True(t, c.traceDone)
			assert.Same(t, external, otel.GetTracerProvider())
			// metrics and logs still get installed
			assert.Len(t, c.shutdowns, 2)

			require.NoError(t, c.Shutdown(context.Background()))
		})

		t.Run("if the signal exporter is set to none", func(t *testing.T) {
			resetProviders(t)

			c := NewConfigurator(Config{
				TracesExporter:  ExporterNone,
				MetricsExporter: ExporterNone,
				LogsExporter:    ExporterNone,
			})
			c.Configure(context.Background())

			assert.Empty(t, c.shutdowns)
		})
	})

	t.Run("will expose a metrics handler", func(t *testing.T) {
		t.Run("if the prometheus exporter is selected", func(t *testing.T) {
			resetProviders(t)

			c := NewConfigurator(Config{
				TracesExporter:  ExporterNone,
				LogsExporter:    ExporterNone,
				MetricsExporter: ExporterPrometheus,
			})
			c.Configure(context.Background())

			assert.NotNil(t, c.MetricsHandler())

			require.NoError(t, c.Shutdown(context.Background()))
		})
	})

	t.Run("will never fail startup", func(t *testing.T) {
		t.Run("if the otlp endpoint is malformed", func(t *testing.T) {
			resetProviders(t)

			c := NewConfigurator(Config{
				Endpoint: "::not-a-url::",
				Protocol: ProtocolHTTP,
			})
			c.Configure(context.Background())

			// Exporter construction is lazy, so a bogus endpoint
			// still configures every signal; it only surfaces later
			// as export errors. No flush is attempted here since it
			// would hit the unreachable host.
			assert.True(t, c.traceDone)
			assert.True(t, c.metricDone)
			assert.True(t, c.logDone)
			assert.Len(t, c.shutdowns, 3)
		})
	})
}

func TestConfig_exporterFor(t *testing.T) {
	t.Run("will default to otlp", func(t *testing.T) {
		t.Run("if an endpoint is configured", func(t *testing.T) {
			cfg := Config{Endpoint: "https://ingress.coralogix.com:443"}
			assert.Equal(t, ExporterOTLP, cfg.exporterFor(""))
		})
	})

	t.Run("will default to console", func(t *testing.T) {
		t.Run("if no endpoint is configured", func(t *testing.T) {
			assert.Equal(t, ExporterConsole, Config{}.exporterFor(""))
		})
	})

	t.Run("will honor an explicit selection", func(t *testing.T) {
		t.Run("if the selection names a known exporter", func(t *testing.T) {
			cfg := Config{Endpoint: "https://ingress.coralogix.com:443"}
			assert.Equal(t, ExporterConsole, cfg.exporterFor("stdout"))
			assert.Equal(t, ExporterNone, cfg.exporterFor("none"))
			assert.Equal(t, ExporterPrometheus, cfg.exporterFor("prometheus"))
		})
	})
}
