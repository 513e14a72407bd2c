// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coralogix-contrib/otelcx/lifecycle"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Configurator installs the process-global trace, metric and log
// providers. Each signal transitions from unconfigured to configured
// at most once per Configurator; a signal whose global provider is
// already an SDK provider is treated as configured by an external
// bootstrap path and left alone.
//
// Exporter construction failures never propagate: the signal falls
// back to a console exporter so the application still starts.
type Configurator struct {
	cfg Config
	log *slog.Logger

	mu             sync.Mutex
	traceDone      bool
	metricDone     bool
	logDone        bool
	shutdowns      []lifecycle.Hook
	metricsHandler http.Handler
}

// ConfiguratorOption configures a [Configurator].
type ConfiguratorOption func(*Configurator)

// WithLogger sets the logger used to report configuration progress
// and exporter fallbacks.
func WithLogger(log *slog.Logger) ConfiguratorOption {
	return func(c *Configurator) {
		c.log = log
	}
}

// NewConfigurator returns a Configurator for the given config.
func NewConfigurator(cfg Config, opts ...ConfiguratorOption) *Configurator {
	c := &Configurator{
		cfg: cfg,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure installs providers for every signal that is not already
// configured. It is safe to call multiple times; repeated calls are
// no-ops. Configure never fails: misconfiguration disables telemetry,
// it does not prevent application startup.
func (c *Configurator) Configure(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	c.configureTraces(ctx)
	c.configureMetrics(ctx)
	c.configureLogs(ctx)
}

// Shutdown flushes and stops every provider this Configurator
// installed.
func (c *Configurator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	hooks := make([]lifecycle.Hook, len(c.shutdowns))
	copy(hooks, c.shutdowns)
	c.mu.Unlock()

	return lifecycle.MultiHook(hooks...).Run(ctx)
}

// MetricsHandler returns the HTTP handler for the /metrics endpoint
// when the prometheus metric exporter is configured, otherwise nil.
func (c *Configurator) MetricsHandler() http.Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metricsHandler
}

func (c *Configurator) configureTraces(ctx context.Context) {
	if c.traceDone {
		return
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		c.log.Info("tracer provider already configured, skipping")
		c.traceDone = true
		return
	}

	selected := c.cfg.exporterFor(c.cfg.TracesExporter)
	if selected == ExporterNone {
		c.traceDone = true
		return
	}

	exporter := c.spanExporter(ctx, selected)
	if exporter == nil {
		return
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(Resource(c.cfg)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	c.shutdowns = append(c.shutdowns, lifecycle.HookFunc(tp.Shutdown))
	c.traceDone = true
	c.log.Info("tracer provider configured", slog.String("exporter", selected))
}

func (c *Configurator) spanExporter(ctx context.Context, selected string) sdktrace.SpanExporter {
	if selected == ExporterOTLP {
		exporter, err := newSpanExporter(ctx, c.cfg)
		if err == nil {
			return exporter
		}
		c.log.Error("failed to create otlp span exporter, falling back to console",
			slog.String("error", err.Error()))
	}

	exporter, err := stdouttrace.New()
	if err != nil {
		c.log.Error("failed to create console span exporter", slog.String("error", err.Error()))
		return nil
	}
	return exporter
}

func (c *Configurator) configureMetrics(ctx context.Context) {
	if c.metricDone {
		return
	}
	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); ok {
		c.log.Info("meter provider already configured, skipping")
		c.metricDone = true
		return
	}

	selected := c.cfg.exporterFor(c.cfg.MetricsExporter)
	if selected == ExporterNone {
		c.metricDone = true
		return
	}

	reader := c.metricReader(ctx, selected)
	if reader == nil {
		return
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(Resource(c.cfg)),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	c.shutdowns = append(c.shutdowns, lifecycle.HookFunc(mp.Shutdown))
	c.metricDone = true
	c.log.Info("meter provider configured", slog.String("exporter", selected))
}

func (c *Configurator) metricReader(ctx context.Context, selected string) sdkmetric.Reader {
	switch selected {
	case ExporterPrometheus:
		exporter, err := otelprom.New()
		if err != nil {
			c.log.Error("failed to create prometheus exporter, falling back to console",
				slog.String("error", err.Error()))
			break
		}
		c.metricsHandler = promhttp.Handler()
		return exporter
	case ExporterOTLP:
		exporter, err := newMetricExporter(ctx, c.cfg)
		if err == nil {
			return sdkmetric.NewPeriodicReader(exporter)
		}
		c.log.Error("failed to create otlp metric exporter, falling back to console",
			slog.String("error", err.Error()))
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		c.log.Error("failed to create console metric exporter", slog.String("error", err.Error()))
		return nil
	}
	return sdkmetric.NewPeriodicReader(exporter)
}

func (c *Configurator) configureLogs(ctx context.Context) {
	if c.logDone {
		return
	}
	if _, ok := global.GetLoggerProvider().(*sdklog.LoggerProvider); ok {
		c.log.Info("logger provider already configured, skipping")
		c.logDone = true
		return
	}

	selected := c.cfg.exporterFor(c.cfg.LogsExporter)
	if selected == ExporterNone {
		c.logDone = true
		return
	}

	exporter := c.logExporter(ctx, selected)
	if exporter == nil {
		return
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(Resource(c.cfg)),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp)

	c.shutdowns = append(c.shutdowns, lifecycle.HookFunc(lp.Shutdown))
	c.logDone = true
	c.log.Info("logger provider configured", slog.String("exporter", selected))
}

func (c *Configurator) logExporter(ctx context.Context, selected string) sdklog.Exporter {
	if selected == ExporterOTLP {
		exporter, err := newLogExporter(ctx, c.cfg)
		if err == nil {
			return exporter
		}
		c.log.Error("failed to create otlp log exporter, falling back to console",
			slog.String("error", err.Error()))
	}

	exporter, err := stdoutlog.New()
	if err != nil {
		c.log.Error("failed to create console log exporter", slog.String("error", err.Error()))
		return nil
	}
	return exporter
}
