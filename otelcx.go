// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelcx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/coralogix-contrib/otelcx/instrument"
	"github.com/coralogix-contrib/otelcx/jsonlog"
	"github.com/coralogix-contrib/otelcx/lifecycle"
	"github.com/coralogix-contrib/otelcx/telemetry"
)

type setupOptions struct {
	logOutput    io.Writer
	registry     *instrument.Registry
	skipRegistry bool
}

// Option configures Setup.
type Option func(*setupOptions)

// LogOutput sets where the default structured logger writes.
//
// Default is os.Stderr.
func LogOutput(w io.Writer) Option {
	return func(so *setupOptions) {
		so.logOutput = w
	}
}

// Registry replaces the instrumentation registry applied during
// setup.
func Registry(r *instrument.Registry) Option {
	return func(so *setupOptions) {
		so.registry = r
	}
}

// SkipInstrumentation leaves library instrumentation untouched.
func SkipInstrumentation() Option {
	return func(so *setupOptions) {
		so.skipRegistry = true
	}
}

// App holds everything Setup wired together.
type App struct {
	cfg      telemetry.Config
	log      *slog.Logger
	metrics  http.Handler
	shutdown lifecycle.Hook
}

// Config returns the telemetry configuration read from the
// environment.
func (a *App) Config() telemetry.Config {
	return a.cfg
}

// Logger returns the structured logger installed as the slog
// default.
func (a *App) Logger() *slog.Logger {
	return a.log
}

// MetricsHandler returns the scrape handler when the metrics
// exporter is prometheus, nil otherwise.
func (a *App) MetricsHandler() http.Handler {
	return a.metrics
}

// Shutdown flushes and stops every telemetry provider Setup
// started.
func (a *App) Shutdown(ctx context.Context) error {
	return a.shutdown.Run(ctx)
}

// Setup bootstraps telemetry for the current process: it reads the
// environment configuration, installs the structured default logger,
// configures trace, metric and log providers, and applies library
// instrumentation. Exporter misconfiguration is downgraded and
// logged, never returned; only an unreadable environment fails.
func Setup(ctx context.Context, opts ...Option) (*App, error) {
	so := &setupOptions{
		logOutput: os.Stderr,
	}
	for _, opt := range opts {
		opt(so)
	}

	cfg, err := telemetry.FromEnv()
	if err != nil {
		return nil, ConfigError{Cause: err}
	}

	logOpts := []jsonlog.Option{
		jsonlog.MinLevel(jsonlog.Level(cfg.LogLevel)),
	}
	if cfg.ServiceName != "" {
		logOpts = append(logOpts, jsonlog.LoggerName(cfg.ServiceName))
	}
	log := slog.New(jsonlog.New(so.logOutput, logOpts...))
	slog.SetDefault(log)

	c := telemetry.NewConfigurator(cfg, telemetry.WithLogger(log))
	c.Configure(ctx)

	if !so.skipRegistry {
		registry := so.registry
		if registry == nil {
			registry = instrument.NewRegistry(instrument.Logger(log))
		}
		registry.Apply(ctx)
	}

	return &App{
		cfg:      cfg,
		log:      log,
		metrics:  c.MetricsHandler(),
		shutdown: lifecycle.HookFunc(c.Shutdown),
	}, nil
}

// ConfigError represents a process environment which could not be
// read into the telemetry configuration.
type ConfigError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigError) Error() string {
	return fmt.Sprintf("failed to read config from environment: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigError) Unwrap() error {
	return e.Cause
}
