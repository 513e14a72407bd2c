// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelcx wires a service to the OpenTelemetry SDK and
// Coralogix ingestion from environment configuration alone.
//
// A single call bootstraps the whole telemetry surface:
//
//	app, err := otelcx.Setup(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown(ctx)
//
// Setup reads OTEL_* and CORALOGIX_* environment variables, installs
// a JSON structured logger as the slog default, configures trace,
// metric and log providers with OTLP exporters, and applies library
// instrumentation for common clients. Telemetry misconfiguration is
// downgraded to console exporters and logged; it never fails the
// host service.
//
// Subpackages cover the rest of the service lifecycle:
//
//   - telemetry: provider and exporter configuration
//   - instrument: library auto-instrumentation registry
//   - gintrace: request span annotation middleware for gin
//   - httpserver: a gin hosted server runtime with health probes
//   - jsonlog: the structured log handler and its fanout
//   - launcher: container entrypoint setup and command wrapping
package otelcx
