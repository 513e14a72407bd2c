// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func hasScheme(endpoint string) bool {
	return strings.Contains(endpoint, "://")
}

// newSpanExporter creates an OTLP span exporter for the configured
// endpoint, protocol and vendor headers.
func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	headers := Headers(cfg)

	if cfg.useHTTP() {
		opts := []otlptracehttp.Option{otlptracehttp.WithHeaders(headers)}
		if hasScheme(cfg.Endpoint) {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
			if cfg.Insecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithHeaders(headers)}
	if hasScheme(cfg.Endpoint) {
		opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
	}
	return otlptracegrpc.New(ctx, opts...)
}

// newMetricExporter creates an OTLP metric exporter for the
// configured endpoint, protocol and vendor headers.
func newMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	headers := Headers(cfg)

	if cfg.useHTTP() {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithHeaders(headers)}
		if hasScheme(cfg.Endpoint) {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
			if cfg.Insecure {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			}
		}
		return otlpmetrichttp.New(ctx, opts...)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithHeaders(headers)}
	if hasScheme(cfg.Endpoint) {
		opts = append(opts, otlpmetricgrpc.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

// newLogExporter creates an OTLP log exporter for the configured
// endpoint, protocol and vendor headers.
func newLogExporter(ctx context.Context, cfg Config) (sdklog.Exporter, error) {
	headers := Headers(cfg)

	if cfg.useHTTP() {
		opts := []otlploghttp.Option{otlploghttp.WithHeaders(headers)}
		if hasScheme(cfg.Endpoint) {
			opts = append(opts, otlploghttp.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlploghttp.WithEndpoint(cfg.Endpoint))
			if cfg.Insecure {
				opts = append(opts, otlploghttp.WithInsecure())
			}
		}
		return otlploghttp.New(ctx, opts...)
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithHeaders(headers)}
	if hasScheme(cfg.Endpoint) {
		opts = append(opts, otlploggrpc.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlploggrpc.WithEndpoint(cfg.Endpoint))
		if cfg.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
	}
	return otlploggrpc.New(ctx, opts...)
}
