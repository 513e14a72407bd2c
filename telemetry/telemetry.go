// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry wires the OpenTelemetry SDK to the Coralogix
// ingestion endpoint based on environment variables.
package telemetry

import (
	"strings"

	"github.com/coralogix-contrib/otelcx/config"
)

// Exporter names accepted by the OTEL_*_EXPORTER variables.
const (
	ExporterOTLP       = "otlp"
	ExporterConsole    = "console"
	ExporterPrometheus = "prometheus"
	ExporterNone       = "none"
)

// OTLP transport protocols accepted by OTEL_EXPORTER_OTLP_PROTOCOL.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config carries every environment variable this package reads. All
// fields are optional; absent variables fall back to the defaults
// applied by [FromEnv].
type Config struct {
	ServiceName      string `config:"OTEL_SERVICE_NAME"`
	ServiceVersion   string `config:"OTEL_SERVICE_VERSION"`
	ServiceNamespace string `config:"OTEL_SERVICE_NAMESPACE"`
	Environment      string `config:"OTEL_DEPLOYMENT_ENVIRONMENT"`
	AppEnvironment   string `config:"APP_ENVIRONMENT"`

	Endpoint string `config:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Protocol string `config:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	Insecure bool   `config:"OTEL_EXPORTER_OTLP_INSECURE"`
	Headers  string `config:"OTEL_EXPORTER_OTLP_HEADERS"`

	ResourceAttrs string `config:"OTEL_RESOURCE_ATTRIBUTES"`

	PrivateKey  string `config:"CORALOGIX_PRIVATE_KEY"`
	Application string `config:"CORALOGIX_APPLICATION_NAME"`
	Subsystem   string `config:"CORALOGIX_SUBSYSTEM_NAME"`

	TracesExporter  string `config:"OTEL_TRACES_EXPORTER"`
	MetricsExporter string `config:"OTEL_METRICS_EXPORTER"`
	LogsExporter    string `config:"OTEL_LOGS_EXPORTER"`

	LogLevel string `config:"OTEL_LOG_LEVEL"`
}

// FromEnv reads a Config from the process environment.
func FromEnv() (Config, error) {
	m, err := config.Read(config.FromEnv())
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	err = m.Unmarshal(&cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// environment resolves the deployment environment, preferring
// OTEL_DEPLOYMENT_ENVIRONMENT over APP_ENVIRONMENT.
func (cfg Config) environment() string {
	if cfg.Environment != "" {
		return cfg.Environment
	}
	return cfg.AppEnvironment
}

func (cfg Config) application() string {
	if cfg.Application != "" {
		return cfg.Application
	}
	return "go-app"
}

func (cfg Config) subsystem() string {
	if cfg.Subsystem != "" {
		return cfg.Subsystem
	}
	return "backend"
}

// exporterFor normalizes an exporter selection, defaulting to OTLP
// when an endpoint is configured and the console exporter otherwise.
func (cfg Config) exporterFor(selected string) string {
	switch strings.ToLower(selected) {
	case ExporterOTLP:
		return ExporterOTLP
	case ExporterConsole, "stdout":
		return ExporterConsole
	case ExporterPrometheus:
		return ExporterPrometheus
	case ExporterNone:
		return ExporterNone
	}
	if cfg.Endpoint != "" {
		return ExporterOTLP
	}
	return ExporterConsole
}

func (cfg Config) useHTTP() bool {
	switch strings.ToLower(cfg.Protocol) {
	case "http", ProtocolHTTP:
		return true
	default:
		return false
	}
}
