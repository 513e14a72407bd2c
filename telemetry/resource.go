// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

import (
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ParseAttributes parses a comma separated list of key=value pairs,
// the format used by OTEL_RESOURCE_ATTRIBUTES and
// OTEL_EXPORTER_OTLP_HEADERS. Segments without an equals sign are
// silently skipped. Keys and values are trimmed of whitespace.
func ParseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	if s == "" {
		return attrs
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		attrs[k] = strings.TrimSpace(v)
	}
	return attrs
}

// ResourceAttributes merges the attribute mapping which identifies
// the running service. Precedence, lowest to highest: fixed defaults,
// OTEL_RESOURCE_ATTRIBUTES pairs, explicitly named variables.
func ResourceAttributes(cfg Config) map[string]string {
	attrs := map[string]string{
		"service.name":           "go-application",
		"service.namespace":      "default",
		"service.version":        "1.0.0",
		"deployment.environment": "development",
		"coralogix.application":  "go-app",
		"coralogix.subsystem":    "backend",
	}

	for k, v := range ParseAttributes(cfg.ResourceAttrs) {
		attrs[k] = v
	}

	setNonEmpty(attrs, "service.name", cfg.ServiceName)
	setNonEmpty(attrs, "service.namespace", cfg.ServiceNamespace)
	setNonEmpty(attrs, "service.version", cfg.ServiceVersion)
	setNonEmpty(attrs, "deployment.environment", cfg.environment())
	setNonEmpty(attrs, "coralogix.application", cfg.Application)
	setNonEmpty(attrs, "coralogix.subsystem", cfg.Subsystem)

	return attrs
}

func setNonEmpty(attrs map[string]string, key, value string) {
	if value == "" {
		return
	}
	attrs[key] = value
}

// Resource builds the OpenTelemetry resource shared by every
// provider this package configures.
func Resource(cfg Config) *resource.Resource {
	attrs := ResourceAttributes(cfg)

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		kvs = append(kvs, attribute.String(k, attrs[k]))
	}
	return resource.NewSchemaless(kvs...)
}
