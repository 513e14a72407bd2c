// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package telemetry

// Headers builds the HTTP headers attached to every OTLP export
// request. Pairs from OTEL_EXPORTER_OTLP_HEADERS are applied first;
// the vendor headers override them. The Authorization header is only
// set when a private key is configured.
func Headers(cfg Config) map[string]string {
	headers := ParseAttributes(cfg.Headers)

	if cfg.PrivateKey != "" {
		headers["Authorization"] = "Bearer " + cfg.PrivateKey
	}
	headers["CX-Application-Name"] = cfg.application()
	headers["CX-Subsystem-Name"] = cfg.subsystem()

	return headers
}
