// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package instrument activates library instrumentation for commonly
// used clients and runtimes. Each integration probes whether its
// target is present and applies itself inside a failure boundary, so
// a broken integration never blocks the remaining ones.
package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coralogix-contrib/otelcx/config"
)

// Integration instruments a single library or runtime concern.
type Integration interface {
	// Name identifies the integration. It also derives the env
	// toggle which can disable it: OTEL_GO_<NAME>_INSTRUMENT.
	Name() string

	// Installed reports whether the integration target is present
	// and not yet instrumented.
	Installed() bool

	// Instrument applies the instrumentation.
	Instrument(ctx context.Context) error
}

// Registry holds integrations and applies them best-effort.
type Registry struct {
	log          *slog.Logger
	integrations []Integration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// Logger sets the logger used to report integration outcomes.
func Logger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

// Integrations appends integrations to the registry.
func Integrations(is ...Integration) RegistryOption {
	return func(r *Registry) {
		r.integrations = append(r.integrations, is...)
	}
}

// NewRegistry returns a registry preloaded with the built-in
// integrations.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		log: slog.Default(),
		integrations: []Integration{
			httpClient{},
			grpcClient{},
			sqlDriver{},
			goRuntime{},
			logBridge{},
			kafka{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnabledEnvVar disables the whole registry when set to anything
// other than "true".
const EnabledEnvVar = "OTEL_GO_INSTRUMENTATION_ENABLED"

// Apply runs every enabled and installed integration. Failures and
// panics are logged per integration and never stop the remaining
// ones.
func (r *Registry) Apply(ctx context.Context) {
	if !config.Enabled(EnabledEnvVar, true) {
		r.log.Debug("instrumentation disabled by environment")
		return
	}

	for _, i := range r.integrations {
		log := r.log.With(slog.String("integration", i.Name()))

		if !config.Enabled(ToggleName(i.Name()), true) {
			log.Debug("instrumentation disabled by environment")
			continue
		}
		if !i.Installed() {
			log.Debug("instrumentation target not present")
			continue
		}

		if err := r.apply(ctx, i); err != nil {
			log.Warn("failed to instrument", slog.String("error", err.Error()))
			continue
		}
		log.Debug("instrumented")
	}
}

func (r *Registry) apply(ctx context.Context, i Integration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("instrument panicked: %v", rec)
		}
	}()

	return i.Instrument(ctx)
}

// ToggleName returns the environment variable which disables the
// named integration when set to anything other than "true".
func ToggleName(name string) string {
	return "OTEL_GO_" + strings.ToUpper(name) + "_INSTRUMENT"
}
