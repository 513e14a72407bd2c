// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelcx

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	t.Run("will bootstrap from the environment", func(t *testing.T) {
		t.Run("if every exporter is disabled", func(t *testing.T) {
			t.Setenv("OTEL_SERVICE_NAME", "checkout")
			t.Setenv("OTEL_TRACES_EXPORTER", "none")
			t.Setenv("OTEL_METRICS_EXPORTER", "none")
			t.Setenv("OTEL_LOGS_EXPORTER", "none")

			prev := slog.Default()
			t.Cleanup(func() { slog.SetDefault(prev) })

			var buf bytes.Buffer
			app, err := Setup(t.Context(), LogOutput(&buf), SkipInstrumentation())
			require.NoError(t, err)

			assert.Equal(t, "checkout", app.Config().ServiceName)
			assert.Nil(t, app.MetricsHandler())

			app.Logger().Info("hello")
			assert.Contains(t, buf.String(), `"message":"hello"`)
			assert.Contains(t, buf.String(), `"logger":"checkout"`)

			assert.NoError(t, app.Shutdown(t.Context()))
		})
	})

	t.Run("will keep the default logger name", func(t *testing.T) {
		t.Run("if no service name is configured", func(t *testing.T) {
			t.Setenv("OTEL_SERVICE_NAME", "")
			t.Setenv("OTEL_TRACES_EXPORTER", "none")
			t.Setenv("OTEL_METRICS_EXPORTER", "none")
			t.Setenv("OTEL_LOGS_EXPORTER", "none")

			prev := slog.Default()
			t.Cleanup(func() { slog.SetDefault(prev) })

			var buf bytes.Buffer
			app, err := Setup(t.Context(), LogOutput(&buf), SkipInstrumentation())
			require.NoError(t, err)
			defer app.Shutdown(t.Context())

			app.Logger().Info("named")
			assert.Contains(t, buf.String(), `"logger":"app"`)
		})
	})

	t.Run("will install the default logger", func(t *testing.T) {
		t.Run("if setup succeeds", func(t *testing.T) {
			t.Setenv("OTEL_TRACES_EXPORTER", "none")
			t.Setenv("OTEL_METRICS_EXPORTER", "none")
			t.Setenv("OTEL_LOGS_EXPORTER", "none")

			prev := slog.Default()
			t.Cleanup(func() { slog.SetDefault(prev) })

			var buf bytes.Buffer
			app, err := Setup(t.Context(), LogOutput(&buf), SkipInstrumentation())
			require.NoError(t, err)
			defer app.Shutdown(t.Context())

			assert.Same(t, app.Logger(), slog.Default())
		})
	})

	t.Run("will honor the log level", func(t *testing.T) {
		t.Run("if OTEL_LOG_LEVEL is set", func(t *testing.T) {
			t.Setenv("OTEL_LOG_LEVEL", "ERROR")
			t.Setenv("OTEL_TRACES_EXPORTER", "none")
			t.Setenv("OTEL_METRICS_EXPORTER", "none")
			t.Setenv("OTEL_LOGS_EXPORTER", "none")

			prev := slog.Default()
			t.Cleanup(func() { slog.SetDefault(prev) })

			var buf bytes.Buffer
			app, err := Setup(t.Context(), LogOutput(&buf), SkipInstrumentation())
			require.NoError(t, err)
			defer app.Shutdown(t.Context())

			app.Logger().Info("dropped")
			app.Logger().Error("kept")

			assert.NotContains(t, buf.String(), "dropped")
			assert.Contains(t, buf.String(), "kept")
		})
	})
}

func TestConfigError(t *testing.T) {
	cause := errors.New("kaput")
	err := ConfigError{Cause: cause}

	assert.Contains(t, err.Error(), "kaput")
	assert.ErrorIs(t, err, cause)
}
