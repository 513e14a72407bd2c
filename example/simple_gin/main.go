// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/coralogix-contrib/otelcx"
	"github.com/coralogix-contrib/otelcx/httpserver"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	app, err := otelcx.Setup(ctx)
	if err != nil {
		slog.Error("failed to set up telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer app.Shutdown(context.Background())

	rt := httpserver.NewRuntime(
		httpserver.ListenOnPort(8080),
		httpserver.ServiceName(app.Config().ServiceName),
		httpserver.LogHandler(app.Logger().Handler()),
		httpserver.MetricsHandler(app.MetricsHandler()),
		httpserver.Routes(func(r gin.IRouter) {
			r.GET("/hello", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "Hello, world"})
			})
		}),
	)

	if err := rt.Run(ctx); err != nil {
		app.Logger().Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
