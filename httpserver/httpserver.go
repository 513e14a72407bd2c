// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpserver provides a gin hosted HTTP server runtime with
// tracing, health probes and an optional metrics endpoint built in.
package httpserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/coralogix-contrib/otelcx/gintrace"
	"github.com/coralogix-contrib/otelcx/health"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
)

type runtimeOptions struct {
	port        uint
	serviceName string
	logHandler  slog.Handler
	tlsConfig   *tls.Config
	routes      []func(gin.IRouter)
	metrics     http.Handler
	readiness   []health.Metric
	liveness    []health.Metric
	gintraceOpt []gintrace.Option
}

// RuntimeOption configures the Runtime.
type RuntimeOption func(*runtimeOptions)

// ListenOnPort will configure the HTTP server to listen on the given port.
//
// Default port is 8080.
func ListenOnPort(port uint) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.port = port
	}
}

// ServiceName sets the name under which server spans are recorded.
func ServiceName(name string) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.serviceName = name
	}
}

// LogHandler sets the handler backing the runtime logger.
func LogHandler(h slog.Handler) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.logHandler = h
	}
}

// TLSConfig serves TLS with the given config.
func TLSConfig(cfg *tls.Config) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.tlsConfig = cfg
	}
}

// Routes registers application routes on the underlying engine.
func Routes(f func(gin.IRouter)) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.routes = append(ro.routes, f)
	}
}

// MetricsHandler mounts the given handler at GET /metrics.
func MetricsHandler(h http.Handler) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.metrics = h
	}
}

// Readiness adds a metric which must be healthy for the readiness
// probe to succeed.
func Readiness(m health.Metric) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.readiness = append(ro.readiness, m)
	}
}

// Liveness adds a metric which must be healthy for the liveness
// probe to succeed.
func Liveness(m health.Metric) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.liveness = append(ro.liveness, m)
	}
}

// TraceOptions forwards options to the request annotation middleware.
func TraceOptions(opts ...gintrace.Option) RuntimeOption {
	return func(ro *runtimeOptions) {
		ro.gintraceOpt = append(ro.gintraceOpt, opts...)
	}
}

// Runtime is an HTTP server hosting a gin engine.
type Runtime struct {
	port   uint
	listen func(string, string) (net.Listener, error)

	log *slog.Logger

	tlsConfig *tls.Config
	engine    *gin.Engine

	started *health.Binary
	alive   *health.Binary
	ready   *health.Binary
}

// NewRuntime returns a Runtime serving the configured routes along
// with /health/startup, /health/liveness and /health/readiness.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	ros := &runtimeOptions{
		port:        8080,
		serviceName: "server",
		logHandler:  slog.Default().Handler(),
	}
	for _, opt := range opts {
		opt(ros)
	}

	log := slog.New(ros.logHandler)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		otelgin.Middleware(ros.serviceName),
		gintrace.Middleware(append([]gintrace.Option{gintrace.Logger(log)}, ros.gintraceOpt...)...),
	)

	rt := &Runtime{
		port:      ros.port,
		listen:    net.Listen,
		log:       log,
		tlsConfig: ros.tlsConfig,
		engine:    engine,
		started:   &health.Binary{},
		alive:     &health.Binary{},
		ready:     &health.Binary{},
	}

	liveness := health.And(append([]health.Metric{rt.alive}, ros.liveness...)...)
	readiness := health.And(append([]health.Metric{rt.ready}, ros.readiness...)...)

	engine.GET("/health/startup", gin.WrapH(health.NewHandler(rt.started)))
	engine.GET("/health/liveness", gin.WrapH(health.NewHandler(liveness)))
	engine.GET("/health/readiness", gin.WrapH(health.NewHandler(readiness)))

	if ros.metrics != nil {
		engine.GET("/metrics", gin.WrapH(ros.metrics))
	}

	for _, f := range ros.routes {
		f(engine)
	}

	return rt
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (rt *Runtime) Run(ctx context.Context) error {
	ls, err := rt.listen("tcp", fmt.Sprintf(":%d", rt.port))
	if err != nil {
		rt.log.Error("failed to listen for connections", slog.String("error", err.Error()))
		return err
	}
	if rt.tlsConfig != nil {
		ls = tls.NewListener(ls, rt.tlsConfig)
	}

	s := &http.Server{
		Handler: rt.engine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		rt.alive.Set(false)
		rt.ready.Set(false)

		defer rt.log.Info("shut down service")
		rt.log.Info("shutting down service")
		return s.Shutdown(context.Background())
	})
	g.Go(func() error {
		rt.started.Set(true)
		rt.alive.Set(true)
		rt.ready.Set(true)
		rt.log.Info("started service", slog.String("addr", ls.Addr().String()))
		return s.Serve(ls)
	})

	err = g.Wait()
	if err == nil || err == http.ErrServerClosed {
		return nil
	}
	rt.log.Error("service encountered unexpected error", slog.String("error", err.Error()))
	return err
}
