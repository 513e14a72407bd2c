// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package instrument

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/XSAM/otelsql"
	"github.com/coralogix-contrib/otelcx/jsonlog"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"google.golang.org/grpc/stats"
)

// httpClient wraps the default HTTP transport so every outbound
// request made through http.DefaultClient carries trace context.
type httpClient struct{}

func (httpClient) Name() string { return "httpclient" }

func (httpClient) Installed() bool {
	_, wrapped := http.DefaultTransport.(*otelhttp.Transport)
	return !wrapped
}

func (httpClient) Instrument(ctx context.Context) error {
	http.DefaultTransport = otelhttp.NewTransport(http.DefaultTransport)
	return nil
}

var (
	grpcOnce          sync.Once
	grpcServerHandler stats.Handler
	grpcClientHandler stats.Handler
)

func initGRPCHandlers() {
	grpcOnce.Do(func() {
		grpcServerHandler = otelgrpc.NewServerHandler()
		grpcClientHandler = otelgrpc.NewClientHandler()
	})
}

// GRPCServerHandler returns a stats handler for grpc.StatsHandler
// which records server spans and metrics.
func GRPCServerHandler() stats.Handler {
	initGRPCHandlers()
	return grpcServerHandler
}

// GRPCClientHandler returns a stats handler for
// grpc.WithStatsHandler which records client spans and metrics.
func GRPCClientHandler() stats.Handler {
	initGRPCHandlers()
	return grpcClientHandler
}

// grpcClient prepares the shared gRPC stats handlers so dial and
// server options constructed later reuse them.
type grpcClient struct{}

func (grpcClient) Name() string { return "grpc" }

func (grpcClient) Installed() bool { return true }

func (grpcClient) Instrument(ctx context.Context) error {
	initGRPCHandlers()
	return nil
}

// SQLDriverEnvVar names the driver to wrap with query tracing.
const SQLDriverEnvVar = "OTEL_GO_SQL_DRIVER"

var (
	sqlMu         sync.Mutex
	sqlDriverName string
)

// SQLDriverName returns the name of the instrumented database/sql
// driver, or "" if the sql integration has not run.
func SQLDriverName() string {
	sqlMu.Lock()
	defer sqlMu.Unlock()
	return sqlDriverName
}

// sqlDriver registers a tracing wrapper around the driver named by
// OTEL_GO_SQL_DRIVER. Connections opened through the wrapper record
// query spans.
type sqlDriver struct{}

func (sqlDriver) Name() string { return "sql" }

func (sqlDriver) Installed() bool {
	return os.Getenv(SQLDriverEnvVar) != "" && SQLDriverName() == ""
}

func (sqlDriver) Instrument(ctx context.Context) error {
	name, err := otelsql.Register(os.Getenv(SQLDriverEnvVar))
	if err != nil {
		return err
	}

	sqlMu.Lock()
	defer sqlMu.Unlock()
	sqlDriverName = name
	return nil
}

var (
	runtimeMu      sync.Mutex
	runtimeStarted bool
)

// goRuntime starts collection of Go runtime metrics (GC, memory,
// goroutines). Collection registers callbacks on the global meter
// provider, so it must only ever start once per process.
type goRuntime struct{}

func (goRuntime) Name() string { return "runtime" }

func (goRuntime) Installed() bool {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	return !runtimeStarted
}

func (goRuntime) Instrument(ctx context.Context) error {
	if err := runtime.Start(); err != nil {
		return err
	}

	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeStarted = true
	return nil
}

var (
	logBridgeMu        sync.Mutex
	logBridgeInstalled bool
)

// logBridge fans the default slog logger out to the OTel log
// pipeline, so application logs ship alongside traces and metrics
// while still reaching their original destination. Wrapping the
// default again would emit every record twice, so the bridge only
// installs once per process.
type logBridge struct{}

func (logBridge) Name() string { return "logbridge" }

func (logBridge) Installed() bool {
	logBridgeMu.Lock()
	defer logBridgeMu.Unlock()
	return !logBridgeInstalled
}

func (logBridge) Instrument(ctx context.Context) error {
	current := slog.Default().Handler()
	bridge := otelslog.NewHandler("otelcx")
	slog.SetDefault(slog.New(jsonlog.Fanout(current, bridge)))

	logBridgeMu.Lock()
	defer logBridgeMu.Unlock()
	logBridgeInstalled = true
	return nil
}

var (
	kafkaMu   sync.Mutex
	kafkaHook func(context.Context) error
)

// RegisterKafkaHook installs the hook the kafka integration runs.
// Applications which bring their own Kafka client register their
// instrumentation here; without a hook the integration is skipped.
func RegisterKafkaHook(f func(context.Context) error) {
	kafkaMu.Lock()
	defer kafkaMu.Unlock()
	kafkaHook = f
}

type kafka struct{}

func (kafka) Name() string { return "kafka" }

func (kafka) Installed() bool {
	kafkaMu.Lock()
	defer kafkaMu.Unlock()
	return kafkaHook != nil
}

func (kafka) Instrument(ctx context.Context) error {
	kafkaMu.Lock()
	hook := kafkaHook
	kafkaMu.Unlock()
	if hook == nil {
		return nil
	}
	return hook(ctx)
}
