// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package launcher implements the container entrypoint behavior:
// one-time service setup (schema migration, static asset collection,
// queue bootstrap) and wrapped execution of the application server
// with telemetry environment defaults injected.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/coralogix-contrib/otelcx/config"
	"github.com/coralogix-contrib/otelcx/instrument"
	"github.com/coralogix-contrib/otelcx/telemetry"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Environment variables read by the launcher.
const (
	DatabaseURLEnvVar   = "DATABASE_URL"
	MigrationsDirEnvVar = "OTELCX_MIGRATIONS_DIR"
	StaticSourceEnvVar  = "STATIC_SOURCE"
	StaticRootEnvVar    = "STATIC_ROOT"
	QueueSetupEnvVar    = "OTELCX_QUEUE_SETUP_CMD"
	SkipSetupEnvVar     = "OTELCX_SKIP_SETUP"
)

// SetupError represents a failed setup step.
type SetupError struct {
	Step  string
	Cause error
}

// Error implements the error interface.
func (e SetupError) Error() string {
	return fmt.Sprintf("launcher: setup step %q failed: %s", e.Step, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Unwrap.
func (e SetupError) Unwrap() error {
	return e.Cause
}

// CommandRunner executes a subprocess with the given environment.
type CommandRunner func(ctx context.Context, env []string, name string, args ...string) error

// Launcher runs setup steps and wrapped application commands.
type Launcher struct {
	log *slog.Logger

	runCommand CommandRunner
	migrateUp  func(dir, databaseURL string) error
	copyTree   func(src, dst string) error
}

// Option configures a Launcher.
type Option func(*Launcher)

// Logger sets the launcher logger.
func Logger(log *slog.Logger) Option {
	return func(l *Launcher) {
		l.log = log
	}
}

// Runner replaces how subprocesses are executed.
func Runner(r CommandRunner) Option {
	return func(l *Launcher) {
		l.runCommand = r
	}
}

// New returns a Launcher.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		log:        slog.Default(),
		runCommand: runCommand,
		migrateUp:  migrateUp,
		copyTree:   copyTree,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Setup performs the one-time service setup: apply schema
// migrations, collect static assets, then run the queue bootstrap
// command. The first failing step aborts the rest.
func (l *Launcher) Setup(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"migrate", l.migrationStep},
		{"collectstatic", l.staticStep},
		{"queue", l.queueStep},
	}

	for _, step := range steps {
		l.log.Info("running setup step", slog.String("step", step.name))
		if err := step.run(ctx); err != nil {
			return SetupError{Step: step.name, Cause: err}
		}
	}
	return nil
}

func (l *Launcher) migrationStep(ctx context.Context) error {
	databaseURL := os.Getenv(DatabaseURLEnvVar)
	if databaseURL == "" {
		l.log.Debug("no database url configured, skipping migrations")
		return nil
	}

	dir := config.Getenv(MigrationsDirEnvVar, "migrations")
	return l.migrateUp(dir, databaseURL)
}

func migrateUp(dir, databaseURL string) error {
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (l *Launcher) staticStep(ctx context.Context) error {
	src := os.Getenv(StaticSourceEnvVar)
	dst := os.Getenv(StaticRootEnvVar)
	if src == "" || dst == "" {
		l.log.Debug("static source or root not configured, skipping collection")
		return nil
	}
	return l.copyTree(src, dst)
}

func copyTree(src, dst string) error {
	srcFS := os.DirFS(src)
	return fs.WalkDir(srcFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		target := filepath.Join(dst, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		b, err := fs.ReadFile(srcFS, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, b, 0o644)
	})
}

func (l *Launcher) queueStep(ctx context.Context) error {
	fields := strings.Fields(os.Getenv(QueueSetupEnvVar))
	if len(fields) == 0 {
		l.log.Debug("no queue setup command configured, skipping")
		return nil
	}

	return l.runCommand(ctx, InjectEnv(os.Environ()), fields[0], fields[1:]...)
}

// Serve runs setup (unless OTELCX_SKIP_SETUP=true) and then execs
// the wrapped application server command.
func (l *Launcher) Serve(ctx context.Context, args []string) error {
	if config.Enabled(SkipSetupEnvVar, false) {
		l.log.Info("setup skipped by environment")
	} else if err := l.Setup(ctx); err != nil {
		return err
	}
	return l.Exec(ctx, args)
}

// Server runs the wrapped command with setup forced off.
func (l *Launcher) Server(ctx context.Context, args []string) error {
	return l.Exec(ctx, args)
}

// Exec runs an arbitrary command with telemetry environment defaults
// injected. The subprocess exit code is preserved, see ExitCode.
func (l *Launcher) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("launcher: no command given")
	}

	l.log.Info("running command", slog.String("command", strings.Join(args, " ")))
	return l.runCommand(ctx, InjectEnv(os.Environ()), args[0], args[1:]...)
}

func runCommand(ctx context.Context, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env
	return cmd.Run()
}

// envDefaults are injected into wrapped commands unless already set,
// so an uninstrumented subprocess still exports via OTLP.
var envDefaults = map[string]string{
	"OTEL_EXPORTER_OTLP_PROTOCOL": telemetry.ProtocolGRPC,
	"OTEL_TRACES_EXPORTER":        telemetry.ExporterOTLP,
	"OTEL_METRICS_EXPORTER":       telemetry.ExporterOTLP,
	"OTEL_LOGS_EXPORTER":          telemetry.ExporterOTLP,
}

// InjectEnv appends telemetry defaults to environ for every key not
// already present.
func InjectEnv(environ []string) []string {
	present := make(map[string]bool, len(environ))
	for _, pair := range environ {
		k, _, ok := strings.Cut(pair, "=")
		if ok {
			present[k] = true
		}
	}

	out := append([]string(nil), environ...)
	for k, v := range envDefaults {
		if present[k] {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

// Check writes the effective telemetry configuration and integration
// toggles, for debugging a deployment.
func (l *Launcher) Check(w io.Writer) error {
	cfg, err := telemetry.FromEnv()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "endpoint:  %s\n", cfg.Endpoint)
	fmt.Fprintf(w, "protocol:  %s\n", config.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL", telemetry.ProtocolGRPC))
	fmt.Fprintf(w, "traces:    %s\n", config.Getenv("OTEL_TRACES_EXPORTER", telemetry.ExporterOTLP))
	fmt.Fprintf(w, "metrics:   %s\n", config.Getenv("OTEL_METRICS_EXPORTER", telemetry.ExporterOTLP))
	fmt.Fprintf(w, "logs:      %s\n", config.Getenv("OTEL_LOGS_EXPORTER", telemetry.ExporterOTLP))

	for k, v := range telemetry.ResourceAttributes(cfg) {
		fmt.Fprintf(w, "resource:  %s=%s\n", k, v)
	}

	fmt.Fprintf(w, "%s=%t\n", instrument.EnabledEnvVar, config.Enabled(instrument.EnabledEnvVar, true))
	for _, name := range []string{"httpclient", "grpc", "sql", "runtime", "logbridge", "kafka"} {
		toggle := instrument.ToggleName(name)
		fmt.Fprintf(w, "%s=%t\n", toggle, config.Enabled(toggle, true))
	}
	return nil
}

// ExitCode maps an error returned by the launcher to a process exit
// code, preserving subprocess exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
