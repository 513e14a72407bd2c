// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command otelcx is the container entrypoint for instrumented
// services. It runs one-time setup steps and wraps the application
// server so telemetry defaults are injected into its environment.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/coralogix-contrib/otelcx/jsonlog"
	"github.com/coralogix-contrib/otelcx/launcher"

	"github.com/spf13/cobra"
)

func main() {
	log := slog.New(jsonlog.New(os.Stderr, jsonlog.LoggerName("otelcx")))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	cmd := buildCmd(launcher.New(launcher.Logger(log)))
	cmd.SetArgs(os.Args[1:])

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		log.Error("command failed", slog.String("error", err.Error()))
	}
	os.Exit(launcher.ExitCode(err))
}

var errUsage = errors.New("no command given")

func buildCmd(l *launcher.Launcher) *cobra.Command {
	root := &cobra.Command{
		Use:           "otelcx",
		Short:         "Run service setup and wrap the application server with telemetry defaults",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare invocation prints usage and fails, matching the
			// behavior expected from a container entrypoint.
			cmd.Usage()
			return errUsage
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "setup",
			Short: "Apply schema migrations, collect static assets and bootstrap queues",
			RunE: func(cmd *cobra.Command, args []string) error {
				return l.Setup(cmd.Context())
			},
		},
		&cobra.Command{
			Use:     "serve [command args...]",
			Aliases: []string{"gunicorn"},
			Short:   "Run setup then the application server command",
			Args:    cobra.MinimumNArgs(1),
			// Flags belong to the wrapped command, not to otelcx.
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return l.Serve(cmd.Context(), args)
			},
		},
		&cobra.Command{
			Use:                "server [command args...]",
			Short:              "Run the application server command without setup",
			Args:               cobra.MinimumNArgs(1),
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return l.Server(cmd.Context(), args)
			},
		},
		&cobra.Command{
			Use:                "manage [args...]",
			Short:              "Run a management command with telemetry defaults injected",
			Args:               cobra.MinimumNArgs(1),
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return l.Exec(cmd.Context(), args)
			},
		},
		&cobra.Command{
			Use:                "exec [command args...]",
			Short:              "Run an arbitrary command with telemetry defaults injected",
			Args:               cobra.MinimumNArgs(1),
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return l.Exec(cmd.Context(), args)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Print the effective telemetry configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return l.Check(cmd.OutOrStdout())
			},
		},
	)

	return root
}
