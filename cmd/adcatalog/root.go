package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/adcatalog/internal/app"
	"github.com/JakeFAU/adcatalog/internal/config"
	"github.com/JakeFAU/adcatalog/internal/logging"
	"github.com/JakeFAU/adcatalog/internal/telemetry"
)

var version = "dev"

// newApp is the service factory. Tests replace it.
var newApp = app.New

// environment carries what PersistentPreRunE built to the subcommands and is
// torn down once the command returns.
type environment struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
	app     *app.App
	tracer  *sdktrace.TracerProvider
}

func (e *environment) close() {
	if e.app != nil {
		e.app.Close()
	}
	if e.tracer != nil {
		if err := e.tracer.Shutdown(context.Background()); err != nil && e.logger != nil {
			e.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if e.logger != nil {
		// Sync fails on non-file sinks such as a terminal; nothing to do about it.
		_ = e.logger.Sync()
	}
}

func newRootCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "adcatalog",
		Short:         "Capture and catalog the banner ads shown on the fiction site.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(env.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			env.cfg = cfg

			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			env.logger = logger
			zap.ReplaceGlobals(logger)

			env.tracer, err = telemetry.InitTracerProvider(cmd.Context(), telemetry.Config{
				ServiceName:    cfg.Telemetry.ServiceName,
				ServiceVersion: version,
				SampleRatio:    cfg.Telemetry.SampleRatio,
			})
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}

			env.app, err = newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&env.cfgFile, "config", "", "config file (YAML); ADCATALOG_* env vars override defaults")

	cmd.AddCommand(newRunCmd(env))
	cmd.AddCommand(newCheckCmd(env))
	cmd.AddCommand(newFetchCmd(env))
	cmd.AddCommand(newServeCmd(env))
	return cmd
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	env := &environment{}
	defer env.close()

	cmd := newRootCmd(env)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if env.logger != nil {
			env.logger.Error("command failed", zap.Error(err))
		}
		fmt.Fprintf(stderr, "adcatalog: %v\n", err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}
