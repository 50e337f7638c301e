package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/harun/orchestrator/internal/config"
	"github.com/harun/orchestrator/internal/logger"
	"github.com/harun/orchestrator/internal/observability"
	"github.com/harun/orchestrator/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile     string
	logLevel    string
	metricsAddr string
)

// app is the process state built before each command runs
var app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *http.Server
	tracer  *tracing.Provider
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Orchestrator - tool-using agent runner",
	Long: `Orchestrator runs skills against a repository through a tool-use turn loop
with a remote model, and runs self-contained plugin agents through a uniform
entry point.`,
	Version:            version,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.orchestrator/orchestrator.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	secrets := make([]string, 0, len(cfg.AI.Profiles))
	for _, profile := range cfg.AI.Profiles {
		secrets = append(secrets, profile.APIKey)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
		Secrets:   secrets,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracer, err := tracing.Setup(tracing.Config{
		ServiceName:    "orchestrator",
		ServiceVersion: GetVersion(),
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     map[string]string{"orchestrator.host_version": cfg.Plugins.HostVersion},
	})
	if err != nil {
		cliLog := log.Component("cli")
		cliLog.Warn().Err(err).Msg("Tracing disabled")
	}
	app.tracer = tracer

	app.cfg = cfg
	app.log = log

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	if cfg.Metrics.Addr != "" {
		server, err := serveMetrics(cfg.Metrics.Addr, log.Component("metrics"))
		if err != nil {
			return err
		}
		app.metrics = server
	}

	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if app.metrics != nil {
		_ = app.metrics.Shutdown(ctx)
		app.metrics = nil
	}
	_ = app.tracer.Shutdown(ctx)
	app.tracer = nil
	_ = observability.GetAuditLogger().Close()
	if app.log != nil {
		return app.log.Close()
	}
	return nil
}

func serveMetrics(addr string, log zerolog.Logger) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	log.Info().Str("addr", listener.Addr().String()).Msg("Serving metrics")
	return server, nil
}

// componentLogger returns a component logger, or a no-op logger before setup
func componentLogger(name string) zerolog.Logger {
	if app.log == nil {
		return zerolog.Nop()
	}
	return app.log.Component(name)
}

// baseLogger returns the process logger for components that derive their own
// component field
func baseLogger() zerolog.Logger {
	if app.log == nil {
		return zerolog.Nop()
	}
	return app.log.GetZerolog()
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
