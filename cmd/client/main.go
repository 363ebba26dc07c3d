package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/butembo/butembochat/pkg/client"
	"github.com/butembo/butembochat/pkg/client/ui"
	"github.com/butembo/butembochat/pkg/logging"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		serverAddr string
		statePath  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:     "butembo",
		Short:   "Terminal ButemboChat client",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := client.LoadClientConfig(configPath)
			if err != nil {
				if client.HandleConfigError(configPath, err, os.Stdout) {
					return nil
				}
				return fmt.Errorf("failed to load config: %w", err)
			}

			if logLevel != "" {
				config.Logging.Level = logLevel
			}
			if statePath != "" {
				config.Local.StateDB = statePath
			}

			dbPath, err := config.GetStateDBPath()
			if err != nil {
				return err
			}

			// The terminal belongs to the UI, so logs go next to the state database
			if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
			logFile, err := os.OpenFile(filepath.Join(filepath.Dir(dbPath), "client.log"),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer logFile.Close()
			logger := logging.New(config.Logging.Level, logFile)

			state, err := client.OpenState(dbPath, logger.With().Str("component", "state").Logger())
			if err != nil {
				return err
			}
			defer state.Close()

			// A nickname from the config file seeds the state on first run
			if state.GetLastNickname() == "" && config.Local.LastNickname != "" {
				if err := state.SetLastNickname(config.Local.LastNickname); err != nil {
					logger.Warn().Err(err).Msg("failed to seed nickname")
				}
			}

			registry := prometheus.NewRegistry()
			c := client.New(
				client.WithLogger(logger),
				client.WithMetrics(client.NewMetrics(registry)),
				client.WithConnectTimeout(config.ConnectTimeout()),
				client.WithSendQueueSize(config.Connection.SendQueueSize),
			)
			defer c.Close()

			if config.Metrics.ListenAddr != "" {
				stopMetrics := serveMetrics(config.Metrics.ListenAddr, registry, logger)
				defer stopMetrics()
			}

			auto := client.NewAutoSession(c, state, logger.With().Str("component", "session").Logger())
			auto.AutoSetNickname = config.Local.AutoSetNickname
			auto.RejoinChannels = config.Local.RejoinChannels
			c.RegisterObserver(auto)

			address := client.ResolveServerAddress(serverAddr, config.GetServerAddress(), state, logger)
			model := ui.NewModel(c, state, address).WithNotice("Connecting to " + address + "...")
			if state.GetFirstRun() {
				model = model.WithNotice("Welcome to ButemboChat! Type /help for commands.")
				if err := state.SetFirstRunComplete(); err != nil {
					logger.Warn().Err(err).Msg("failed to record first run")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			c.RegisterObserver(ui.NewObserver(p.Send))

			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("error running program: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", client.DefaultConfigPath(), "Path to config file")
	cmd.Flags().StringVar(&serverAddr, "server", "", "Server address (host:port or ws:// URL)")
	cmd.Flags().StringVar(&statePath, "state", "", "Path to state database (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")

	return cmd
}

// serveMetrics exposes the client registry over HTTP and returns a stop func
func serveMetrics(addr string, registry *prometheus.Registry, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
