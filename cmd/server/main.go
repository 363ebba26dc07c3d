package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/butembo/butembochat/pkg/logging"
	"github.com/butembo/butembochat/pkg/server"
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
		listenAddr string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:     "butembo-server",
		Short:   "Reference ButemboChat server speaking JSON over WebSocket",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration (creates default if not found)
			config, err := server.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			// Command-line flags override config file
			if listenAddr != "" {
				config.Server.ListenAddr = listenAddr
			}
			if logLevel != "" {
				config.Logging.Level = logLevel
			}

			logger := logging.New(config.Logging.Level, os.Stderr)
			serverConfig := config.ToServerConfig()

			srv := server.NewServer(serverConfig, server.WithLogger(logger.With().Str("component", "server").Logger()))
			if err := srv.Start(); err != nil {
				return err
			}

			logger.Info().
				Str("version", Version).
				Str("config", configPath).
				Str("websocket", fmt.Sprintf("ws://%s%s", srv.Addr(), serverConfig.WebSocketPath)).
				Strs("channels", serverConfig.SeedChannels).
				Msg("ButemboChat server started")
			if serverConfig.MetricsPath != "" {
				logger.Info().Str("path", serverConfig.MetricsPath).Msg("metrics enabled")
			}

			// Wait for interrupt signal
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("error during shutdown")
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "~/.butembochat/server.toml", "Path to config file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")

	return cmd
}
