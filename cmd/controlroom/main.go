// Command controlroom serves the multi-LLM control room: the session API,
// the live WebSocket relay and the tool server manager.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"controlroom"
	"controlroom/config"
	"controlroom/logging"
	"controlroom/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "controlroom",
		Short:         "Orchestrate conversations across multiple model backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the control room server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.AddCommand(serve)

	return root
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewSlogLogger(logLevel(cfg.LogLevel), cfg.LogFormat)
	room := controlroom.New(
		controlroom.WithLogger(logger),
		controlroom.WithHistoryWindow(cfg.HistoryWindow),
	)

	for _, ts := range cfg.ToolServers {
		if !ts.AutoStart {
			continue
		}
		if err := room.Tools().RegisterServer(ctx, ts.Name, ts.Command); err != nil {
			logger.Warn("Skipping tool server", "server", ts.Name, "error", err.Error())
		}
	}

	api := transport.NewAPI(room, func(o *transport.Options) {
		o.Logger = logger
		o.DefaultSampling = cfg.Sampling
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Control room listening", "addr", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := room.Teardown(shutdownCtx); err != nil {
		logger.Warn("Teardown finished with errors", "error", err.Error())
	}
	logger.Info("Control room stopped")
	return nil
}

func logLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
