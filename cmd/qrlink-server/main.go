package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/qrlink/pkg/qrlink/config"
	"golang.org/x/sync/errgroup"
)

func main() {
	if exit, err := parseFlags(os.Args[1:], os.Stdout); exit {
		if err != nil && !errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		return
	}

	// Load configuration from environment
	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(serverConfig))

	if err := run(serverConfig); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// parseFlags handles the informational flags. Configuration itself comes from
// the environment.
func parseFlags(args []string, out io.Writer) (bool, error) {
	flags := flag.NewFlagSet("qrlink-server", flag.ContinueOnError)
	flags.SetOutput(out)
	helpEnv := flags.Bool("help-env", false, "print the environment variables the server reads and exit")
	if err := flags.Parse(args); err != nil {
		return true, err
	}
	if *helpEnv {
		fmt.Fprintln(out, config.EnvUsage())
		return true, nil
	}
	return false, nil
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(serverConfig *config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gateway, err := serverConfig.BuildGateway(ctx, registry)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}
	defer gateway.Close()

	server, err := NewHTTPServer(gateway, serverConfig, registry)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("QR link gateway starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"storage", gateway.BackendName,
			"public_base_url", serverConfig.PublicBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server exiting")
	return nil
}
