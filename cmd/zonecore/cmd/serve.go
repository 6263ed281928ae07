package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"zonecore/docs/openapi"
	"zonecore/internal/adapters/httpapi"
	"zonecore/internal/blob"
	"zonecore/internal/config"
	"zonecore/internal/core"
)

const version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the zoning engine HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Int("port", 0, "server port (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := newLogger()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	snapshots, err := core.OpenSnapshotStore()
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() { _ = snapshots.Close() }()

	ctx := context.Background()
	blobs, err := blob.OpenFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	opts := []core.ServiceOption{core.WithBlobStore(blobs)}
	registry := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		opts = append(opts, core.WithMetrics(core.NewPrometheusMetricsRecorder(registry)))
	}

	store := core.NewStore(core.NewNotifier(log), log)
	service := core.NewService(store, snapshots, log, opts...)
	if err := service.Load(ctx); err != nil {
		return fmt.Errorf("hydrate state: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", httpapi.NewHandler(service, log))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openapi.Spec())
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("version", version).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
