package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/carenet/internal/appointment"
	"github.com/gyeh/carenet/internal/catalog"
	"github.com/gyeh/carenet/internal/cloud"
	"github.com/gyeh/carenet/internal/config"
	"github.com/gyeh/carenet/internal/logging"
	"github.com/gyeh/carenet/internal/metrics"
	"github.com/gyeh/carenet/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the provider lookup and booking HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.ListenAddress = listen
			}

			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src, err := catalog.NewSource(ctx, cfg.Catalog.Path, cfg.AWS.Region)
			if err != nil {
				return fmt.Errorf("opening catalog: %w", err)
			}
			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("opening appointment store: %w", err)
			}
			defer closeStore()

			logger.Info("starting",
				"catalog", cfg.Catalog.Path,
				"store", cfg.Store.Driver,
				"origins", cfg.CORS.AllowedOrigins)

			handler := server.New(server.Options{
				Catalog:        src,
				Store:          store,
				Logger:         logger,
				Metrics:        metrics.New(),
				AllowedOrigins: cfg.CORS.AllowedOrigins,
			})
			srv := &http.Server{
				Addr:         cfg.Server.ListenAddress,
				Handler:      handler,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}
			return server.ListenAndServe(ctx, srv, cfg.Server.ShutdownTimeout, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file (default: $CARENET_CONFIG or carenet.yaml)")
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address, overrides server.listen_address")

	return cmd
}

func loadConfig(explicit string) (*config.Config, error) {
	path, required := config.Resolve(explicit)
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// openStore builds the appointment store selected by cfg. The returned
// close function is always non-nil.
func openStore(ctx context.Context, cfg *config.Config) (appointment.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return appointment.NewMemoryStore(), noop, nil
	case config.DriverSQLite:
		s, err := appointment.OpenSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.DriverS3:
		client, err := cloud.NewS3Client(ctx, cfg.AWS.Bucket, cfg.AWS.Region)
		if err != nil {
			return nil, noop, err
		}
		return appointment.NewS3Store(client, cfg.Store.S3Key), noop, nil
	default:
		return appointment.NewFileStore(cfg.Store.Path), noop, nil
	}
}
