package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hupe1980/spfresh"
	"github.com/hupe1980/spfresh/blobstore"
	"github.com/hupe1980/spfresh/internal/config"
	"github.com/hupe1980/spfresh/internal/manifest"
	"github.com/hupe1980/spfresh/internal/server"
	"github.com/hupe1980/spfresh/prommetrics"
)

func newServeCommand(root *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. The latest snapshot in the configured storage is
opened when one exists; otherwise an empty index is created from the index
section of the config.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config file)")
	return cmd
}

// openIndex opens the latest snapshot in store or creates an empty index.
func openIndex(ctx context.Context, cfg *config.Config, store blobstore.BlobStore, opts ...spfresh.Option) (*spfresh.Index, error) {
	opts = append(cfg.IndexOptions(), opts...)
	if store != nil {
		idx, err := spfresh.OpenFrom(ctx, store, opts...)
		if err == nil {
			return idx, nil
		}
		if !errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
	}
	return spfresh.New(cfg.Index.Dimension, opts...)
}

// serve runs the server on ln until ctx is done, then saves a final
// snapshot of a ready index.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	logger := cfg.NewLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc, err := prommetrics.New(reg, "spfresh")
	if err != nil {
		return err
	}

	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	idx, err := openIndex(ctx, cfg, store, spfresh.WithLogger(logger), spfresh.WithMetricsCollector(mc))
	if err != nil {
		return err
	}
	defer idx.Close()
	logger.InfoContext(ctx, "index opened",
		"state", idx.State().String(),
		"vectors", idx.Len(),
		"dimension", idx.Dimension(),
	)

	srv := server.New(idx, server.Options{
		Store:          store,
		Gatherer:       reg,
		Logger:         logger,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		CORSOrigins:    cfg.Server.CORSOrigins,
		JWTSecret:      jwtSecret(cfg),
		JWTIssuer:      cfg.Server.JWTIssuer,
	})
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go srv.RunSnapshots(ctx, cfg.Server.SnapshotInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "server listening", "addr", ln.Addr().String(), "jwt", cfg.Server.RequireJWT)
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if store != nil && idx.IsReady() {
		if err := srv.Snapshot(shutdownCtx); err != nil {
			return fmt.Errorf("final snapshot: %w", err)
		}
	}
	return nil
}

func jwtSecret(cfg *config.Config) string {
	if !cfg.Server.RequireJWT {
		return ""
	}
	return cfg.Server.JWTSecret
}
