package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jbweber/hearth/internal/api"
	"github.com/jbweber/hearth/internal/config"
	"github.com/jbweber/hearth/internal/disk"
	"github.com/jbweber/hearth/internal/identity"
	"github.com/jbweber/hearth/internal/metrics"
	"github.com/jbweber/hearth/internal/session"
	"github.com/jbweber/hearth/internal/store"
	"github.com/jbweber/hearth/internal/vm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Run the hearth REST API.

The server migrates the database, connects to libvirt and listens on the
configured address until interrupted. In-flight requests are given the
configured shutdown timeout to finish.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(db) }()

	client, err := connectLibvirt(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLibvirt(client, logger)

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	disks := disk.NewManager(store.NewImageRepository(db), cfg.DiskOptions(), logger)
	orch := vm.NewOrchestrator(client, disks, store.NewVMRepository(db),
		vm.WithLogger(logger),
		vm.WithMetrics(metrics.New(reg)),
		vm.WithNetwork(cfg.Libvirt.Network),
	)

	handler := api.New(api.Config{
		Compute:   orch,
		Auth:      identity.NewAuthGate(db, sessions, cfg.Session.TTL, logger),
		Directory: identity.NewDirectory(db, logger),
		Logger:    logger,
		Gatherer:  reg,
		HealthChecks: map[string]api.HealthCheck{
			"libvirt": func(context.Context) error { return client.Ping() },
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
	}).Handler()

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down api server", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}

// newSessionStore builds the configured session backend and a func that releases it.
func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case config.SessionRedis:
		rs, err := session.NewRedisStore(ctx, session.RedisOptions{
			Addr:      cfg.Session.Redis.Addr,
			Password:  cfg.Session.Redis.Password,
			DB:        cfg.Session.Redis.DB,
			KeyPrefix: cfg.Session.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}
