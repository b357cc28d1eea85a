package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"apbn/internal/amqp"
	"apbn/internal/cache"
	"apbn/internal/cli"
	apphttp "apbn/internal/http"
	"apbn/internal/log"
	"apbn/internal/services"
	"apbn/internal/storage"
	"apbn/internal/view"
)

// historyKeep is how many load runs survive the startup prune.
const historyKeep = 200

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the workbooks and serve the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), root)
		},
	}
}

func runServe(ctx context.Context, logOut io.Writer, root *rootOptions) error {
	a, err := newApp(ctx, root, logOut)
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	var (
		repo     *storage.SQLiteRepository
		notifier *amqp.Client
		once     sync.Once
	)
	// release runs on every exit path: the shutdown signal or an early error.
	release := func() {
		once.Do(func() {
			if notifier != nil {
				if err := notifier.Close(); err != nil {
					logger.Error("Failed to close AMQP client", log.FieldComponent, log.ComponentAMQP, log.FieldError, err)
				}
			}
			if repo != nil {
				closeRepo(logger, repo)
			}
			a.Close()
		})
	}
	defer release()

	repo, err = cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	notifier = cli.InitAMQP(ctx, logger, cfg)

	dashCache := cache.NewLRUCache[view.Dashboard](cfg.CacheSize, cfg.CacheTTL)

	opts := []services.Option{
		services.OnSwap(func(ds *services.Dataset) {
			if n := dashCache.Purge(); n > 0 {
				logger.Debug("Dashboard cache purged", log.FieldComponent, log.ComponentCache, log.FieldRunID, ds.RunID, "entries", n)
			}
		}),
	}
	deps := apphttp.Dependencies{Cache: dashCache}
	if repo != nil {
		opts = append(opts, services.WithRecorder(repo))
		deps.History = repo
	}
	if notifier != nil {
		opts = append(opts, services.WithNotifier(notifier))
	}

	svc := a.service(opts...)
	deps.Dataset = svc

	ds := svc.Load(ctx, services.TriggerStartup)
	if !ds.OK() {
		logger.Error("Startup load failed, serving the error page until a reload succeeds",
			log.FieldOperation, log.OpStartup, log.FieldError, ds.Err)
	}
	if repo != nil {
		if pruned, err := repo.PruneRuns(ctx, historyKeep); err != nil {
			logger.Warn("Failed to prune load log", log.FieldComponent, log.ComponentStorage, log.FieldError, err)
		} else if pruned > 0 {
			logger.Info("Load log pruned", log.FieldComponent, log.ComponentStorage, "runs", pruned)
		}
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		CacheSize:      cfg.CacheSize,
		CacheTTL:       cfg.CacheTTL,
		Dependencies:   deps,
		TrustedProxies: cfg.TrustedProxies,
	}, logger)
	if err != nil {
		return err
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		release()
	})

	logger.Info("Starting apbn server", "port", cfg.Port, "sources", len(a.sources), "demo", root.demo)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		return err
	}

	<-done
	logger.Info("Server stopped gracefully")
	return nil
}
