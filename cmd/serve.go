package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/licitaradar/radar/internal/server"
	"github.com/licitaradar/radar/pkg/billing"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the search HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Billing.BaseURL == "" {
			return eris.New("billing.base_url is required for serve")
		}

		env, err := initEnv(ctx, billing.NewClient(cfg.Billing.BaseURL, cfg.Billing.Timeout), true)
		if err != nil {
			return err
		}
		defer env.Close()

		maintenance := cron.New()
		_, err = maintenance.AddFunc("@every 10m", func() { runMaintenance(env) })
		if err != nil {
			return eris.Wrap(err, "schedule maintenance")
		}
		maintenance.Start()
		defer maintenance.Stop()

		srv := server.New(server.Deps{
			Orchestrator: env.Orchestrator,
			Bus:          env.Bus,
			Results:      env.Results,
			Store:        env.Store,
			Billing:      env.Billing,
			Metrics:      env.Metrics,

			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown incomplete", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// runMaintenance expires stale cache entries and pollable results. The
// durable tier keeps rows a little past their TTL so a freshly lowered
// TTL never deletes rows another replica still considers fresh.
func runMaintenance(env *radarEnv) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	if n, err := env.Store.DeleteExpiredCache(ctx, now.Add(-2*cfg.Cache.DurableTTL)); err != nil {
		zap.L().Warn("cache expiry failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("expired durable cache rows", zap.Int("count", n))
	}

	if n, err := env.Local.Prune(now); err != nil {
		zap.L().Warn("local cache prune failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("pruned local cache files", zap.Int("count", n))
	}

	if n := env.Results.Prune(); n > 0 {
		zap.L().Debug("pruned expired results", zap.Int("count", n))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
