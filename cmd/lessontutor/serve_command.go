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
	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/extract"
	sessionrepo "github.com/kailas-cloud/lessontutor/internal/repository/session"
	chiTransport "github.com/kailas-cloud/lessontutor/internal/transport/chi"
	"github.com/kailas-cloud/lessontutor/internal/version"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.HTTP.Port = port
			}

			logger.Info("Starting lessontutor API server",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.String("env", ctx.env()),
				zap.Int("http_port", cfg.HTTP.Port),
				zap.String("db_driver", cfg.Database.Driver),
				zap.String("llm_provider", cfg.LLM.Provider),
				zap.String("llm_model", cfg.LLM.Model),
			)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			server := chiTransport.NewServer(a.lessons, a.sessions, a.health, extract.New(), logger,
				chiTransport.WithMaxUploadBytes(int64(cfg.Upload.MaxMB)<<20))

			addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
				ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
				WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
			}

			sweepCtx, stopSweep := context.WithCancel(context.Background())
			defer stopSweep()
			if ttl := time.Duration(cfg.Session.IdleTTLMin) * time.Minute; ttl > 0 {
				go sweepSessions(sweepCtx, a.sessionStore, ttl, logger)
			}

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(quit)

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-quit:
				logger.Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}

			logger.Info("Server stopped gracefully")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override http.port from the configuration")
	return cmd
}

// sweepSessions drops sessions idle for longer than ttl until ctx is done.
func sweepSessions(ctx context.Context, store *sessionrepo.MemoryStore, ttl time.Duration, logger *zap.Logger) {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.Sweep(now, ttl); n > 0 {
				logger.Info("Expired idle sessions", zap.Int("count", n), zap.Int("remaining", store.Len()))
			}
		}
	}
}
