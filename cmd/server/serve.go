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

	"blog/internal/auth"
	"blog/internal/config"
	"blog/internal/handlers"
	"blog/internal/posts"

	"github.com/spf13/cobra"
)

const (
	pruneInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, warnings, err := config.FromEnv()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	for _, w := range warnings {
		logger.Warn("configuration", "warning", w)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc := auth.NewService(st.users, st.sessions, auth.Config{
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
	})
	h := handlers.New(authSvc, posts.NewService(st.posts), auth.NewCookieCodec(cfg.AuthSecret, cfg.Production()), logger, handlers.Status{
		Environment:    cfg.Env,
		SessionBackend: st.backend,
		DatabaseURL:    cfg.RedactedDatabaseURL(),
		Users:          st.users,
		Posts:          st.posts,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware: logging -> recover -> routes
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handlers.WithLogging(handlers.WithRecover(mux, logger), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go authSvc.RunPruner(ctx, pruneInterval, func(err error) {
		logger.Error("pruning sessions", "err", err)
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	logger.Info("listening",
		"addr", cfg.ListenAddr,
		"env", cfg.Env,
		"sessions", st.backend,
		"database", cfg.RedactedDatabaseURL())
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
