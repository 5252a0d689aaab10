package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cbtsheet/internal/app"
	"cbtsheet/internal/app/observability"
	"cbtsheet/internal/db"
	"cbtsheet/internal/report"

	"go.uber.org/zap"
)

func main() {
	cfg := app.LoadConfig()

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		Development: !cfg.IsProduction(),
	})

	err := run(cfg, logger)
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run returns only after every deferred cleanup has finished.
func run(cfg app.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dbConn *sql.DB
	if cfg.DBDSN != "" {
		conn, err := db.OpenPostgres(ctx, db.PostgresConfig{
			DSN:             cfg.DBDSN,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer conn.Close()
		dbConn = conn
	} else {
		logger.Info("DB_DSN not set, audit log disabled")
	}

	svc := app.NewServices(cfg, dbConn, logger)
	if svc.Audit != nil {
		if err := svc.Audit.Migrate(ctx); err != nil {
			return fmt.Errorf("audit migrate: %w", err)
		}
	}

	poller := report.NewPoller(svc.Results, cfg.ResultRefresh, logger)
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("start result poller: %w", err)
	}
	defer poller.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.NewRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cbtsheet web listening", zap.String("addr", cfg.HTTPAddr), zap.String("script_url", cfg.ScriptURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
