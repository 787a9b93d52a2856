// Package main запускает HTTP-сервер торгового автомата.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/vending-machine/internal/bank"
	"github.com/mmeshcher/vending-machine/internal/catalog"
	"github.com/mmeshcher/vending-machine/internal/config"
	"github.com/mmeshcher/vending-machine/internal/handler"
	"github.com/mmeshcher/vending-machine/internal/machine"
	"github.com/mmeshcher/vending-machine/internal/middleware"
	"github.com/mmeshcher/vending-machine/internal/repository"
	"github.com/mmeshcher/vending-machine/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	cat, err := catalog.New(cfg.Prices(), cfg.InitialStock)
	if err != nil {
		sugar.Fatalw("catalog initialization error", "error", err.Error())
	}

	coins, err := bank.New(cfg.Seed())
	if err != nil {
		sugar.Fatalw("coin bank initialization error", "error", err.Error())
	}

	m := machine.New(cat, coins,
		machine.WithLogger(logger.Named("machine")),
		machine.WithExactChangeRecheck(cfg.RecheckExactChange),
	)

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Warn("DATABASE_URI is not set, machine state is kept in memory only")
	}

	svc := service.NewService(m, repo, logger.Named("service"), cfg.FlushInterval)
	defer svc.Close()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.Restore(startCtx); err != nil {
		cancelStart()
		sugar.Fatalw("state restore error", "error", err.Error())
	}
	cancelStart()

	if cfg.OperatorKey == "" {
		sugar.Warn("OPERATOR_KEY is not set, operator endpoints are disabled")
	}
	auth := middleware.NewOperatorAuth(cfg.OperatorKey)
	h := handler.NewHandler(svc, logger, auth)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Периодическое сохранение резерва и остатков
	g.Go(func() error {
		svc.StartSnapshotFlush(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting vending machine server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	waitErr := g.Wait()

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFlush()
	if err := svc.Flush(flushCtx); err != nil {
		sugar.Errorw("final snapshot error", "error", err)
	}

	if waitErr != nil {
		sugar.Fatalw("application terminated with error", "error", waitErr)
	}
}
