package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bidhaus/bidhaus/internal/api"
	"github.com/bidhaus/bidhaus/internal/auction"
	"github.com/bidhaus/bidhaus/internal/auth"
	"github.com/bidhaus/bidhaus/internal/config"
	"github.com/bidhaus/bidhaus/internal/db"
	"github.com/bidhaus/bidhaus/internal/retry"
	"github.com/bidhaus/bidhaus/internal/sched"
	"github.com/bidhaus/bidhaus/internal/ws"
)

// Main entry point: config, storage, engine, sweeper, HTTP server.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(ctx)

	hub := ws.NewHub(logger.Named("ws"))
	authService := auth.NewService(database, cfg.JWTSecret)

	sweeper := sched.NewSweeper(database, hub,
		&sched.LogNotifier{Logger: logger.Named("notify")},
		logger.Named("sched"),
		sched.WithInterval(cfg.SweepInterval))

	engine := auction.NewEngine(database, authService, hub, logger.Named("engine"),
		auction.WithRetryPolicy(retry.Policy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
		}),
		auction.WithNudger(sweeper))

	go sweeper.Run(ctx)

	handler := api.NewHandler(engine, authService, database, logger.Named("api"))
	router := api.NewRouter(handler, hub, logger.Named("ws"))

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("starting server", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed", zap.Error(err))
	}
}
