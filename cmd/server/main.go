package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"bankledger/internal/api"
	"bankledger/internal/config"
	"bankledger/internal/ledger"
	"bankledger/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	gateway, err := storage.Open(context.Background(), cfg, log.Named("storage"))
	if err != nil {
		log.Fatal("open storage gateway", zap.Error(err))
	}
	defer gateway.Close()

	if err := gateway.Migrate(); err != nil {
		log.Fatal("run migrations", zap.Error(err))
	}

	engine := ledger.NewEngine(
		gateway,
		ledger.NewAccountStore(),
		ledger.NewTransactionLog(),
		cfg.MinOpeningDeposit,
		log.Named("ledger"),
	)

	app := fiber.New()
	api.InitializeRoutes(app, engine, gateway, log.Named("http"))

	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
