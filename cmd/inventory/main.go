package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/authx"
	"github.com/bloomflow/fulfillment/internal/bouquet"
	"github.com/bloomflow/fulfillment/internal/config"
	"github.com/bloomflow/fulfillment/internal/httpx"
	"github.com/bloomflow/fulfillment/internal/inventory"
	"github.com/bloomflow/fulfillment/internal/postgres"
	"github.com/bloomflow/fulfillment/internal/retry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With(zap.String("service", "inventory"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := retry.Policy{
		Initial:    cfg.BackoffInitial,
		Max:        cfg.BackoffMax,
		MaxElapsed: cfg.BackoffMaxElapsed,
	}

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN, policy)
	if err != nil {
		log.Fatal("postgres connect failed", zap.Error(err))
	}
	defer pool.Close()

	store := &inventory.Store{DB: pool}
	alloc := &inventory.Allocator{DB: pool, StatementTimeout: cfg.StatementTimeout, Log: log}

	handler := &httpx.InventoryHandler{Store: store, Alloc: alloc, Log: log}
	bouquets := &httpx.BouquetHandler{
		Builder: &bouquet.Builder{Catalog: store, Stock: alloc, Limits: bouquet.DefaultLimits, Log: log},
		Log:     log,
	}

	router := httpx.NewRouter(log)
	auth := authx.New(cfg.AuthServiceURL, cfg.CollaboratorTimeout)
	handler.Mount(router, auth)
	bouquets.Mount(router, auth)

	if err := httpx.Serve(ctx, cfg.HTTPAddr, router, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}
