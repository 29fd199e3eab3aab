package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/authx"
	"github.com/bloomflow/fulfillment/internal/catalog"
	"github.com/bloomflow/fulfillment/internal/config"
	"github.com/bloomflow/fulfillment/internal/httpx"
	"github.com/bloomflow/fulfillment/internal/orders"
	"github.com/bloomflow/fulfillment/internal/payment"
	"github.com/bloomflow/fulfillment/internal/postgres"
	"github.com/bloomflow/fulfillment/internal/rabbitmq"
	"github.com/bloomflow/fulfillment/internal/redisx"
	"github.com/bloomflow/fulfillment/internal/retry"
	"github.com/bloomflow/fulfillment/internal/saga"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With(zap.String("service", cfg.ServiceName))

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

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	conn, ch, err := rabbitmq.Dial(ctx, cfg.AMQPURL, policy)
	if err != nil {
		log.Fatal("rabbitmq dial failed", zap.Error(err))
	}
	defer conn.Close()

	taskQueue, err := rabbitmq.NewPublisher(ch, cfg.AssemblyQueue)
	if err != nil {
		log.Fatal("queue setup failed", zap.Error(err))
	}
	noteQueue, err := rabbitmq.NewPublisher(ch, cfg.NotificationQueue)
	if err != nil {
		log.Fatal("queue setup failed", zap.Error(err))
	}

	ledger := &orders.Ledger{DB: pool}
	inventoryClient := catalog.New(cfg.InventoryServiceURL, cfg.CollaboratorTimeout)

	coord := &saga.Coordinator{
		Ledger:    ledger,
		Inventory: inventoryClient,
		Catalog:   inventoryClient,
		Payments:  payment.New(cfg.PaymentGatewayURL, cfg.CollaboratorTimeout),
		Tasks:     &orders.TaskDispatcher{Queue: taskQueue},
		Notes:     &orders.NotificationDispatcher{Queue: noteQueue},
		Log:       log,
	}

	handler := &httpx.OrdersHandler{Saga: coord, Reader: ledger, Cache: rdb, Log: log}

	router := httpx.NewRouter(log)
	handler.Mount(router, authx.New(cfg.AuthServiceURL, cfg.CollaboratorTimeout))

	if err := httpx.Serve(ctx, cfg.HTTPAddr, router, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}
