package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/assembly"
	"github.com/bloomflow/fulfillment/internal/config"
	"github.com/bloomflow/fulfillment/internal/orders"
	"github.com/bloomflow/fulfillment/internal/postgres"
	"github.com/bloomflow/fulfillment/internal/rabbitmq"
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
	log = log.With(zap.String("service", "assembler"))

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

	conn, ch, err := rabbitmq.Dial(ctx, cfg.AMQPURL, policy)
	if err != nil {
		log.Fatal("rabbitmq dial failed", zap.Error(err))
	}
	defer conn.Close()

	noteQueue, err := rabbitmq.NewPublisher(ch, cfg.NotificationQueue)
	if err != nil {
		log.Fatal("queue setup failed", zap.Error(err))
	}

	coord := &saga.Coordinator{
		Ledger: &orders.Ledger{DB: pool},
		Notes:  &orders.NotificationDispatcher{Queue: noteQueue},
		Log:    log,
	}

	worker := &assembly.Worker{Orders: coord, Delay: cfg.AssemblyDelay, Log: log}

	consumer, err := rabbitmq.NewConsumer(ch, cfg.AssemblyQueue, log)
	if err != nil {
		log.Fatal("consumer setup failed", zap.Error(err))
	}

	log.Info("assembler consuming", zap.String("queue", cfg.AssemblyQueue))
	if err := consumer.Start(ctx, worker.Handle); err != nil {
		log.Error("consumer exited", zap.Error(err))
		os.Exit(1)
	}
}
