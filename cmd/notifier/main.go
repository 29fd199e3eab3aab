package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bloomflow/fulfillment/internal/config"
	"github.com/bloomflow/fulfillment/internal/notify"
	"github.com/bloomflow/fulfillment/internal/rabbitmq"
	"github.com/bloomflow/fulfillment/internal/redisx"
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
	log = log.With(zap.String("service", "notifier"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := retry.Policy{
		Initial:    cfg.BackoffInitial,
		Max:        cfg.BackoffMax,
		MaxElapsed: cfg.BackoffMaxElapsed,
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	conn, ch, err := rabbitmq.Dial(ctx, cfg.AMQPURL, policy)
	if err != nil {
		log.Fatal("rabbitmq dial failed", zap.Error(err))
	}
	defer conn.Close()

	dispatcher := &notify.Dispatcher{
		Sender: &notify.LogSender{Log: log},
		Dedup:  &redisx.RedisDeduper{R: rdb, TTL: redisx.TTLDedup},
		Log:    log,
	}

	consumer, err := rabbitmq.NewConsumer(ch, cfg.NotificationQueue, log)
	if err != nil {
		log.Fatal("consumer setup failed", zap.Error(err))
	}

	log.Info("notifier consuming", zap.String("queue", cfg.NotificationQueue))
	if err := consumer.Start(ctx, dispatcher.Handle); err != nil {
		log.Error("consumer exited", zap.Error(err))
		os.Exit(1)
	}
}
