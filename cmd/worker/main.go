package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/app"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payments"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the payments worker")
	}

	c, err := app.NewContainer(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	logger := c.Logger

	h := &payments.Handler{Orders: c.Orders, Logger: logger}
	if c.Redis != nil {
		h.Dedup = &redisx.Dedup{RDB: c.Redis, Service: "payments"}
	}

	topic := cfg.PaymentsTopic
	if topic == "" {
		topic = orders.TopicPayments
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.PaymentsGroup, topic, cfg.PaymentsWorkers, logger)
	done := make(chan struct{})
	var consumeErr error
	go func() {
		defer close(done)
		logger.Info("payments consumer started",
			zap.String("group", cfg.PaymentsGroup),
			zap.String("topic", topic),
			zap.Int("workers", cfg.PaymentsWorkers))
		if consumeErr = cons.Start(ctx, h.HandlePaymentEvent); consumeErr != nil {
			logger.Error("consumer exit", zap.Error(consumeErr))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	c.Shutdown(ctx2)
	if consumeErr != nil {
		// non-zero exit lets the supervisor restart and the group redeliver
		cancel2()
		os.Exit(1)
	}
}
