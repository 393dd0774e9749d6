package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/app"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := app.NewContainer(ctx, cfg, "api")
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	logger := c.Logger

	router := httpx.NewRouter(logger, metrics.NewServerMetrics(prometheus.DefaultRegisterer, cfg.ServiceName))
	oh := &httpx.OrdersHandler{Orders: c.Orders, Logger: logger}
	if c.Redis != nil {
		oh.Cache = c.StatusCache()
		oh.Idem = &redisx.Idempotency{RDB: c.Redis}
	}
	oh.Register(router)
	(&httpx.InventoryHandler{Ledger: c.Ledger, Logger: logger}).Register(router)
	(&httpx.PricingHandler{Prices: c.Prices, Logger: logger}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	c.Shutdown(ctx2) // flushes pending events
}
