package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chart_sync/internal/chartd"
	"chart_sync/pkg/logger"
)

// chartd — дев-бэкенд: раздаёт synthetic-историю и стримит тики в /ws.
// Позволяет гонять viewer без живого бэкенда стратегии.
func main() {
	var (
		addr     = flag.String("addr", ":9001", "listen address")
		webhooks = flag.String("webhooks", "chartd_webhooks.yaml", "webhook config file")
		interval = flag.Duration("interval", time.Minute, "bar interval")
		bars     = flag.Int("bars", 300, "seed history length")
	)
	flag.Parse()

	logger.SetServiceName("chartd")
	if err := logger.Init(true); err != nil {
		panic(err)
	}

	srv := chartd.NewServer(chartd.NewWebhookStore(*webhooks))
	feeder := chartd.NewFeeder(srv, *interval)
	feeder.Seed(*bars)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go feeder.Run(ctx)

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shCancel()
		_ = httpSrv.Shutdown(shCtx)
	}()

	logger.Info("chartd: listening on %s, bar interval %s", *addr, *interval)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("chartd: %v", err)
	}
}
