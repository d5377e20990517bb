package main

import (
	"context"
	"log"

	"chart_sync/internal/metrics"
	"chart_sync/internal/modules/chartstate"
	"chart_sync/internal/modules/config"
	"chart_sync/internal/modules/dataservice"
	"chart_sync/internal/modules/health"
	"chart_sync/internal/modules/reconcile"
	"chart_sync/internal/modules/renderhealth"
	renderhealthsvc "chart_sync/internal/modules/renderhealth/service"
	"chart_sync/internal/modules/session"
	"chart_sync/internal/modules/snapshot"
	"chart_sync/internal/modules/transport"
	"chart_sync/internal/notify"
	"chart_sync/internal/render"
	"chart_sync/internal/viewport"
	"chart_sync/pkg/logger"
	"chart_sync/pkg/tracing"

	"go.uber.org/fx"
)

func main() {
	logger.SetServiceName("chart_sync")
	tracing.SetServiceName("chart_sync")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			metrics.New,
			render.NewCanvas,
			func(c *render.Canvas) render.Surface { return c },
			func(cfg *config.Config) *viewport.Store {
				return viewport.NewStore(cfg.StateDir)
			},
			newDispatcher,
		),
		config.Module(),
		chartstate.Module(),
		dataservice.Module(),
		reconcile.Module(),
		snapshot.Module(),
		transport.Module(),
		renderhealth.Module(),
		session.Module(),
		health.Module(),
		fx.Invoke(initLogger, initTracing, runMonitor),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.Debug)
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if !cfg.Tracing.Enabled {
		return nil
	}
	_, closer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Tracing.Host,
		Port: cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}

func runMonitor(lc fx.Lifecycle, mo *renderhealthsvc.Monitor) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go mo.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

// newDispatcher: телеграм включается только при заданном токене, иначе —
// stdout-заглушка, чтобы дев-запуск не требовал бота.
func newDispatcher(cfg *config.Config) *notify.Dispatcher {
	var n notify.Notifier
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn("telegram init: %v, falling back to stdout", err)
			n = notify.NewStdout()
		} else {
			n = tg
		}
	} else {
		n = notify.NewStdout()
	}
	return notify.NewDispatcher(n)
}
