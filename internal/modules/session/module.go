package session

import (
	"context"

	"go.uber.org/fx"

	"chart_sync/internal/modules/session/service"
)

func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(service.NewController),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Controller) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go c.Run(ctx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
