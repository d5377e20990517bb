package transport

import (
	"go.uber.org/fx"

	"chart_sync/internal/modules/transport/service"
)

func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(service.NewClient),
	)
}
