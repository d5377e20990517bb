package dataservice

import (
	"chart_sync/internal/modules/dataservice/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("dataservice",
		fx.Provide(
			service.NewClient,
		),
	)
}
