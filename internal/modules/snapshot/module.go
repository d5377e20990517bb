package snapshot

import (
	"go.uber.org/fx"

	dataservice "chart_sync/internal/modules/dataservice/service"
	"chart_sync/internal/modules/snapshot/service"
)

func Module() fx.Option {
	return fx.Module("snapshot",
		fx.Provide(
			func(c *dataservice.Client) service.API { return c },
			service.NewLoader,
		),
	)
}
