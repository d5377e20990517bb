package renderhealth

import (
	"go.uber.org/fx"

	"chart_sync/internal/modules/renderhealth/service"
)

func Module() fx.Option {
	return fx.Module("renderhealth",
		fx.Provide(service.NewMonitor),
	)
}
