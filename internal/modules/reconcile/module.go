package reconcile

import (
	"go.uber.org/fx"

	"chart_sync/internal/modules/reconcile/service"
)

func Module() fx.Option {
	return fx.Module("reconcile",
		fx.Provide(service.NewReconciler),
	)
}
