package chartstate

import (
	"chart_sync/internal/modules/chartstate/service"

	"go.uber.org/fx"
)

// Module — единственный Store на сессию; все компоненты принимают его
// параметром, глобального синглтона нет.
func Module() fx.Option {
	return fx.Module("chartstate",
		fx.Provide(
			service.NewStore,
		),
	)
}
