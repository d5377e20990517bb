package render

import "chart_sync/internal/models"

// Surface — контракт Presentation Adapter. Тонкая проекция состояния:
// принимает готовые данные и перерисовывает, собственной логики
// согласования у неё нет.
type Surface interface {
	SetTitle(title string)

	// SetBars — bulk-загрузка после snapshot; UpsertBar — merge одного бара
	// по времени (замена последнего или append). Оба обновляют и основную
	// серию, и производный volume-бар (цвет по close >= open).
	SetBars(bars []models.Bar)
	UpsertBar(bar models.Bar)

	SetMarkers(ms []models.TradeMarker)
	SetPriceLine(kind models.MarkerKind, pts []models.PlotPoint)

	CreatePlotSeries(s models.PlotSeries)
	UpsertPlotPoint(title string, p models.PlotPoint)
	SetPlotchars(ps []models.PlotcharMarker)

	SetCountdown(text string)
	ApplyViewport(vp models.Viewport)

	// Clear — полный сброс сцены (смена скрипта, rebuild).
	// ClearMarkers — только волатильные маркеры, бары остаются.
	Clear()
	ClearMarkers()
}
