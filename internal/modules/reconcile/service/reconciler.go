package service

import (
	"math"
	"strings"

	"chart_sync/internal/metrics"
	"chart_sync/internal/models"
	chartstate "chart_sync/internal/modules/chartstate/service"
	"chart_sync/internal/modules/config"
	"chart_sync/internal/render"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultPlotcharColor = "#2196f3"
	defaultPlotcharSize  = "small"
)

// Reconciler применяет по одному событию к Store и перерисовывает Surface.
// Все операции идемпотентны при replay того же события; стейл-события
// отбрасываются monotonic-guard'ами и это не ошибка.
type Reconciler struct {
	cfg   *config.Config
	store *chartstate.Store
	surf  render.Surface
	m     *metrics.Metrics
}

func NewReconciler(cfg *config.Config, store *chartstate.Store, surf render.Surface, m *metrics.Metrics) *Reconciler {
	return &Reconciler{cfg: cfg, store: store, surf: surf, m: m}
}

// count не делает ничего без метрик — так тесты собирают Reconciler без registry.
func (r *Reconciler) count(pick func(*metrics.Metrics) prometheus.Counter) {
	if r.m != nil {
		pick(r.m).Inc()
	}
}

// ApplyBar мержит бар. Строго стейл (time < lastBarTime) — отбрасывается,
// никогда не мержится. Равное время — обновление на месте (ещё формирующаяся
// свеча). Если на это время записана open-коррекция и входящий open
// расходится с ней больше эпсилона округления — входящий open заменяется
// авторитетным до мержа: бэкенд может пересмотреть официальный open уже
// после начала стрима свечи.
func (r *Reconciler) ApplyBar(b models.Bar) bool {
	cur := &r.store.Cursor
	if b.Time < cur.LastBarTime {
		r.count(func(m *metrics.Metrics) prometheus.Counter { return m.BarsRejected })
		return false
	}

	if fix := cur.OpenFix; fix != nil && fix.Time == b.Time &&
		math.Abs(fix.Value-b.Open) > r.cfg.OpenEpsilon {
		b.Open = fix.Value
	}

	r.surf.UpsertBar(b)

	cur.LastBarTime = b.Time
	cur.LastPrice = b.Close
	cur.LastBar = b
	r.count(func(m *metrics.Metrics) prometheus.Counter { return m.BarsApplied })
	return true
}

// ApplyOpenFix запоминает авторитетный open для времени и, если уже
// отрисованный маркер на этом времени разошёлся с ним больше допуска,
// переписывает отображаемую цену маркера. Это единственное место, где
// у маркера после создания мутирует значение, а не только присутствие.
func (r *Reconciler) ApplyOpenFix(c models.OpenCorrection) {
	fix := c
	r.store.Cursor.OpenFix = &fix
	r.count(func(m *metrics.Metrics) prometheus.Counter { return m.OpenFixes })

	rewritten := false
	for _, mk := range r.store.MarkersAt(c.Time) {
		if !mk.HasPrice() {
			continue
		}
		if math.Abs(mk.Price-c.Value) <= r.cfg.OpenFixTolerance {
			continue
		}
		mk.Price = c.Value
		r.store.SetPriceRow(mk.Key(), models.PlotPoint{Time: mk.Time, Value: c.Value})
		rewritten = true
		r.count(func(m *metrics.Metrics) prometheus.Counter { return m.MarkerRewrites })
	}
	if rewritten {
		r.rerenderMarkers()
	}
}

// ApplyTrade — маркер сделки. Раньше firstBarTime — шум прошлой сессии,
// дубликат по (kind, time, id) — молча дропаем.
func (r *Reconciler) ApplyTrade(t models.TradeMarker) bool {
	cur := r.store.Cursor
	if cur.FirstBarTime > 0 && t.Time < cur.FirstBarTime {
		r.count(func(m *metrics.Metrics) prometheus.Counter { return m.TradesFiltered })
		return false
	}
	if !r.store.MarkTrade(t) {
		r.count(func(m *metrics.Metrics) prometheus.Counter { return m.TradesDeduped })
		return false
	}
	if t.HasPrice() {
		r.store.SetPriceRow(t.Key(), models.PlotPoint{Time: t.Time, Value: t.Price})
	}
	r.rerenderMarkers()
	r.count(func(m *metrics.Metrics) prometheus.Counter { return m.TradesApplied })
	return true
}

func (r *Reconciler) rerenderMarkers() {
	r.surf.SetMarkers(r.store.Markers())
	// PriceRows уже отфильтрованы до конечных значений.
	r.surf.SetPriceLine(models.MarkerEntry, r.store.PriceRows(models.MarkerEntry))
	r.surf.SetPriceLine(models.MarkerClose, r.store.PriceRows(models.MarkerClose))
}

// ApplyPlotchar — дедуп по (time, title), отсечка по firstBarTime,
// дефолты для цвета/размера, нормализация location к трём позициям.
func (r *Reconciler) ApplyPlotchar(p models.PlotcharMarker) bool {
	cur := r.store.Cursor
	if cur.FirstBarTime > 0 && p.Time < cur.FirstBarTime {
		return false
	}

	// location сравнивается без учёта регистра: бэкенды шлют и belowBar,
	// и belowbar.
	switch strings.ToLower(string(p.Location)) {
	case strings.ToLower(string(models.LocationAboveBar)):
		p.Location = models.LocationAboveBar
	case strings.ToLower(string(models.LocationBelowBar)):
		p.Location = models.LocationBelowBar
	case string(models.LocationAbsolute):
		p.Location = models.LocationAbsolute
	default:
		p.Location = models.LocationAboveBar
	}
	if p.Color == "" {
		p.Color = defaultPlotcharColor
	}
	if p.Size == "" {
		p.Size = defaultPlotcharSize
	}

	if !r.store.MarkPlotchar(p) {
		return false
	}
	r.surf.SetPlotchars(r.store.Plotchars())
	r.count(func(m *metrics.Metrics) prometheus.Counter { return m.PlotcharsApplied })
	return true
}

// ApplyPlot маршрутизирует точку в именованную серию, только если серия
// была создана при snapshot-загрузке. Неизвестный title игнорируется молча:
// набор индикаторов фиксирован на сессию.
func (r *Reconciler) ApplyPlot(title string, p models.PlotPoint) bool {
	if !r.store.HasPlotSeries(title) {
		r.count(func(m *metrics.Metrics) prometheus.Counter { return m.PlotUnknownTitle })
		return false
	}
	r.surf.UpsertPlotPoint(title, p)
	r.count(func(m *metrics.Metrics) prometheus.Counter { return m.PlotPointsRouted })
	return true
}
