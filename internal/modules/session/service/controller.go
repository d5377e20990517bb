package service

import (
	"context"
	"time"

	chartstate "chart_sync/internal/modules/chartstate/service"
	"chart_sync/internal/modules/config"
	dataservice "chart_sync/internal/modules/dataservice/service"
	health "chart_sync/internal/modules/health/service"
	reconcile "chart_sync/internal/modules/reconcile/service"
	renderhealth "chart_sync/internal/modules/renderhealth/service"
	snapshot "chart_sync/internal/modules/snapshot/service"
	transport "chart_sync/internal/modules/transport/service"
	"chart_sync/internal/notify"
	"chart_sync/internal/render"
	"chart_sync/internal/viewport"
	"chart_sync/pkg/logger"
)

// Transport — то, что контроллеру нужно от websocket-клиента.
type Transport interface {
	Run(ctx context.Context, out chan<- transport.Event)
	Bounce()
}

// Controller — единственный потребитель событий стрима. Всё состояние
// (Store) мутируется только из Run, поэтому ни Store, ни Reconciler не
// нуждаются в локах. Canvas со своим мьютексом — единственная граница
// с repaint-loop'ом.
type Controller struct {
	cfg     *config.Config
	store   *chartstate.Store
	loader  *snapshot.Loader
	rec     *reconcile.Reconciler
	tr      Transport
	api     *dataservice.Client
	surf    render.Surface
	canvas  *render.Canvas
	monitor *renderhealth.Monitor
	vp      *viewport.Store
	disp    *notify.Dispatcher
	hs      *health.State

	// pendingViewport применяется один раз, после первого полного снапшота.
	pendingViewport bool
}

func NewController(
	cfg *config.Config,
	store *chartstate.Store,
	loader *snapshot.Loader,
	rec *reconcile.Reconciler,
	tr *transport.Client,
	api *dataservice.Client,
	surf render.Surface,
	canvas *render.Canvas,
	monitor *renderhealth.Monitor,
	vp *viewport.Store,
	disp *notify.Dispatcher,
	hs *health.State,
) *Controller {
	return &Controller{
		cfg:     cfg,
		store:   store,
		loader:  loader,
		rec:     rec,
		tr:      tr,
		api:     api,
		surf:    surf,
		canvas:  canvas,
		monitor: monitor,
		vp:      vp,
		disp:    disp,
		hs:      hs,
	}
}

// Run — главный цикл сессии. Блокируется до отмены контекста.
func (c *Controller) Run(ctx context.Context) {
	events := make(chan transport.Event, 64)
	go c.tr.Run(ctx, events)

	countdown := time.NewTicker(c.cfg.CountdownInterval)
	defer countdown.Stop()

	// Вьюпорт из прошлого процесса (если reload был принудительным)
	// применяется после первого полного снапшота.
	if c.vp.Has() {
		c.pendingViewport = true
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			c.dispatch(ctx, ev)
			c.publishHealth()

		case <-countdown.C:
			c.surf.SetCountdown(renderhealth.CountdownText(c.store.Cursor, time.Now().Unix()))

		case <-c.monitor.ReloadRequests():
			c.forceReload()
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, ev transport.Event) {
	switch e := ev.(type) {
	case transport.StatusEvent:
		c.onStatus(ctx, e.Status)

	case transport.ScriptModified:
		// Скрипт пересобран: текущая история невалидна целиком, но транспорт
		// живой — соединение не трогаем, снапшот перезагружаем сразу.
		logger.Info("session: script modified, rebuilding")
		c.resetSession()
		c.load(ctx)

	case transport.RunnerConnected:
		c.store.RunnerAttached = true
		c.load(ctx)

	case transport.RunnerDisconnected:
		// Раннер ушёл: история баров остаётся, живые маркеры — нет.
		c.store.RunnerAttached = false
		c.store.Title = ""
		c.surf.SetTitle("")
		c.store.ResetMarkers()
		c.surf.ClearMarkers()

	case transport.ScriptInfo:
		c.store.Title = e.Title
		c.surf.SetTitle(e.Title)

	case transport.BarEvent:
		c.rec.ApplyBar(e.Bar)

	case transport.OpenFixEvent:
		c.rec.ApplyOpenFix(e.Fix)

	case transport.TradeEvent:
		if c.rec.ApplyTrade(e.Marker) && c.disp != nil {
			c.disp.Trade(e.Marker)
		}

	case transport.PlotcharEvent:
		c.rec.ApplyPlotchar(e.Marker)

	case transport.PlotDataEvent:
		c.rec.ApplyPlot(e.Title, e.Point)
	}
}

func (c *Controller) onStatus(ctx context.Context, st chartstate.ConnStatus) {
	prev := c.store.Status
	c.store.Status = st

	switch st {
	case chartstate.Connected:
		logger.Info("session: connected")
		c.load(ctx)
	case chartstate.Disconnected:
		if prev == chartstate.Connected {
			// Стрим оборвался: маркеры больше не достоверны, бары — да.
			c.store.ResetMarkers()
			c.surf.ClearMarkers()
		}
	}
}

// load запускает snapshot-загрузку; перекрывающиеся вызовы гасит сам Loader.
// После первой успешной загрузки применяется отложенный вьюпорт и
// подтягивается webhook-конфиг для нотификаций.
func (c *Controller) load(ctx context.Context) {
	already := c.loader.Loaded()
	if err := c.loader.Load(ctx); err != nil {
		logger.Error("session: snapshot load: %v", err)
		return
	}
	if already || !c.loader.Loaded() {
		return
	}

	if c.pendingViewport {
		if v, ok := c.vp.Take(); ok {
			// Логический диапазон устойчивее к рескейлингу оси, при наличии
			// обоих видимый не применяем.
			if v.Logical != nil {
				v.Visible = nil
			}
			c.surf.ApplyViewport(v)
		}
		c.pendingViewport = false
	}

	if c.disp != nil {
		if wc, err := c.api.WebhookConfig(ctx); err == nil {
			c.disp.SetConfig(wc)
		} else {
			logger.Warn("session: webhook config fetch: %v", err)
		}
	}
}

// resetSession — полный сброс состояния сессии: стор пересоздаётся, guard
// загрузчика и jank-guard монитора взводятся заново, сцена чистая. Транспорт
// не трогается — это забота вызывающего.
func (c *Controller) resetSession() {
	c.store.Rebuild()
	c.loader.Reset()
	c.surf.Clear()
	if c.monitor != nil {
		c.monitor.Rearm()
	}
}

// forceReload — реакция на деградацию рендера: сохранить вьюпорт, снести
// сцену, пересоздать сессию через переподключение. Снапшот стартует по
// событию Connected после реконнекта, вьюпорт вернётся после него.
func (c *Controller) forceReload() {
	logger.Warn("session: forced reload")
	if err := c.vp.Save(c.canvas.Viewport()); err != nil {
		logger.Warn("session: viewport save: %v", err)
	}
	c.pendingViewport = true
	c.resetSession()
	c.tr.Bounce()
}

// publishHealth — атомарный слепок для health-эндпоинтов: они читают
// из других горутин и в Store им нельзя.
func (c *Controller) publishHealth() {
	if c.hs == nil {
		return
	}
	c.hs.SetReady(c.store.LoadComplete)
	c.hs.SetStatus(c.store.Status)
	c.hs.SetRunnerAttached(c.store.RunnerAttached)
	c.hs.SetLastBarTime(c.store.Cursor.LastBarTime)
}
