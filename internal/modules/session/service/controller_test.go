package service

import (
	"context"
	"os"
	"testing"
	"time"

	"chart_sync/internal/models"
	chartstate "chart_sync/internal/modules/chartstate/service"
	"chart_sync/internal/modules/config"
	healthsvc "chart_sync/internal/modules/health/service"
	reconcile "chart_sync/internal/modules/reconcile/service"
	snapshot "chart_sync/internal/modules/snapshot/service"
	transport "chart_sync/internal/modules/transport/service"
	"chart_sync/internal/render"
	"chart_sync/internal/viewport"
	"chart_sync/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(true)
	os.Exit(m.Run())
}

type fakeTransport struct {
	bounces int
}

func (f *fakeTransport) Run(ctx context.Context, out chan<- transport.Event) { <-ctx.Done() }
func (f *fakeTransport) Bounce()                                             { f.bounces++ }

type fakeAPI struct {
	bars []models.Bar
}

func (f *fakeAPI) OHLCV(ctx context.Context, limit int) ([]models.Bar, error) { return f.bars, nil }
func (f *fakeAPI) Trades(ctx context.Context) ([]models.TradeMarker, error)   { return nil, nil }
func (f *fakeAPI) Plotchars(ctx context.Context) ([]models.PlotcharMarker, error) {
	return nil, nil
}
func (f *fakeAPI) PlotSeries(ctx context.Context) ([]models.PlotSeries, error) { return nil, nil }
func (f *fakeAPI) Info(ctx context.Context) (models.ChartInfo, error) {
	return models.ChartInfo{Exchange: "T", Symbol: "X", Timeframe: "1m"}, nil
}

type rig struct {
	c      *Controller
	store  *chartstate.Store
	canvas *render.Canvas
	tr     *fakeTransport
}

func newRig(t *testing.T) *rig {
	cfg := &config.Config{
		SnapshotRetryLimit: 3,
		SnapshotRetryDelay: time.Millisecond,
		SnapshotBarLimit:   2000,
		OpenFixTolerance:   0.01,
		OpenEpsilon:        1e-9,
		CountdownInterval:  time.Second,
	}
	store := chartstate.NewStore()
	canvas := render.NewCanvas()
	rec := reconcile.NewReconciler(cfg, store, canvas, nil)
	api := &fakeAPI{bars: []models.Bar{
		{Time: 1000, Open: 1, High: 2, Low: 1, Close: 2},
		{Time: 1060, Open: 2, High: 3, Low: 2, Close: 3},
	}}
	loader := snapshot.NewLoader(cfg, api, store, rec, canvas, nil)
	tr := &fakeTransport{}
	return &rig{
		c: &Controller{
			cfg:    cfg,
			store:  store,
			loader: loader,
			rec:    rec,
			tr:     tr,
			surf:   canvas,
			canvas: canvas,
			vp:     viewport.NewStore(t.TempDir()),
			hs:     healthsvc.NewState(),
		},
		store:  store,
		canvas: canvas,
		tr:     tr,
	}
}

func (r *rig) connect(t *testing.T) {
	t.Helper()
	r.c.dispatch(context.Background(), transport.StatusEvent{Status: chartstate.Connecting})
	r.c.dispatch(context.Background(), transport.StatusEvent{Status: chartstate.Connected})
	if !r.store.LoadComplete {
		t.Fatal("connect must finish the snapshot load")
	}
}

func TestConnectTriggersSnapshot(t *testing.T) {
	r := newRig(t)
	r.connect(t)

	if r.store.Status != chartstate.Connected {
		t.Fatalf("status = %v", r.store.Status)
	}
	if got := len(r.canvas.Snapshot().Bars); got != 2 {
		t.Fatalf("scene bars = %d, want 2", got)
	}
	if r.store.Cursor.IntervalSec != 60 {
		t.Fatalf("interval = %d", r.store.Cursor.IntervalSec)
	}
}

func TestStreamEventsFlowThroughReconciler(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	ctx := context.Background()

	r.c.dispatch(ctx, transport.BarEvent{Bar: models.Bar{Time: 1120, Open: 3, High: 4, Low: 3, Close: 4}})
	r.c.dispatch(ctx, transport.TradeEvent{Marker: models.TradeMarker{
		Kind: models.MarkerEntry, Time: 1120, ID: "t1", Price: 3.5,
	}})

	sc := r.canvas.Snapshot()
	if len(sc.Bars) != 3 || len(sc.Markers) != 1 {
		t.Fatalf("bars=%d markers=%d", len(sc.Bars), len(sc.Markers))
	}
	if r.store.Cursor.LastBarTime != 1120 {
		t.Fatalf("cursor = %d", r.store.Cursor.LastBarTime)
	}
}

func TestDisconnectClearsMarkersKeepsBars(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	ctx := context.Background()
	r.c.dispatch(ctx, transport.TradeEvent{Marker: models.TradeMarker{
		Kind: models.MarkerEntry, Time: 1060, ID: "t1", Price: 2.5,
	}})

	r.c.dispatch(ctx, transport.StatusEvent{Status: chartstate.Disconnected})

	sc := r.canvas.Snapshot()
	if len(sc.Bars) != 2 {
		t.Fatal("bars must survive a disconnect")
	}
	if len(sc.Markers) != 0 {
		t.Fatal("markers are volatile and must clear on disconnect")
	}
	if r.store.Cursor.LastBarTime != 1060 {
		t.Fatal("cursor must survive a disconnect")
	}
}

func TestReplayedTradeAfterReconnectIsNotDuplicated(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	ctx := context.Background()
	m := models.TradeMarker{Kind: models.MarkerEntry, Time: 1060, ID: "t1", Price: 2.5}

	r.c.dispatch(ctx, transport.TradeEvent{Marker: m})
	r.c.dispatch(ctx, transport.StatusEvent{Status: chartstate.Disconnected})
	r.c.dispatch(ctx, transport.StatusEvent{Status: chartstate.Connecting})
	r.c.dispatch(ctx, transport.StatusEvent{Status: chartstate.Connected})
	// бэкенд переигрывает ту же сделку после реконнекта
	r.c.dispatch(ctx, transport.TradeEvent{Marker: m})
	r.c.dispatch(ctx, transport.TradeEvent{Marker: m})

	if got := len(r.canvas.Snapshot().Markers); got != 1 {
		t.Fatalf("markers = %d, replay must dedup", got)
	}
}

// script_modified пересобирает сессию по живому соединению: транспорт не
// трогается, снапшот перезагружается сразу.
func TestScriptModifiedRebuildsSession(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	ctx := context.Background()
	// маркер прошлой сессии не должен пережить пересборку
	r.c.dispatch(ctx, transport.TradeEvent{Marker: models.TradeMarker{
		Kind: models.MarkerEntry, Time: 1060, ID: "old", Price: 2.5,
	}})

	r.c.dispatch(ctx, transport.ScriptModified{})

	if r.tr.bounces != 0 {
		t.Fatalf("bounces = %d, rebuild must keep the transport open", r.tr.bounces)
	}
	if !r.store.LoadComplete {
		t.Fatal("snapshot must reload immediately, not wait for a reconnect")
	}
	sc := r.canvas.Snapshot()
	if got := len(sc.Bars); got != 2 {
		t.Fatalf("scene bars = %d, want a fresh snapshot", got)
	}
	if len(sc.Markers) != 0 {
		t.Fatal("markers from the previous session must not survive the rebuild")
	}
	// пересобранный стор принимает старый id заново: дедуп-память новая
	r.c.dispatch(ctx, transport.TradeEvent{Marker: models.TradeMarker{
		Kind: models.MarkerEntry, Time: 1060, ID: "old", Price: 2.5,
	}})
	if got := len(r.canvas.Snapshot().Markers); got != 1 {
		t.Fatalf("markers = %d, rebuilt dedup memory must accept the id", got)
	}
}

func TestRunnerDetachBlanksTitle(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	ctx := context.Background()
	r.c.dispatch(ctx, transport.ScriptInfo{Title: "Strategy v2"})
	if r.canvas.Snapshot().Title != "Strategy v2" {
		t.Fatal("script info must set the title")
	}

	r.c.dispatch(ctx, transport.RunnerDisconnected{})
	if r.store.RunnerAttached || r.canvas.Snapshot().Title != "" {
		t.Fatal("runner detach must blank the title")
	}
	if got := len(r.canvas.Snapshot().Bars); got != 2 {
		t.Fatal("bars must survive runner detach")
	}
}

func TestForcedReloadPersistsViewportAndReappliesOnce(t *testing.T) {
	r := newRig(t)
	r.connect(t)
	vp := models.Viewport{Logical: &models.LogicalRange{From: 5, To: 95}}
	r.canvas.ApplyViewport(vp)

	r.c.forceReload()

	if r.tr.bounces != 1 {
		t.Fatal("forced reload must bounce the connection")
	}
	if !r.c.pendingViewport {
		t.Fatal("viewport must be pending for the next snapshot")
	}

	// реконнект: снапшот загружается и вьюпорт возвращается
	r.c.dispatch(context.Background(), transport.StatusEvent{Status: chartstate.Connected})
	got := r.canvas.Snapshot().Viewport
	if got.Logical == nil || got.Logical.From != 5 {
		t.Fatalf("viewport = %+v, want restored", got)
	}
	if r.c.pendingViewport {
		t.Fatal("pending flag must burn after one application")
	}
	if r.c.vp.Has() {
		t.Fatal("persisted record must be consumed")
	}
}

func TestHealthSnapshotPublished(t *testing.T) {
	r := newRig(t)
	r.c.dispatch(context.Background(), transport.StatusEvent{Status: chartstate.Connected})
	r.c.publishHealth()

	if !r.c.hs.Ready() {
		t.Fatal("ready must mirror load completion")
	}
	if r.c.hs.Status() != chartstate.Connected {
		t.Fatalf("status = %v", r.c.hs.Status())
	}
}
