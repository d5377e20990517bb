package service

import (
	"context"
	"fmt"
	"time"

	"chart_sync/internal/metrics"
	"chart_sync/internal/models"
	chartstate "chart_sync/internal/modules/chartstate/service"
	"chart_sync/internal/modules/config"
	reconcile "chart_sync/internal/modules/reconcile/service"
	"chart_sync/internal/render"
	"chart_sync/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// ErrTimeout — потолок ретраев исчерпан. Не фатально: UI остаётся в
// loading-состоянии до следующего триггера (reconnect, runner_connected).
var ErrTimeout = errors.New("snapshot: retry ceiling exhausted")

// API — bulk-эндпоинты, которые нужны загрузчику (реализует dataservice.Client).
type API interface {
	OHLCV(ctx context.Context, limit int) ([]models.Bar, error)
	Trades(ctx context.Context) ([]models.TradeMarker, error)
	Plotchars(ctx context.Context) ([]models.PlotcharMarker, error)
	PlotSeries(ctx context.Context) ([]models.PlotSeries, error)
	Info(ctx context.Context) (models.ChartInfo, error)
}

// Loader — bootstrap стора из bulk-эндпоинтов. Одна загрузка на сессию;
// перекрывающиеся триггеры (connect + runner_connected через мгновение)
// гасятся флагами inFlight/done, а не отменой.
type Loader struct {
	cfg   *config.Config
	api   API
	store *chartstate.Store
	rec   *reconcile.Reconciler
	surf  render.Surface
	m     *metrics.Metrics

	inFlight bool
	done     bool
}

func NewLoader(cfg *config.Config, api API, store *chartstate.Store, rec *reconcile.Reconciler, surf render.Surface, m *metrics.Metrics) *Loader {
	return &Loader{cfg: cfg, api: api, store: store, rec: rec, surf: surf, m: m}
}

// Reset сбрасывает guard завершённой загрузки (rebuild сессии).
func (l *Loader) Reset() { l.done = false }

// Loaded — snapshot уже применён для текущей сессии.
func (l *Loader) Loaded() bool { return l.done }

// Load выполняет всю последовательность bootstrap. Повторный вызов во время
// работы или после успеха — no-op.
func (l *Loader) Load(ctx context.Context) error {
	if l.inFlight || l.done {
		return nil
	}
	l.inFlight = true
	defer func() { l.inFlight = false }()

	span := opentracing.StartSpan("snapshot_load")
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	bars, err := l.pollOHLCV(ctx)
	if err != nil {
		logger.Error("snapshot: ohlcv load failed: %v", err)
		return err
	}

	cur := &l.store.Cursor
	cur.FirstBarTime = bars[0].Time
	if len(bars) >= 2 {
		cur.IntervalSec = bars[1].Time - bars[0].Time
	}
	tail := bars[len(bars)-1]
	cur.LastBarTime = tail.Time
	cur.LastPrice = tail.Close
	cur.LastBar = tail
	l.surf.SetBars(bars)

	if err := l.loadTrades(ctx); err != nil {
		logger.Error("snapshot: trade history load failed: %v", err)
		return err
	}
	if err := l.loadPlotchars(ctx); err != nil {
		logger.Error("snapshot: plotchar history load failed: %v", err)
		return err
	}
	if err := l.loadPlotSeries(ctx); err != nil {
		logger.Error("snapshot: plot series load failed: %v", err)
		return err
	}

	l.loadInfo(ctx)

	l.store.LoadComplete = true
	l.done = true
	if l.m != nil {
		l.m.SnapshotLoads.Inc()
	}
	logger.Info("snapshot: initial load complete, bars=%d first=%d interval=%d",
		len(bars), cur.FirstBarTime, cur.IntervalSec)
	return nil
}

// pollOHLCV опрашивает /api/ohlcv до непустого well-formed батча.
func (l *Loader) pollOHLCV(ctx context.Context) ([]models.Bar, error) {
	for attempt := 0; attempt < l.cfg.SnapshotRetryLimit; attempt++ {
		bars, err := l.api.OHLCV(ctx, l.cfg.SnapshotBarLimit)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if err != nil {
			logger.Warn("snapshot: ohlcv attempt %d: %v", attempt+1, err)
		}
		if err := l.pause(ctx); err != nil {
			return nil, err
		}
	}
	return nil, ErrTimeout
}

func (l *Loader) loadTrades(ctx context.Context) error {
	for attempt := 0; attempt < l.cfg.SnapshotRetryLimit; attempt++ {
		trades, err := l.api.Trades(ctx)
		if err == nil {
			for _, t := range trades {
				l.rec.ApplyTrade(t)
			}
			return nil
		}
		logger.Warn("snapshot: trades attempt %d: %v", attempt+1, err)
		if err := l.pause(ctx); err != nil {
			return err
		}
	}
	return ErrTimeout
}

func (l *Loader) loadPlotchars(ctx context.Context) error {
	for attempt := 0; attempt < l.cfg.SnapshotRetryLimit; attempt++ {
		chars, err := l.api.Plotchars(ctx)
		if err == nil {
			for _, p := range chars {
				l.rec.ApplyPlotchar(p)
			}
			return nil
		}
		logger.Warn("snapshot: plotchar attempt %d: %v", attempt+1, err)
		if err := l.pause(ctx); err != nil {
			return err
		}
	}
	return ErrTimeout
}

// loadPlotSeries ретраит и пустой ответ: бэкенд может ещё не успеть
// посчитать серии к моменту коннекта.
func (l *Loader) loadPlotSeries(ctx context.Context) error {
	for attempt := 0; attempt < l.cfg.SnapshotRetryLimit; attempt++ {
		series, err := l.api.PlotSeries(ctx)
		if err == nil && len(series) > 0 {
			for _, s := range series {
				l.store.RegisterPlotSeries(s.Title)
				l.surf.CreatePlotSeries(s)
			}
			return nil
		}
		if err != nil {
			logger.Warn("snapshot: plot series attempt %d: %v", attempt+1, err)
		}
		if err := l.pause(ctx); err != nil {
			return err
		}
	}
	// Скрипт без plot() — валидный случай, серий просто не будет.
	logger.Info("snapshot: no plot series after %d attempts", l.cfg.SnapshotRetryLimit)
	return nil
}

// loadInfo — best effort: заголовок не критичен для согласованности.
func (l *Loader) loadInfo(ctx context.Context) {
	info, err := l.api.Info(ctx)
	if err != nil {
		logger.Warn("snapshot: info fetch failed: %v", err)
		return
	}
	title := fmt.Sprintf("%s:%s %s", info.Exchange, info.Symbol, info.Timeframe)
	if info.ScriptTitle != "" {
		title += " — " + info.ScriptTitle
	}
	l.store.Title = title
	l.surf.SetTitle(title)
}

func (l *Loader) pause(ctx context.Context) error {
	if l.m != nil {
		l.m.SnapshotRetries.Inc()
	}
	t := time.NewTimer(l.cfg.SnapshotRetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
