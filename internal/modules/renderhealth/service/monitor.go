package service

import (
	"context"
	"sync"
	"time"

	"chart_sync/internal/metrics"
	"chart_sync/internal/modules/config"
	"chart_sync/internal/render"
	"chart_sync/pkg/logger"
)

// Monitor крутит repaint-loop поверх Canvas и следит за интервалами между
// тиками. Окно из cfg.FrameWindow последних дельт; если средняя доросла до
// cfg.JankThreshold — сцена деградировала настолько, что дешевле пересоздать
// сессию, чем продолжать. Запрос на reload отдаётся один раз за сессию;
// guard взводится заново через Rearm при пересоздании сессии.
type Monitor struct {
	cfg    *config.Config
	canvas *render.Canvas
	m      *metrics.Metrics

	mu       sync.Mutex
	visible  bool
	last     time.Time
	deltas   []time.Duration
	reloaded bool

	reload chan struct{}
}

func NewMonitor(cfg *config.Config, canvas *render.Canvas, m *metrics.Metrics) *Monitor {
	return &Monitor{
		cfg:     cfg,
		canvas:  canvas,
		m:       m,
		visible: true,
		deltas:  make([]time.Duration, 0, cfg.FrameWindow),
		reload:  make(chan struct{}, 1),
	}
}

// ReloadRequests — сигнал "нужен принудительный reload". Вычитывает session.
func (mo *Monitor) ReloadRequests() <-chan struct{} { return mo.reload }

// Rearm сбрасывает guard и окно замеров при пересоздании сессии: новая
// сессия снова имеет право на один reload.
func (mo *Monitor) Rearm() {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	mo.reloaded = false
	mo.deltas = mo.deltas[:0]
	mo.last = time.Time{}
}

// SetVisible приостанавливает измерения для скрытой сцены: тики таймеров
// в фоне троттлятся и средняя по ним ничего не значит. При возврате
// видимости окно начинается заново.
func (mo *Monitor) SetVisible(v bool) {
	mo.mu.Lock()
	defer mo.mu.Unlock()
	if v && !mo.visible {
		mo.deltas = mo.deltas[:0]
		mo.last = time.Time{}
	}
	mo.visible = v
}

// Run — repaint-loop. Каждый тик коммитит накопленные изменения Canvas
// и снимает замер независимо от того, был ли кадр грязным: измеряем
// здоровье самого цикла, а не частоту изменений данных.
func (mo *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(mo.cfg.RepaintInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			mo.canvas.Commit()
			mo.sample(time.Now())
		}
	}
}

func (mo *Monitor) sample(now time.Time) {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	if !mo.visible {
		return
	}
	if mo.last.IsZero() {
		mo.last = now
		return
	}
	d := now.Sub(mo.last)
	mo.last = now

	if len(mo.deltas) == mo.cfg.FrameWindow {
		copy(mo.deltas, mo.deltas[1:])
		mo.deltas = mo.deltas[:len(mo.deltas)-1]
	}
	mo.deltas = append(mo.deltas, d)
	if len(mo.deltas) < mo.cfg.FrameWindow {
		return
	}

	var total time.Duration
	for _, v := range mo.deltas {
		total += v
	}
	mean := total / time.Duration(len(mo.deltas))
	if mo.m != nil {
		mo.m.FrameMean.Set(mean.Seconds())
	}

	if mean < mo.cfg.JankThreshold || mo.reloaded {
		return
	}
	mo.reloaded = true
	logger.Warn("renderhealth: mean frame interval %v over %d frames, requesting reload",
		mean, len(mo.deltas))
	if mo.m != nil {
		mo.m.JankReloads.Inc()
	}
	select {
	case mo.reload <- struct{}{}:
	default:
	}
}
