package chartd

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"chart_sync/internal/models"
)

// Feeder генерит случайное блуждание поверх Server: история при старте,
// дальше тики текущей свечи в websocket. Нужен только для локальной
// разработки вьюера без живого бэкенда.
type Feeder struct {
	srv      *Server
	interval time.Duration
	rng      *rand.Rand

	price float64
	cur   models.Bar
	seq   int
}

func NewFeeder(srv *Server, interval time.Duration) *Feeder {
	return &Feeder{
		srv:      srv,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		price:    30000,
	}
}

// Seed наполняет сервер историей: бары, пара сделок, plot-серия, plotchar.
func (f *Feeder) Seed(bars int) {
	step := int64(f.interval / time.Second)
	start := time.Now().Unix()/step*step - int64(bars)*step

	hist := make([]models.Bar, 0, bars)
	ema := f.price
	series := models.PlotSeries{Title: "EMA", Color: "#ff9800", LineWidth: 2, Style: "line"}

	for i := 0; i < bars; i++ {
		b := f.nextBar(start + int64(i)*step)
		hist = append(hist, b)
		ema = ema*0.9 + b.Close*0.1
		series.Data = append(series.Data, models.PlotPoint{Time: b.Time, Value: ema})
	}

	var trades []models.TradeMarker
	var chars []models.PlotcharMarker
	if len(hist) > 20 {
		entry := hist[len(hist)-20]
		exit := hist[len(hist)-5]
		trades = append(trades,
			models.TradeMarker{Kind: models.MarkerEntry, Time: entry.Time, ID: "seed-1", Price: entry.Close, Comment: "Long #1"},
			models.TradeMarker{Kind: models.MarkerClose, Time: exit.Time, ID: "seed-1", Price: exit.Close, Comment: "Exit #1"},
		)
		chars = append(chars, models.PlotcharMarker{
			Time: entry.Time, Title: "signal", Location: models.LocationBelowBar,
			Text: "▲", Color: "#4caf50", Size: "small",
		})
	}

	f.srv.mu.Lock()
	f.srv.bars = hist
	f.srv.trades = trades
	f.srv.plotchars = chars
	f.srv.series = []models.PlotSeries{series}
	f.srv.info = models.ChartInfo{
		Exchange: "DEMO", Symbol: "BTCUSDT", Timeframe: timeframeName(step),
		ScriptTitle: "Random Walk",
	}
	f.srv.mu.Unlock()

	f.cur = hist[len(hist)-1]
}

// Run тикает текущую свечу раз в секунду и закрывает её по границе интервала.
func (f *Feeder) Run(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	step := int64(f.interval / time.Second)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			boundary := now.Unix() / step * step
			if boundary > f.cur.Time {
				f.rollover(boundary)
			} else {
				f.tick()
			}
			f.srv.Broadcast("bar", f.cur)
		}
	}
}

func (f *Feeder) tick() {
	f.price *= 1 + (f.rng.Float64()-0.5)*0.002
	f.cur.Close = round2(f.price)
	f.cur.High = math.Max(f.cur.High, f.cur.Close)
	f.cur.Low = math.Min(f.cur.Low, f.cur.Close)
	f.cur.Volume += f.rng.Float64() * 3
}

func (f *Feeder) rollover(boundary int64) {
	prevClose := f.cur.Close
	f.cur = models.Bar{
		Time: boundary,
		Open: prevClose, High: prevClose, Low: prevClose, Close: prevClose,
	}

	f.seq++
	switch f.seq % 7 {
	case 2:
		// каждая седьмая свеча открывается сделкой
		f.srv.BroadcastFlat("trade_entry", map[string]any{
			"time": boundary, "price": prevClose,
			"id": fmt.Sprintf("live-%d", f.seq), "comment": fmt.Sprintf("Long #%d", f.seq),
		})
	case 5:
		f.srv.BroadcastFlat("trade_close", map[string]any{
			"time": boundary, "price": prevClose,
			"id": fmt.Sprintf("live-%d", f.seq-3), "comment": fmt.Sprintf("Exit #%d", f.seq-3),
		})
	case 6:
		// пересмотр официального open формирующейся свечи
		f.srv.Broadcast("last_bar_open_fix", map[string]any{
			"time": boundary, "open": round2(prevClose * 1.0001),
		})
	}
}

func (f *Feeder) nextBar(ts int64) models.Bar {
	open := f.price
	high, low := open, open
	for i := 0; i < 10; i++ {
		f.price *= 1 + (f.rng.Float64()-0.5)*0.004
		high = math.Max(high, f.price)
		low = math.Min(low, f.price)
	}
	return models.Bar{
		Time: ts,
		Open: round2(open), High: round2(high), Low: round2(low), Close: round2(f.price),
		Volume: f.rng.Float64() * 100,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func timeframeName(stepSec int64) string {
	switch {
	case stepSec >= 3600:
		return fmt.Sprintf("%dh", stepSec/3600)
	case stepSec >= 60:
		return fmt.Sprintf("%dm", stepSec/60)
	default:
		return fmt.Sprintf("%ds", stepSec)
	}
}
