package render

import (
	"sync"

	"chart_sync/internal/models"
)

// VolumeBar — производный volume-бар с цветовым ключом.
type VolumeBar struct {
	Time  int64
	Value float64
	Up    bool
}

// Scene — снимок retained-сцены для инспекции (health, тесты).
type Scene struct {
	Title      string
	Bars       []models.Bar
	Volume     []VolumeBar
	Markers    []models.TradeMarker
	EntryLine  []models.PlotPoint
	CloseLine  []models.PlotPoint
	Plots      map[string][]models.PlotPoint
	PlotStyles map[string]models.PlotSeries
	Plotchars  []models.PlotcharMarker
	Countdown  string
	Viewport   models.Viewport
	Frame      uint64 // счётчик зафиксированных кадров
}

// Canvas — retained-реализация Surface. Мутации приходят из session loop,
// кадры фиксирует repaint-цикл render health монитора, поэтому под локом.
type Canvas struct {
	mu sync.Mutex

	title     string
	bars      []models.Bar
	volume    []VolumeBar
	barIndex  map[int64]int
	markers   []models.TradeMarker
	entryLine []models.PlotPoint
	closeLine []models.PlotPoint
	plots     map[string][]models.PlotPoint
	styles    map[string]models.PlotSeries
	plotchars []models.PlotcharMarker
	countdown string
	viewport  models.Viewport
	frame     uint64
	dirty     bool
}

func NewCanvas() *Canvas {
	c := &Canvas{}
	c.resetLocked()
	return c
}

func (c *Canvas) resetLocked() {
	c.title = ""
	c.bars = nil
	c.volume = nil
	c.barIndex = make(map[int64]int)
	c.markers = nil
	c.entryLine = nil
	c.closeLine = nil
	c.plots = make(map[string][]models.PlotPoint)
	c.styles = make(map[string]models.PlotSeries)
	c.plotchars = nil
	c.countdown = ""
	c.viewport = models.Viewport{}
	c.dirty = true
}

func (c *Canvas) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
	c.dirty = true
}

func (c *Canvas) SetBars(bars []models.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bars = make([]models.Bar, len(bars))
	copy(c.bars, bars)
	c.volume = c.volume[:0]
	c.barIndex = make(map[int64]int, len(bars))
	for i, b := range c.bars {
		c.barIndex[b.Time] = i
		c.volume = append(c.volume, VolumeBar{Time: b.Time, Value: b.Volume, Up: b.Up()})
	}
	c.dirty = true
}

func (c *Canvas) UpsertBar(bar models.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.barIndex[bar.Time]; ok {
		c.bars[i] = bar
		c.volume[i] = VolumeBar{Time: bar.Time, Value: bar.Volume, Up: bar.Up()}
	} else {
		c.barIndex[bar.Time] = len(c.bars)
		c.bars = append(c.bars, bar)
		c.volume = append(c.volume, VolumeBar{Time: bar.Time, Value: bar.Volume, Up: bar.Up()})
	}
	c.dirty = true
}

func (c *Canvas) SetMarkers(ms []models.TradeMarker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers = append(c.markers[:0], ms...)
	c.dirty = true
}

func (c *Canvas) SetPriceLine(kind models.MarkerKind, pts []models.PlotPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == models.MarkerClose {
		c.closeLine = append(c.closeLine[:0], pts...)
	} else {
		c.entryLine = append(c.entryLine[:0], pts...)
	}
	c.dirty = true
}

func (c *Canvas) CreatePlotSeries(s models.PlotSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.styles[s.Title] = s
	data := make([]models.PlotPoint, len(s.Data))
	copy(data, s.Data)
	c.plots[s.Title] = data
	c.dirty = true
}

func (c *Canvas) UpsertPlotPoint(title string, p models.PlotPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pts, ok := c.plots[title]
	if !ok {
		return
	}
	if n := len(pts); n > 0 && pts[n-1].Time == p.Time {
		pts[n-1] = p
	} else {
		pts = append(pts, p)
	}
	c.plots[title] = pts
	c.dirty = true
}

func (c *Canvas) SetPlotchars(ps []models.PlotcharMarker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plotchars = append(c.plotchars[:0], ps...)
	c.dirty = true
}

func (c *Canvas) SetCountdown(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.countdown = text
	c.dirty = true
}

func (c *Canvas) ApplyViewport(vp models.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = vp
	c.dirty = true
}

func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Canvas) ClearMarkers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers = nil
	c.entryLine = nil
	c.closeLine = nil
	c.plotchars = nil
	c.dirty = true
}

// Commit фиксирует кадр, если были мутации. Вызывается repaint-циклом.
func (c *Canvas) Commit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return false
	}
	c.dirty = false
	c.frame++
	return true
}

// Viewport — текущее состояние вьюпорта (для persist перед reload).
func (c *Canvas) Viewport() models.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// Snapshot — копия сцены.
func (c *Canvas) Snapshot() Scene {
	c.mu.Lock()
	defer c.mu.Unlock()

	sc := Scene{
		Title:      c.title,
		Bars:       append([]models.Bar(nil), c.bars...),
		Volume:     append([]VolumeBar(nil), c.volume...),
		Markers:    append([]models.TradeMarker(nil), c.markers...),
		EntryLine:  append([]models.PlotPoint(nil), c.entryLine...),
		CloseLine:  append([]models.PlotPoint(nil), c.closeLine...),
		Plots:      make(map[string][]models.PlotPoint, len(c.plots)),
		PlotStyles: make(map[string]models.PlotSeries, len(c.styles)),
		Plotchars:  append([]models.PlotcharMarker(nil), c.plotchars...),
		Countdown:  c.countdown,
		Viewport:   c.viewport,
		Frame:      c.frame,
	}
	for k, v := range c.plots {
		sc.Plots[k] = append([]models.PlotPoint(nil), v...)
	}
	for k, v := range c.styles {
		sc.PlotStyles[k] = v
	}
	return sc
}
