package models

import "math"

// PlotPoint — точка именованной индикаторной серии. Value == NaN рисуется
// как разрыв, не как ноль.
type PlotPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

func (p PlotPoint) IsGap() bool { return math.IsNaN(p.Value) }

// PlotSeries — индикаторная линия, создаётся один раз при snapshot-загрузке.
// Новые серии из стрима не появляются: набор индикаторов фиксирован на
// всю жизнь сессии графика.
type PlotSeries struct {
	Title     string      `json:"title"`
	Color     string      `json:"color"`
	LineWidth int         `json:"linewidth"`
	Style     string      `json:"style"`
	Data      []PlotPoint `json:"data"`
}

type PlotcharLocation string

const (
	LocationAboveBar PlotcharLocation = "aboveBar"
	LocationBelowBar PlotcharLocation = "belowBar"
	LocationAbsolute PlotcharLocation = "absolute"
)

// PlotcharMarker — дискретный символ индикатора. Ключ дедупликации (Time, Title).
type PlotcharMarker struct {
	Time     int64            `json:"time"`
	Title    string           `json:"title"`
	Location PlotcharLocation `json:"location"`
	Text     string           `json:"text,omitempty"`
	Color    string           `json:"color,omitempty"`
	Size     string           `json:"size,omitempty"`
}

type PlotcharKey struct {
	Time  int64
	Title string
}

func (p PlotcharMarker) Key() PlotcharKey {
	return PlotcharKey{Time: p.Time, Title: p.Title}
}
