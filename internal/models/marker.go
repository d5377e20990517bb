package models

import "math"

type MarkerKind string

const (
	MarkerEntry MarkerKind = "entry"
	MarkerClose MarkerKind = "close"
)

// TradeMarker — маркер сделки на графике. Идентичность (Kind, Time, ID)
// неизменна; отображаемая цена может быть переписана задним числом
// после last_bar_open_fix.
type TradeMarker struct {
	Kind    MarkerKind `json:"kind"`
	Time    int64      `json:"time"`
	ID      string     `json:"id"`
	Price   float64    `json:"price"` // NaN, если цена не пришла
	Comment string     `json:"comment,omitempty"`
}

// HasPrice — конечная цена присутствует (NaN/Inf не рисуем в price-line).
func (m TradeMarker) HasPrice() bool {
	return !math.IsNaN(m.Price) && !math.IsInf(m.Price, 0)
}

// TradeKey — ключ дедупликации маркеров сделок.
type TradeKey struct {
	Kind MarkerKind
	Time int64
	ID   string
}

func (m TradeMarker) Key() TradeKey {
	return TradeKey{Kind: m.Kind, Time: m.Time, ID: m.ID}
}
