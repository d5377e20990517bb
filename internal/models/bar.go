package models

// Bar — одна OHLCV свеча. Time в epoch seconds и является первичным ключом
// внутри серии: в steady state дубликатов нет, но тот же time может прийти
// повторно с исправленным open (см. last_bar_open_fix).
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Up — ключ цвета для volume-баров: close >= open.
func (b Bar) Up() bool { return b.Close >= b.Open }

// OpenCorrection — авторитетный open для бара с данным временем,
// объявленный задним числом.
type OpenCorrection struct {
	Time  int64   `json:"time"`
	Value float64 `json:"open"`
}
