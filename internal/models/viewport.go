package models

// VisibleRange — видимый диапазон по времени (epoch seconds, дробные допустимы).
type VisibleRange struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// LogicalRange — диапазон в логических индексах баров. Переживает мелкий
// рескейлинг оси лучше, чем VisibleRange, поэтому при восстановлении
// имеет приоритет.
type LogicalRange struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// ScaleOptions — параметры зума/смещения time-scale.
type ScaleOptions struct {
	RightOffset           float64 `json:"rightOffset"`
	BarSpacing            float64 `json:"barSpacing"`
	RightBarStaysOnScroll bool    `json:"rightBarStaysOnScroll"`
}

// Viewport — то, что best-effort сохраняется перед принудительной
// перезагрузкой и применяется ровно один раз после следующего bootstrap.
type Viewport struct {
	Visible *VisibleRange `json:"visible,omitempty"`
	Logical *LogicalRange `json:"logical,omitempty"`
	Scale   *ScaleOptions `json:"scale,omitempty"`
}

func (v Viewport) Empty() bool {
	return v.Visible == nil && v.Logical == nil && v.Scale == nil
}
