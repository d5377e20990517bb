package service

import (
	"fmt"

	chartstate "chart_sync/internal/modules/chartstate/service"
)

// CountdownText — строка обратного отсчёта до закрытия текущей свечи.
// Пустая строка — отсчёт не показываем: интервал неизвестен (один бар в
// истории) или снапшот ещё не загружен.
func CountdownText(cur chartstate.Cursor, nowUnix int64) string {
	if cur.IntervalSec <= 0 || cur.LastBarTime == 0 {
		return ""
	}
	remain := cur.LastBarTime + cur.IntervalSec - nowUnix
	if remain < 0 {
		remain = 0
	}
	if remain >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", remain/3600, remain%3600/60, remain%60)
	}
	return fmt.Sprintf("%d:%02d", remain/60, remain%60)
}
