package models

// ChartInfo — ответ /api/info.
type ChartInfo struct {
	Exchange    string `json:"exchange"`
	Symbol      string `json:"symbol"`
	Timeframe   string `json:"timeframe"`
	ScriptTitle string `json:"script_title,omitempty"`
}

// WebhookConfig — ответ /api/webhook-config. POST с частичными полями
// мержится на стороне бэкенда; non-2xx означает отказ без локального
// изменения состояния.
type WebhookConfig struct {
	Enabled              bool   `json:"enabled"`
	TelegramNotification bool   `json:"telegram_notification"`
	URL                  string `json:"url,omitempty"`
}

// WebhookConfigPatch — частичное обновление: nil-поле не трогает текущее значение.
type WebhookConfigPatch struct {
	Enabled              *bool   `json:"enabled,omitempty"`
	TelegramNotification *bool   `json:"telegram_notification,omitempty"`
	URL                  *string `json:"url,omitempty"`
}
