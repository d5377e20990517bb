package chartd

import (
	"sync"

	"chart_sync/internal/models"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// WebhookStore хранит webhook-конфиг в yaml-файле через viper:
// читаем, мержим только присланные поля, пишем обратно.
type WebhookStore struct {
	mu   sync.Mutex
	path string
	v    *viper.Viper
}

func NewWebhookStore(path string) *WebhookStore {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.telegram_notification", false)
	v.SetDefault("webhook.url", "")
	// отсутствующий файл — это дефолты, не ошибка
	_ = v.ReadInConfig()
	return &WebhookStore{path: path, v: v}
}

func (s *WebhookStore) Get() models.WebhookConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

func (s *WebhookStore) current() models.WebhookConfig {
	return models.WebhookConfig{
		Enabled:              s.v.GetBool("webhook.enabled"),
		TelegramNotification: s.v.GetBool("webhook.telegram_notification"),
		URL:                  s.v.GetString("webhook.url"),
	}
}

// Merge применяет частичное обновление и сохраняет файл. При ошибке записи
// in-memory значения не откатываются: следующий успешный Merge их дозапишет.
func (s *WebhookStore) Merge(p models.WebhookConfigPatch) (models.WebhookConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Enabled != nil {
		s.v.Set("webhook.enabled", *p.Enabled)
	}
	if p.TelegramNotification != nil {
		s.v.Set("webhook.telegram_notification", *p.TelegramNotification)
	}
	if p.URL != nil {
		s.v.Set("webhook.url", *p.URL)
	}

	if err := s.v.WriteConfigAs(s.path); err != nil {
		return s.current(), errors.Wrap(err, "write webhook config")
	}
	return s.current(), nil
}
