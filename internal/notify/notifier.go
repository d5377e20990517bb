package notify

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"chart_sync/internal/models"
	"chart_sync/pkg/logger"

	"github.com/bytedance/sonic"
	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Telegram — пассивный нотифайер: только отправка, без команд.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Stdout — заглушка, всё логирует.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }

// Dispatcher рассылает принятые (после dedup) сделки по каналам, которые
// включены в webhook-конфиге бэкенда. Конфиг подменяется на лету, когда
// его меняют через API.
type Dispatcher struct {
	tg   Notifier
	http *http.Client

	mu  sync.RWMutex
	cfg models.WebhookConfig
}

func NewDispatcher(tg Notifier) *Dispatcher {
	return &Dispatcher{
		tg:   tg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Dispatcher) SetConfig(cfg models.WebhookConfig) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *Dispatcher) Config() models.WebhookConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Trade — уведомление об одной принятой сделке. Ошибки доставки только
// логируются: нотификации не влияют на согласованность графика.
func (d *Dispatcher) Trade(m models.TradeMarker) {
	cfg := d.Config()
	if !cfg.Enabled {
		return
	}

	if cfg.TelegramNotification && d.tg != nil {
		verb := "Вход"
		if m.Kind == models.MarkerClose {
			verb = "Выход"
		}
		if m.HasPrice() {
			d.tg.Sendf("%s: %s @ %.4f", verb, m.Comment, m.Price)
		} else {
			d.tg.Sendf("%s: %s", verb, m.Comment)
		}
	}

	if cfg.URL != "" {
		d.post(cfg.URL, m)
	}
}

func (d *Dispatcher) post(url string, m models.TradeMarker) {
	body, err := sonic.Marshal(m)
	if err != nil {
		logger.Error("notify: webhook encode: %v", err)
		return
	}
	resp, err := d.http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn("notify: webhook post: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		logger.Warn("notify: webhook status %d", resp.StatusCode)
	}
}
