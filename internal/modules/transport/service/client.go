package service

import (
	"context"
	"sync"
	"time"

	"chart_sync/internal/metrics"
	chartstate "chart_sync/internal/modules/chartstate/service"
	"chart_sync/internal/modules/config"
	"chart_sync/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client держит одно websocket-соединение с бэкендом и переподключается
// вечно с фиксированной паузой. Наружу уходит единый канал событий:
// и кадры стрима, и переходы Disconnected/Connecting/Connected.
type Client struct {
	cfg    *config.Config
	dialer *websocket.Dialer
	m      *metrics.Metrics

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(cfg *config.Config, m *metrics.Metrics) *Client {
	return &Client{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		m:      m,
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// Bounce рвёт текущее соединение. Read-loop получит ошибку и пойдёт по
// обычному пути reconnect — отдельной ветки teardown нет.
func (c *Client) Bounce() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Run крутит connect/read/reconnect до отмены контекста. Канал out
// закрывается на выходе.
func (c *Client) Run(ctx context.Context, out chan<- Event) {
	defer close(out)

	for {
		if !c.emit(ctx, out, StatusEvent{Status: chartstate.Connecting}) {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.Backend.WSURL, nil)
		if err != nil {
			logger.Warn("transport: dial %s: %v", c.cfg.Backend.WSURL, err)
			if !c.emit(ctx, out, StatusEvent{Status: chartstate.Disconnected}) {
				return
			}
			if !c.pause(ctx) {
				return
			}
			continue
		}

		c.setConn(conn)
		if !c.emit(ctx, out, StatusEvent{Status: chartstate.Connected}) {
			_ = conn.Close()
			return
		}

		// keepalive: голый текстовый "ping", fire-and-forget. Ошибку записи
		// не обрабатываем — мёртвое соединение уронит read-loop само.
		stopPing := make(chan struct{})
		go func() {
			t := time.NewTicker(c.cfg.KeepaliveInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopPing:
					return
				case <-t.C:
					_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				}
			}
		}()

		c.readLoop(ctx, conn, out)

		// Сначала сбрасываем хэндл, потом сигналим disconnect: к моменту,
		// когда кто-то отреагирует на событие, соединения уже нет.
		close(stopPing)
		c.setConn(nil)
		_ = conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}

		if !c.emit(ctx, out, StatusEvent{Status: chartstate.Disconnected}) {
			return
		}
		if c.m != nil {
			c.m.Reconnects.Inc()
		}
		if !c.pause(ctx) {
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- Event) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("transport: read: %v", err)
			return
		}
		if len(msg) == 0 || string(msg) == "ping" || string(msg) == "pong" {
			continue
		}

		ev, err := decodeEvent(msg)
		if err != nil {
			logger.Warn("transport: drop frame: %v", err)
			if c.m != nil {
				c.m.DecodeFailures.Inc()
			}
			continue
		}
		if ev == nil {
			continue
		}
		if !c.emit(ctx, out, ev) {
			return
		}
	}
}

func (c *Client) emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) pause(ctx context.Context) bool {
	t := time.NewTimer(c.cfg.ReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
