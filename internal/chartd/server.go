package chartd

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"chart_sync/internal/models"
	"chart_sync/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Server — дев-бэкенд для локальной разработки вьюера: bulk-эндпоинты
// поверх состояния в памяти плюс websocket-хаб с броадкастом событий.
type Server struct {
	webhooks *WebhookStore
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	bars      []models.Bar
	trades    []models.TradeMarker
	plotchars []models.PlotcharMarker
	series    []models.PlotSeries
	info      models.ChartInfo

	cmu     sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewServer(webhooks *WebhookStore) *Server {
	return &Server{
		webhooks: webhooks,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ohlcv", s.handleOHLCV)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/api/plotchar", s.handlePlotchars)
	mux.HandleFunc("/api/plot", s.handlePlots)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/webhook-config", s.handleWebhookConfig)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) handleOHLCV(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		limit, _ = strconv.Atoi(q)
	}
	s.mu.RLock()
	bars := s.bars
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	s.mu.RUnlock()
	s.writeJSON(w, out)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]wireTrade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, toWireTrade(t))
	}
	s.mu.RUnlock()
	s.writeJSON(w, out)
}

func (s *Server) handlePlotchars(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]models.PlotcharMarker, len(s.plotchars))
	copy(out, s.plotchars)
	s.mu.RUnlock()
	s.writeJSON(w, out)
}

func (s *Server) handlePlots(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]models.PlotSeries, len(s.series))
	copy(out, s.series)
	s.mu.RUnlock()
	s.writeJSON(w, out)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()
	s.writeJSON(w, info)
}

func (s *Server) handleWebhookConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.webhooks.Get())
	case http.MethodPost:
		var patch models.WebhookConfigPatch
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		merged, err := s.webhooks.Merge(patch)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, merged)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("chartd: upgrade: %v", err)
		return
	}

	s.cmu.Lock()
	s.clients[conn] = struct{}{}
	n := len(s.clients)
	s.cmu.Unlock()
	logger.Info("chartd: client connected, total=%d", n)

	// read-loop нужен только чтобы замечать ping и закрытие
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) drop(conn *websocket.Conn) {
	s.cmu.Lock()
	delete(s.clients, conn)
	s.cmu.Unlock()
	_ = conn.Close()
}

// Broadcast шлёт событие с payload, завёрнутым в data (bar,
// last_bar_open_fix). Мёртвые соединения отваливаются на ошибке записи.
func (s *Server) Broadcast(typ string, data any) {
	s.broadcastFrame(map[string]any{"type": typ, "data": data})
}

// BroadcastFlat шлёт событие с полями на верхнем уровне кадра, рядом с type
// (trade_entry, trade_close, plotchar, plot_data, script_info).
func (s *Server) BroadcastFlat(typ string, fields map[string]any) {
	frame := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		frame[k] = v
	}
	frame["type"] = typ
	s.broadcastFrame(frame)
}

func (s *Server) broadcastFrame(payload map[string]any) {
	frame, err := sonic.Marshal(payload)
	if err != nil {
		logger.Error("chartd: broadcast encode: %v", err)
		return
	}

	s.cmu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.cmu.Unlock()

	for _, c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
			s.drop(c)
		}
	}
}

// wireTrade — формат сделки на проводе и в /api/trades: kind кодируется
// полем type как trade_entry / trade_close.
type wireTrade struct {
	Type    string   `json:"type"`
	Time    int64    `json:"time"`
	Price   *float64 `json:"price"`
	ID      string   `json:"id"`
	Comment string   `json:"comment"`
}

func toWireTrade(t models.TradeMarker) wireTrade {
	w := wireTrade{Time: t.Time, ID: t.ID, Comment: t.Comment}
	if t.Kind == models.MarkerClose {
		w.Type = "trade_close"
	} else {
		w.Type = "trade_entry"
	}
	if t.HasPrice() {
		p := t.Price
		w.Price = &p
	}
	return w
}
