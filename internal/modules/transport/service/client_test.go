package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chartstate "chart_sync/internal/modules/chartstate/service"
	"chart_sync/internal/modules/config"

	"github.com/gorilla/websocket"
)

func testConfig(wsURL string) *config.Config {
	cfg := &config.Config{
		ReconnectDelay:    10 * time.Millisecond,
		KeepaliveInterval: 20 * time.Millisecond,
	}
	cfg.Backend.WSURL = wsURL
	return cfg
}

func wsServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestClientStreamsDecodedEvents(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"bar","data":{"time":1000,"open":1,"high":2,"low":1,"close":2,"volume":1}}`))
		// битый кадр молча дропается, поток живёт дальше
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bar","data":{"time":1001}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"runner_connected"}`))
		time.Sleep(100 * time.Millisecond)
	})

	cfg := testConfig("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")
	c := NewClient(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan Event, 16)
	go c.Run(ctx, events)

	if st := nextEvent(t, events).(StatusEvent); st.Status != chartstate.Connecting {
		t.Fatalf("first status = %v, want connecting", st.Status)
	}
	if st := nextEvent(t, events).(StatusEvent); st.Status != chartstate.Connected {
		t.Fatalf("second status = %v, want connected", st.Status)
	}
	if ev, ok := nextEvent(t, events).(BarEvent); !ok || ev.Bar.Time != 1000 {
		t.Fatalf("ev = %#v, want bar at 1000", ev)
	}
	if _, ok := nextEvent(t, events).(RunnerConnected); !ok {
		t.Fatal("malformed frame must be skipped, runner_connected must follow")
	}
}

func TestClientReconnectsAfterClose(t *testing.T) {
	conns := make(chan struct{}, 8)
	srv := wsServer(t, func(conn *websocket.Conn) {
		conns <- struct{}{}
		conn.Close()
	})

	cfg := testConfig("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")
	c := NewClient(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan Event, 64)
	go c.Run(ctx, events)

	for i := 0; i < 2; i++ {
		select {
		case <-conns:
		case <-time.After(2 * time.Second):
			t.Fatalf("connection %d never arrived", i+1)
		}
	}

	// после обрыва обязан прийти disconnected перед новой попыткой
	sawDisconnect := false
	deadline := time.After(2 * time.Second)
	for !sawDisconnect {
		select {
		case ev := <-events:
			if st, ok := ev.(StatusEvent); ok && st.Status == chartstate.Disconnected {
				sawDisconnect = true
			}
		case <-deadline:
			t.Fatal("no disconnected status observed")
		}
	}
}

func TestClientKeepalive(t *testing.T) {
	pings := make(chan string, 8)
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			pings <- string(msg)
		}
	})

	cfg := testConfig("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")
	c := NewClient(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan Event, 16)
	go c.Run(ctx, events)

	select {
	case msg := <-pings:
		if msg != "ping" {
			t.Fatalf("keepalive payload = %q, want bare ping token", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive observed")
	}
}

func TestClientBounceForcesReconnect(t *testing.T) {
	conns := make(chan *websocket.Conn, 8)
	srv := wsServer(t, func(conn *websocket.Conn) {
		conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	cfg := testConfig("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws")
	c := NewClient(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan Event, 64)
	go c.Run(ctx, events)

	select {
	case <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("first connection never arrived")
	}

	c.Bounce()

	select {
	case <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect after bounce")
	}
}
