package service

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"chart_sync/internal/models"
	"chart_sync/internal/modules/config"
	"chart_sync/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(true)
	os.Exit(m.Run())
}

func newClient(srv *httptest.Server) *Client {
	cfg := &config.Config{}
	cfg.Backend.BaseURL = srv.URL
	return NewClient(cfg)
}

func TestOHLCVFiltersMalformedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ohlcv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[
			{"time":1000,"open":1,"high":2,"low":1,"close":2,"volume":5},
			{"time":1060,"open":2,"high":3},
			{"open":3,"high":4,"low":3,"close":4},
			{"time":1120,"open":3,"high":4,"low":3,"close":4}
		]`))
	}))
	defer srv.Close()

	bars, err := newClient(srv).OHLCV(context.Background(), 2000)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want malformed rows dropped", len(bars))
	}
	if bars[0].Time != 1000 || bars[1].Time != 1120 {
		t.Fatalf("bars = %+v", bars)
	}
	if bars[1].Volume != 0 {
		t.Fatal("missing volume defaults to zero, not an error")
	}
}

func TestTradesMapsKindsAndNullPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"type":"trade_entry","time":1000,"id":"a","price":10.5,"comment":"Long"},
			{"type":"trade_close","time":1060,"id":"a","price":null,"comment":"Exit"},
			{"type":"mystery","time":1120,"id":"b"}
		]`))
	}))
	defer srv.Close()

	trades, err := newClient(srv).Trades(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d, unknown type must be skipped", len(trades))
	}
	if trades[0].Kind != models.MarkerEntry || trades[1].Kind != models.MarkerClose {
		t.Fatalf("kinds = %v %v", trades[0].Kind, trades[1].Kind)
	}
	if !math.IsNaN(trades[1].Price) {
		t.Fatalf("null price must decode to NaN, got %v", trades[1].Price)
	}
}

func TestPlotSeriesNormalizesGaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"title":"EMA","color":"#f80","linewidth":2,"style":"line",
			 "data":[{"time":1000,"value":1.5},{"time":1060,"value":null}]}
		]`))
	}))
	defer srv.Close()

	series, err := newClient(srv).PlotSeries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 1 || series[0].Title != "EMA" {
		t.Fatalf("series = %+v", series)
	}
	if !series[0].Data[1].IsGap() {
		t.Fatal("null value must become a gap, not zero")
	}
}

func TestGetSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := newClient(srv).Info(context.Background()); err == nil {
		t.Fatal("non-2xx must be an error")
	}
}

func TestUpdateWebhookConfigRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	on := true
	_, err := newClient(srv).UpdateWebhookConfig(context.Background(), models.WebhookConfigPatch{Enabled: &on})
	if err == nil {
		t.Fatal("rejected update must return an error")
	}
}
