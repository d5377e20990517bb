package service

import (
	"math"
	"testing"

	"chart_sync/internal/models"
)

func TestMarkTradeDedup(t *testing.T) {
	s := NewStore()
	m := models.TradeMarker{Kind: models.MarkerEntry, Time: 100, ID: "t1", Price: 10}

	if !s.MarkTrade(m) {
		t.Fatal("first MarkTrade must succeed")
	}
	if s.MarkTrade(m) {
		t.Fatal("duplicate (kind,time,id) must be rejected")
	}
	// тот же id и время, но другой kind — это другой маркер
	m.Kind = models.MarkerClose
	if !s.MarkTrade(m) {
		t.Fatal("same id with different kind is a distinct marker")
	}
	if len(s.Markers()) != 2 {
		t.Fatalf("markers = %d, want 2", len(s.Markers()))
	}
}

func TestMarkersSortedByTime(t *testing.T) {
	s := NewStore()
	for _, tm := range []int64{300, 100, 200} {
		s.MarkTrade(models.TradeMarker{Kind: models.MarkerEntry, Time: tm, ID: "x", Price: 1})
	}
	ms := s.Markers()
	for i := 1; i < len(ms); i++ {
		if ms[i-1].Time > ms[i].Time {
			t.Fatalf("markers not sorted: %d before %d", ms[i-1].Time, ms[i].Time)
		}
	}
}

func TestPriceRowsSkipGaps(t *testing.T) {
	s := NewStore()
	k1 := models.TradeKey{Kind: models.MarkerEntry, Time: 100, ID: "a"}
	k2 := models.TradeKey{Kind: models.MarkerEntry, Time: 200, ID: "b"}
	s.SetPriceRow(k1, models.PlotPoint{Time: 100, Value: 10})
	s.SetPriceRow(k2, models.PlotPoint{Time: 200, Value: math.NaN()})

	rows := s.PriceRows(models.MarkerEntry)
	if len(rows) != 1 || rows[0].Time != 100 {
		t.Fatalf("rows = %v, want single finite row at t=100", rows)
	}
}

func TestResetMarkersKeepsCursor(t *testing.T) {
	s := NewStore()
	s.Cursor.FirstBarTime = 1000
	s.Cursor.LastBarTime = 2000
	s.RegisterPlotSeries("EMA")
	s.MarkTrade(models.TradeMarker{Kind: models.MarkerEntry, Time: 1500, ID: "a", Price: 1})
	s.MarkPlotchar(models.PlotcharMarker{Time: 1500, Title: "sig"})

	s.ResetMarkers()

	if len(s.Markers()) != 0 || len(s.Plotchars()) != 0 {
		t.Fatal("volatile collections must be empty after reset")
	}
	if s.Cursor.LastBarTime != 2000 || s.Cursor.FirstBarTime != 1000 {
		t.Fatal("cursor must survive marker reset")
	}
	if !s.HasPlotSeries("EMA") {
		t.Fatal("plot series registry must survive marker reset")
	}
}

func TestRebuildDropsEverything(t *testing.T) {
	s := NewStore()
	s.Title = "X"
	s.LoadComplete = true
	s.Cursor.LastBarTime = 2000
	s.RegisterPlotSeries("EMA")
	s.MarkTrade(models.TradeMarker{Kind: models.MarkerEntry, Time: 1500, ID: "a", Price: 1})

	s.Rebuild()

	if s.Title != "" || s.LoadComplete || s.Cursor.LastBarTime != 0 {
		t.Fatal("rebuild must clear title, load flag and cursor")
	}
	if s.HasPlotSeries("EMA") || len(s.Markers()) != 0 {
		t.Fatal("rebuild must clear series registry and markers")
	}
}

func TestMarkersAt(t *testing.T) {
	s := NewStore()
	s.MarkTrade(models.TradeMarker{Kind: models.MarkerEntry, Time: 100, ID: "a", Price: 1})
	s.MarkTrade(models.TradeMarker{Kind: models.MarkerClose, Time: 100, ID: "a", Price: 2})
	s.MarkTrade(models.TradeMarker{Kind: models.MarkerEntry, Time: 200, ID: "b", Price: 3})

	if got := len(s.MarkersAt(100)); got != 2 {
		t.Fatalf("MarkersAt(100) = %d, want 2", got)
	}
	if got := len(s.MarkersAt(300)); got != 0 {
		t.Fatalf("MarkersAt(300) = %d, want 0", got)
	}
}

func TestConnStatusString(t *testing.T) {
	cases := map[ConnStatus]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
	}
	for st, want := range cases {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}
