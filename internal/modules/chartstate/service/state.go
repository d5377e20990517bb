package service

import (
	"sort"

	"chart_sync/internal/models"
)

type ConnStatus int

const (
	Disconnected ConnStatus = iota
	Connecting
	Connected
)

func (s ConnStatus) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Cursor — курсор синхронизации. FirstBarTime ставится ровно один раз на
// snapshot-загрузку и отсекает маркеры из прошлой сессии; LastBarTime
// monotonic non-decreasing. IntervalSec == 0 выключает countdown без ошибки.
type Cursor struct {
	FirstBarTime int64
	IntervalSec  int64
	LastBarTime  int64
	LastPrice    float64
	LastBar      models.Bar
	OpenFix      *models.OpenCorrection
}

// Store — единственная мутабельная запись состояния. Никакого поведения:
// мутируется только из одного control flow (session loop), поэтому без локов.
type Store struct {
	Status         ConnStatus
	RunnerAttached bool
	Title          string
	LoadComplete   bool

	Cursor Cursor

	// Четыре dedup-коллекции. Reset чистит все зависимые атомарно.
	markers   map[models.TradeKey]*models.TradeMarker
	entryRows map[models.TradeKey]models.PlotPoint
	closeRows map[models.TradeKey]models.PlotPoint
	plotchars map[models.PlotcharKey]models.PlotcharMarker

	// Серии, созданные строго во время snapshot-загрузки.
	plotTitles map[string]struct{}
}

func NewStore() *Store {
	s := &Store{}
	s.resetCollections()
	return s
}

func (s *Store) resetCollections() {
	s.markers = make(map[models.TradeKey]*models.TradeMarker)
	s.entryRows = make(map[models.TradeKey]models.PlotPoint)
	s.closeRows = make(map[models.TradeKey]models.PlotPoint)
	s.plotchars = make(map[models.PlotcharKey]models.PlotcharMarker)
	s.plotTitles = make(map[string]struct{})
}

// Rebuild — полная пересборка (смена скрипта, принудительный reload).
// Курсор, dedup-коллекции и набор серий уходят вместе, частичного
// состояния наблюдать нельзя.
func (s *Store) Rebuild() {
	s.Title = ""
	s.LoadComplete = false
	s.Cursor = Cursor{}
	s.resetCollections()
}

// ResetMarkers — сброс волатильных маркеров при дисконнекте: бары и курсор
// остаются, переживают жизнь коннекта только они.
func (s *Store) ResetMarkers() {
	s.markers = make(map[models.TradeKey]*models.TradeMarker)
	s.entryRows = make(map[models.TradeKey]models.PlotPoint)
	s.closeRows = make(map[models.TradeKey]models.PlotPoint)
	s.plotchars = make(map[models.PlotcharKey]models.PlotcharMarker)
}

// MarkTrade регистрирует маркер; повтор по (kind, time, id) — false.
func (s *Store) MarkTrade(m models.TradeMarker) bool {
	k := m.Key()
	if _, ok := s.markers[k]; ok {
		return false
	}
	cp := m
	s.markers[k] = &cp
	return true
}

func (s *Store) Trade(k models.TradeKey) (*models.TradeMarker, bool) {
	m, ok := s.markers[k]
	return m, ok
}

// Markers — все маркеры в порядке времени (стабильный порядок для рендера).
func (s *Store) Markers() []models.TradeMarker {
	out := make([]models.TradeMarker, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkersAt — маркеры с данным временем (для ретро-коррекции цены).
func (s *Store) MarkersAt(t int64) []*models.TradeMarker {
	var out []*models.TradeMarker
	for _, m := range s.markers {
		if m.Time == t {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) SetPriceRow(k models.TradeKey, p models.PlotPoint) {
	switch k.Kind {
	case models.MarkerEntry:
		s.entryRows[k] = p
	case models.MarkerClose:
		s.closeRows[k] = p
	}
}

// PriceRows — точки price-line данного вида, только с конечными значениями
// (одно битое событие не должно валить весь оверлей).
func (s *Store) PriceRows(kind models.MarkerKind) []models.PlotPoint {
	src := s.entryRows
	if kind == models.MarkerClose {
		src = s.closeRows
	}
	out := make([]models.PlotPoint, 0, len(src))
	for _, p := range src {
		if !p.IsGap() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func (s *Store) MarkPlotchar(p models.PlotcharMarker) bool {
	k := p.Key()
	if _, ok := s.plotchars[k]; ok {
		return false
	}
	s.plotchars[k] = p
	return true
}

func (s *Store) Plotchars() []models.PlotcharMarker {
	out := make([]models.PlotcharMarker, 0, len(s.plotchars))
	for _, p := range s.plotchars {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// RegisterPlotSeries вызывается только snapshot-загрузчиком.
func (s *Store) RegisterPlotSeries(title string) {
	s.plotTitles[title] = struct{}{}
}

func (s *Store) HasPlotSeries(title string) bool {
	_, ok := s.plotTitles[title]
	return ok
}
