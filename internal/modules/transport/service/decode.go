package service

import (
	"math"

	"chart_sync/internal/models"
	chartstate "chart_sync/internal/modules/chartstate/service"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Event — типизированное событие стрима. Кадр либо декодируется целиком
// в один из этих типов, либо отбрасывается; частично разобранных событий
// дальше транспорта не бывает.
type Event interface{ event() }

// StatusEvent — смена состояния соединения (генерирует сам транспорт,
// не провод).
type StatusEvent struct{ Status chartstate.ConnStatus }

// ScriptModified — скрипт на бэкенде пересобран, текущая сессия невалидна.
type ScriptModified struct{}

// RunnerConnected / RunnerDisconnected — раннер стратегии появился или ушёл.
type RunnerConnected struct{}
type RunnerDisconnected struct{}

type ScriptInfo struct{ Title string }

type BarEvent struct{ Bar models.Bar }

type OpenFixEvent struct{ Fix models.OpenCorrection }

type TradeEvent struct{ Marker models.TradeMarker }

type PlotcharEvent struct{ Marker models.PlotcharMarker }

type PlotDataEvent struct {
	Title string
	Point models.PlotPoint
}

func (StatusEvent) event()        {}
func (ScriptModified) event()     {}
func (RunnerConnected) event()    {}
func (RunnerDisconnected) event() {}
func (ScriptInfo) event()         {}
func (BarEvent) event()           {}
func (OpenFixEvent) event()       {}
func (TradeEvent) event()         {}
func (PlotcharEvent) event()      {}
func (PlotDataEvent) event()      {}

type envelope struct {
	Type string `json:"type"`
}

type barPayload struct {
	Data struct {
		Time   *int64   `json:"time"`
		Open   *float64 `json:"open"`
		High   *float64 `json:"high"`
		Low    *float64 `json:"low"`
		Close  *float64 `json:"close"`
		Volume *float64 `json:"volume"`
	} `json:"data"`
}

type openFixPayload struct {
	Data struct {
		Time *int64   `json:"time"`
		Open *float64 `json:"open"`
	} `json:"data"`
}

// Поля trade/plotchar/plot_data/script_info лежат на верхнем уровне кадра,
// рядом с type; в data заворачиваются только bar и last_bar_open_fix.
type tradePayload struct {
	Time    *int64   `json:"time"`
	Price   *float64 `json:"price"`
	ID      string   `json:"id"`
	Comment string   `json:"comment"`
}

type plotcharPayload struct {
	Time     *int64 `json:"time"`
	Title    string `json:"title"`
	Location string `json:"location"`
	Text     string `json:"text"`
	Char     string `json:"char"`
	Color    string `json:"color"`
	Size     string `json:"size"`
}

type plotPayload struct {
	Title string   `json:"title"`
	Time  *int64   `json:"time"`
	Value *float64 `json:"value"`
}

type infoPayload struct {
	Title string `json:"title"`
}

// decodeEvent разбирает один текстовый кадр. nil без ошибки — кадр валиден,
// но для нас ничего не несёт (pong, неизвестный тип сообщения).
func decodeEvent(msg []byte) (Event, error) {
	var env envelope
	if err := sonic.Unmarshal(msg, &env); err != nil {
		return nil, errors.Wrap(err, "envelope")
	}

	switch env.Type {
	case "script_modified":
		return ScriptModified{}, nil
	case "runner_connected":
		return RunnerConnected{}, nil
	case "runner_disconnected":
		return RunnerDisconnected{}, nil

	case "script_info":
		var p infoPayload
		if err := sonic.Unmarshal(msg, &p); err != nil {
			return nil, errors.Wrap(err, "script_info")
		}
		return ScriptInfo{Title: p.Title}, nil

	case "bar":
		var p barPayload
		if err := sonic.Unmarshal(msg, &p); err != nil {
			return nil, errors.Wrap(err, "bar")
		}
		d := p.Data
		if d.Time == nil || d.Open == nil || d.High == nil || d.Low == nil || d.Close == nil {
			return nil, errors.New("bar: incomplete ohlc")
		}
		b := models.Bar{Time: *d.Time, Open: *d.Open, High: *d.High, Low: *d.Low, Close: *d.Close}
		if d.Volume != nil {
			b.Volume = *d.Volume
		}
		return BarEvent{Bar: b}, nil

	case "last_bar_open_fix":
		var p openFixPayload
		if err := sonic.Unmarshal(msg, &p); err != nil {
			return nil, errors.Wrap(err, "open_fix")
		}
		if p.Data.Time == nil || p.Data.Open == nil {
			return nil, errors.New("open_fix: incomplete payload")
		}
		return OpenFixEvent{Fix: models.OpenCorrection{Time: *p.Data.Time, Value: *p.Data.Open}}, nil

	case "trade_entry", "trade_close":
		var p tradePayload
		if err := sonic.Unmarshal(msg, &p); err != nil {
			return nil, errors.Wrap(err, env.Type)
		}
		if p.Time == nil {
			return nil, errors.Errorf("%s: missing time", env.Type)
		}
		kind := models.MarkerEntry
		if env.Type == "trade_close" {
			kind = models.MarkerClose
		}
		// price бывает null: сделка без известной цены рисуется без строки
		// на ценовой линии.
		price := math.NaN()
		if p.Price != nil {
			price = *p.Price
		}
		return TradeEvent{Marker: models.TradeMarker{
			Kind:    kind,
			Time:    *p.Time,
			ID:      p.ID,
			Price:   price,
			Comment: p.Comment,
		}}, nil

	case "plotchar":
		var p plotcharPayload
		if err := sonic.Unmarshal(msg, &p); err != nil {
			return nil, errors.Wrap(err, "plotchar")
		}
		if p.Time == nil || p.Title == "" {
			return nil, errors.New("plotchar: missing time or title")
		}
		// символ приходит либо в text, либо в char
		text := p.Text
		if text == "" {
			text = p.Char
		}
		return PlotcharEvent{Marker: models.PlotcharMarker{
			Time:     *p.Time,
			Title:    p.Title,
			Location: models.PlotcharLocation(p.Location),
			Text:     text,
			Color:    p.Color,
			Size:     p.Size,
		}}, nil

	case "plot_data":
		var p plotPayload
		if err := sonic.Unmarshal(msg, &p); err != nil {
			return nil, errors.Wrap(err, "plot_data")
		}
		if p.Time == nil || p.Title == "" {
			return nil, errors.New("plot_data: missing time or title")
		}
		// null value — разрыв серии, нормализуется в NaN.
		v := math.NaN()
		if p.Value != nil {
			v = *p.Value
		}
		return PlotDataEvent{
			Title: p.Title,
			Point: models.PlotPoint{Time: *p.Time, Value: v},
		}, nil
	}

	return nil, nil
}
