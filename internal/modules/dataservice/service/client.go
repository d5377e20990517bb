package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"chart_sync/internal/models"
	"chart_sync/internal/modules/config"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Client — клиент bulk-эндпоинтов бэкенда: request/response половина
// обмена. Стримовая половина живёт в transport.
type Client struct {
	base string
	http *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		base: strings.TrimRight(cfg.Backend.BaseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return errors.Wrapf(err, "new request %s", path)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("GET %s: http %d: %s", path, resp.StatusCode, string(rb))
	}
	if err := sonic.Unmarshal(rb, out); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// ohlcvRow — сырая строка /api/ohlcv. Указатели, чтобы отличать отсутствующее
// поле от нуля: строка без любого из OHLC полей отфильтровывается, не фатальна.
type ohlcvRow struct {
	Time   *int64   `json:"time"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

func (r ohlcvRow) wellFormed() bool {
	return r.Time != nil && r.Open != nil && r.High != nil && r.Low != nil && r.Close != nil
}

// OHLCV возвращает упорядоченный по времени массив баров; битые строки
// выброшены молча.
func (c *Client) OHLCV(ctx context.Context, limit int) ([]models.Bar, error) {
	var rows []ohlcvRow
	if err := c.get(ctx, fmt.Sprintf("/api/ohlcv?limit=%d", limit), &rows); err != nil {
		return nil, err
	}
	out := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		if !r.wellFormed() {
			continue
		}
		b := models.Bar{Time: *r.Time, Open: *r.Open, High: *r.High, Low: *r.Low, Close: *r.Close}
		if r.Volume != nil {
			b.Volume = *r.Volume
		}
		out = append(out, b)
	}
	return out, nil
}

type tradeRow struct {
	Type    string   `json:"type"` // trade_entry | trade_close
	Time    int64    `json:"time"`
	ID      string   `json:"id"`
	Price   *float64 `json:"price"`
	Comment string   `json:"comment"`
}

func (c *Client) Trades(ctx context.Context) ([]models.TradeMarker, error) {
	var rows []tradeRow
	if err := c.get(ctx, "/api/trades", &rows); err != nil {
		return nil, err
	}
	out := make([]models.TradeMarker, 0, len(rows))
	for _, r := range rows {
		var kind models.MarkerKind
		switch r.Type {
		case "trade_entry":
			kind = models.MarkerEntry
		case "trade_close":
			kind = models.MarkerClose
		default:
			continue
		}
		price := math.NaN()
		if r.Price != nil {
			price = *r.Price
		}
		out = append(out, models.TradeMarker{
			Kind:    kind,
			Time:    r.Time,
			ID:      r.ID,
			Price:   price,
			Comment: r.Comment,
		})
	}
	return out, nil
}

func (c *Client) Plotchars(ctx context.Context) ([]models.PlotcharMarker, error) {
	var rows []models.PlotcharMarker
	if err := c.get(ctx, "/api/plotchar", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type plotPointRow struct {
	Time  int64    `json:"time"`
	Value *float64 `json:"value"`
}

type plotSeriesRow struct {
	Title     string         `json:"title"`
	Color     string         `json:"color"`
	LineWidth int            `json:"linewidth"`
	Style     string         `json:"style"`
	Data      []plotPointRow `json:"data"`
}

// PlotSeries возвращает индикаторные серии; null-значения нормализованы в
// NaN-разрывы, не в ноль.
func (c *Client) PlotSeries(ctx context.Context) ([]models.PlotSeries, error) {
	var rows []plotSeriesRow
	if err := c.get(ctx, "/api/plot", &rows); err != nil {
		return nil, err
	}
	out := make([]models.PlotSeries, 0, len(rows))
	for _, r := range rows {
		s := models.PlotSeries{
			Title:     r.Title,
			Color:     r.Color,
			LineWidth: r.LineWidth,
			Style:     r.Style,
			Data:      make([]models.PlotPoint, 0, len(r.Data)),
		}
		for _, p := range r.Data {
			v := math.NaN()
			if p.Value != nil {
				v = *p.Value
			}
			s.Data = append(s.Data, models.PlotPoint{Time: p.Time, Value: v})
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) Info(ctx context.Context) (models.ChartInfo, error) {
	var info models.ChartInfo
	if err := c.get(ctx, "/api/info", &info); err != nil {
		return models.ChartInfo{}, err
	}
	return info, nil
}

func (c *Client) WebhookConfig(ctx context.Context) (models.WebhookConfig, error) {
	var wc models.WebhookConfig
	if err := c.get(ctx, "/api/webhook-config", &wc); err != nil {
		return models.WebhookConfig{}, err
	}
	return wc, nil
}

// UpdateWebhookConfig шлёт частичный patch; non-2xx — отказ, локальное
// состояние вызывающего не меняется.
func (c *Client) UpdateWebhookConfig(ctx context.Context, patch models.WebhookConfigPatch) (models.WebhookConfig, error) {
	payload, err := sonic.Marshal(patch)
	if err != nil {
		return models.WebhookConfig{}, errors.Wrap(err, "marshal webhook patch")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/webhook-config", bytes.NewReader(payload))
	if err != nil {
		return models.WebhookConfig{}, errors.Wrap(err, "new request webhook-config")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.WebhookConfig{}, errors.Wrap(err, "POST webhook-config")
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return models.WebhookConfig{}, errors.Errorf("webhook-config rejected: http %d: %s", resp.StatusCode, string(rb))
	}
	var wc models.WebhookConfig
	if err := sonic.Unmarshal(rb, &wc); err != nil {
		return models.WebhookConfig{}, errors.Wrap(err, "decode webhook-config")
	}
	return wc, nil
}
