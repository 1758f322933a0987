package service

import (
	"encoding/json"

	"github.com/bytedance/sonic"

	"hft_bot/internal/book"
	"hft_bot/internal/models"
	"hft_bot/pkg/logger"
)

// wireFrame — общий конверт realtime-фида: данные лежат в data,
// таблица решает, как их читать.
type wireFrame struct {
	Table     string          `json:"table"`
	Action    string          `json:"action"`
	Success   bool            `json:"success"`
	Subscribe string          `json:"subscribe"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
}

type bookRow struct {
	Symbol string  `json:"symbol"`
	ID     int64   `json:"id"`
	Side   string  `json:"side"`
	Size   float64 `json:"size"`
	Price  float64 `json:"price"`
}

type instrumentRow struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"lastPrice"`
	MarkPrice   float64 `json:"markPrice"`
	FundingRate float64 `json:"fundingRate"`
}

type tradeRow struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
}

// parseFrame разбирает кадр по таблице. Кривой кадр — warn и мимо,
// фид от этого не падает.
func parseFrame(msg []byte) ([]Event, bool) {
	var f wireFrame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		logger.Warn("ws: нечитаемый кадр: %v", err)
		return nil, false
	}

	switch {
	case f.Error != "":
		logger.Warn("ws: ошибка от биржи: %s", f.Error)
		return nil, false
	case f.Subscribe != "":
		logger.Info("ws: подписка %s: success=%v", f.Subscribe, f.Success)
		return nil, false
	}

	switch f.Table {
	case "orderBookL2_25", "orderBookL2":
		return parseBook(f.Data)
	case "instrument":
		return parseInstrument(f.Data)
	case "trade":
		return parseTrade(f.Data)
	case "":
		return nil, false
	default:
		// liquidation и прочие подписки из additional_topics пока только логируем
		logger.Debug("ws: кадр таблицы %s (%s) пропущен", f.Table, f.Action)
		return nil, false
	}
}

func parseBook(data []byte) ([]Event, bool) {
	var rows []bookRow
	if err := sonic.Unmarshal(data, &rows); err != nil {
		logger.Warn("ws: кривые строки стакана: %v", err)
		return nil, false
	}

	// один кадр может нести несколько символов — группируем
	bySym := make(map[string]*BookUpdate)
	for _, r := range rows {
		up, ok := bySym[r.Symbol]
		if !ok {
			up = &BookUpdate{Symbol: r.Symbol}
			bySym[r.Symbol] = up
		}
		lv := book.Level{ID: r.ID, Side: r.Side, Price: r.Price, Size: r.Size}
		if r.Side == models.SideBuy {
			up.Bids = append(up.Bids, lv)
		} else {
			up.Asks = append(up.Asks, lv)
		}
	}

	evs := make([]Event, 0, len(bySym))
	for _, up := range bySym {
		evs = append(evs, Event{Book: up})
	}
	return evs, len(evs) > 0
}

func parseInstrument(data []byte) ([]Event, bool) {
	var rows []instrumentRow
	if err := sonic.Unmarshal(data, &rows); err != nil {
		logger.Warn("ws: кривой instrument: %v", err)
		return nil, false
	}

	var evs []Event
	for _, r := range rows {
		if r.Symbol == "" {
			continue
		}
		evs = append(evs, Event{Instrument: &models.InstrumentUpdate{
			Symbol:      r.Symbol,
			LastPrice:   r.LastPrice,
			MarkPrice:   r.MarkPrice,
			FundingRate: r.FundingRate,
		}})
	}
	return evs, len(evs) > 0
}

func parseTrade(data []byte) ([]Event, bool) {
	var rows []tradeRow
	if err := sonic.Unmarshal(data, &rows); err != nil {
		logger.Warn("ws: кривой trade: %v", err)
		return nil, false
	}

	var evs []Event
	for _, r := range rows {
		if r.Symbol == "" || r.Price <= 0 {
			continue
		}
		evs = append(evs, Event{Trade: &models.MarketTick{
			Symbol: r.Symbol,
			Price:  r.Price,
			Volume: r.Size,
		}})
	}
	return evs, len(evs) > 0
}
