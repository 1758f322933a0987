package service

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"

	"hft_bot/internal/models"
)

// GetInstrument — последняя цена, марк-цена и фандинг по символу.
func (c *Client) GetInstrument(ctx context.Context, symbol string) (models.InstrumentUpdate, error) {
	data, err := c.Request(ctx, http.MethodGet, "/instrument?symbol="+symbol, "")
	if err != nil {
		return models.InstrumentUpdate{}, err
	}

	var rs []instrumentResp
	if err := sonic.Unmarshal(data, &rs); err != nil || len(rs) == 0 {
		return models.InstrumentUpdate{}, &models.DataError{Msg: "instrument response: " + string(data)}
	}

	return models.InstrumentUpdate{
		Symbol:      rs[0].Symbol,
		LastPrice:   rs[0].LastPrice,
		MarkPrice:   rs[0].MarkPrice,
		FundingRate: rs[0].FundingRate,
	}, nil
}

// MarketPrice — lastPrice инструмента.
func (c *Client) MarketPrice(ctx context.Context, symbol string) (float64, error) {
	inst, err := c.GetInstrument(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return inst.LastPrice, nil
}

// BestBidAsk — верх стакана через REST (для гейтов перед ордером).
func (c *Client) BestBidAsk(ctx context.Context, symbol string) (bestBid, bestAsk float64, err error) {
	data, err := c.Request(ctx, http.MethodGet, "/orderBook/L2?symbol="+symbol+"&depth=1", "")
	if err != nil {
		return 0, 0, err
	}

	var rows []bookRowResp
	if err := sonic.Unmarshal(data, &rows); err != nil {
		return 0, 0, &models.DataError{Msg: "orderBook response: " + err.Error()}
	}

	for _, r := range rows {
		switch r.Side {
		case models.SideBuy:
			if r.Price > bestBid {
				bestBid = r.Price
			}
		case models.SideSell:
			if bestAsk == 0 || r.Price < bestAsk {
				bestAsk = r.Price
			}
		}
	}
	if bestBid == 0 && bestAsk == 0 {
		return 0, 0, &models.DataError{Msg: "empty orderBook for " + symbol}
	}
	return bestBid, bestAsk, nil
}

// HistoricalCloses — часовые close за count последних баров.
func (c *Client) HistoricalCloses(ctx context.Context, symbol string, count int) ([]float64, error) {
	endpoint := "/trade/bucketed?binSize=1h&partial=false&count=" + strconv.Itoa(count) + "&symbol=" + symbol

	data, err := c.Request(ctx, http.MethodGet, endpoint, "")
	if err != nil {
		return nil, err
	}

	var rs []bucketResp
	if err := sonic.Unmarshal(data, &rs); err != nil {
		return nil, &models.DataError{Msg: "bucketed response: " + err.Error()}
	}

	prices := make([]float64, 0, len(rs))
	for _, r := range rs {
		prices = append(prices, r.Close)
	}
	return prices, nil
}

// AccountBalance — маржинальный баланс в XBT (биржа отдаёт сатоши).
func (c *Client) AccountBalance(ctx context.Context) (float64, error) {
	data, err := c.Request(ctx, http.MethodGet, "/user/margin?currency=XBt", "")
	if err != nil {
		return 0, err
	}

	var r marginResp
	if err := sonic.Unmarshal(data, &r); err != nil {
		return 0, &models.DataError{Msg: "margin response: " + err.Error()}
	}
	return r.MarginBalance / 1e8, nil
}
