package service

import (
	"context"
	"math"

	"hft_bot/internal/indicator"
	"hft_bot/internal/models"
	"hft_bot/pkg/logger"
)

const (
	rsiPeriod = 14
	atrPeriod = 14
	smaPeriod = 20

	rsiOverbought = 70.0
	rsiOversold   = 30.0
)

// updateStrategy — реакция на свежий тик инструмента: перегретый фандинг,
// динамические стоп/тейк от волатильности, перекотировка при расхождении
// last/mark, трендовый вход при пустой позиции.
func (e *Engine) updateStrategy(ctx context.Context, inst models.InstrumentUpdate) {
	pos, havePos, err := e.ex.GetPosition(ctx, inst.Symbol)
	if err != nil {
		e.absorb("получение позиции", err)
		return
	}

	if !havePos || pos.Empty() {
		e.tryTrendEntry(ctx, inst)
		return
	}

	if math.Abs(inst.FundingRate) > e.cfg.Risk.MaxFundingRate {
		e.reduceOnCrowding(ctx, pos, inst)
	}

	e.applyVolatilityBands(ctx, pos, inst)

	// расхождение last/mark — котировки стоят не там, переставляем
	if inst.MarkPrice > 0 {
		deviation := math.Abs(inst.LastPrice-inst.MarkPrice) / inst.MarkPrice
		if deviation > e.cfg.Risk.MaxPriceDeviation {
			logger.Info("strategy: отклонение цены %.4f, перекотировка %s", deviation, inst.Symbol)
			e.requote(ctx, inst.Symbol, inst.LastPrice)
		}
	}
}

// reduceOnCrowding — дорогой фандинг на нашей стороне плюс экстремальный
// RSI: срезаем 10% позиции.
func (e *Engine) reduceOnCrowding(ctx context.Context, pos models.Position, inst models.InstrumentUpdate) {
	closes, err := e.ex.HistoricalCloses(ctx, inst.Symbol, rsiPeriod+1)
	if err != nil {
		logger.Error("strategy: история для RSI: %v", err)
		return
	}
	rsi := indicator.RSI(closes, rsiPeriod)

	var side string
	switch {
	case inst.FundingRate > 0 && pos.CurrentQty > 0 && rsi > rsiOverbought:
		side = models.SideSell
	case inst.FundingRate < 0 && pos.CurrentQty < 0 && rsi < rsiOversold:
		side = models.SideBuy
	default:
		return
	}

	qty := math.Floor(math.Abs(pos.CurrentQty) * 0.1)
	if qty < 1 {
		return
	}
	logger.Info("strategy: фандинг %.5f и RSI %.1f — срезаем 10%% позиции %s", inst.FundingRate, rsi, inst.Symbol)
	if _, err := e.orders.Submit(ctx, side, qty, 0, inst.Symbol, models.OrdTypeMarket); err != nil {
		logger.Error("strategy: разгрузка по фандингу %s не удалась: %v", inst.Symbol, err)
	}
}

// applyVolatilityBands — стоп/тейк, масштабируемые ATR: чем волатильнее
// рынок, тем шире коридор вокруг средней цены входа.
func (e *Engine) applyVolatilityBands(ctx context.Context, pos models.Position, inst models.InstrumentUpdate) {
	closes, err := e.ex.HistoricalCloses(ctx, inst.Symbol, atrPeriod+1)
	if err != nil {
		logger.Error("strategy: история для ATR: %v", err)
		return
	}
	atr := indicator.ATR(closes, closes, closes, atrPeriod)
	if atr == 0 {
		return
	}

	stop := e.cfg.Risk.StopLossPct * atr
	take := e.cfg.Risk.TakeProfitPct * atr
	entry := pos.AvgEntryPrice
	mark := inst.MarkPrice

	if pos.CurrentQty > 0 {
		switch {
		case mark <= entry*(1-stop):
			e.closePosition(ctx, pos, "динамический стоп-лосс")
		case mark >= entry*(1+take):
			e.partialClosePosition(ctx, pos, "динамический тейк-профит")
		}
		return
	}

	switch {
	case mark >= entry*(1+stop):
		e.closePosition(ctx, pos, "динамический стоп-лосс")
	case mark <= entry*(1-take):
		e.partialClosePosition(ctx, pos, "динамический тейк-профит")
	}
}

// tryTrendEntry — пустая позиция: вход по тренду last против SMA20
// с фандингом в противофазе, размер balance * riskPerTrade / price.
func (e *Engine) tryTrendEntry(ctx context.Context, inst models.InstrumentUpdate) {
	side, ok := e.trendEntrySide(ctx, inst)
	if !ok {
		return
	}

	balance, err := e.ex.AccountBalance(ctx)
	if err != nil {
		e.absorb("баланс для входа", err)
		return
	}

	qty := math.Floor(balance * e.cfg.Risk.RiskPerTrade / inst.LastPrice)
	if qty < 1 {
		return
	}

	logger.Info("strategy: трендовый вход %s %s на %.0f", side, inst.Symbol, qty)
	if _, err := e.orders.Submit(ctx, side, qty, 0, inst.Symbol, models.OrdTypeMarket); err != nil {
		logger.Error("strategy: трендовый вход %s не удался: %v", inst.Symbol, err)
		return
	}
	if e.n != nil {
		e.n.Sendf("📈 Вход %s %s, объём %.0f @ %.2f", side, inst.Symbol, qty, inst.LastPrice)
	}
}

// trendEntrySide: бычий тренд — цена выше SMA20 при отрицательном фандинге,
// медвежий — ниже SMA20 при положительном.
func (e *Engine) trendEntrySide(ctx context.Context, inst models.InstrumentUpdate) (string, bool) {
	closes, err := e.ex.HistoricalCloses(ctx, inst.Symbol, smaPeriod)
	if err != nil {
		logger.Error("strategy: история для SMA: %v", err)
		return "", false
	}
	sma := indicator.SMA(closes)
	if sma == 0 {
		return "", false
	}

	switch {
	case inst.LastPrice > sma && inst.FundingRate < 0:
		return models.SideBuy, true
	case inst.LastPrice < sma && inst.FundingRate > 0:
		return models.SideSell, true
	}
	return "", false
}
