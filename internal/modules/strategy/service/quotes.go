package service

import (
	"context"
	"math"

	"hft_bot/internal/book"
	"hft_bot/internal/helper"
	"hft_bot/internal/models"
	"hft_bot/pkg/logger"
)

// placeMarketMakingOrders — симметричные котировки вокруг текущей цены,
// размер от доли баланса. Обе стороны идут через гейты леджера.
func (e *Engine) placeMarketMakingOrders(ctx context.Context, symbol string, price float64) error {
	if price <= 0 {
		return nil
	}

	balance, err := e.ex.AccountBalance(ctx)
	if err != nil {
		return err
	}

	tradeAmount := balance * e.cfg.Trading.TradePercentage
	size := math.Floor(tradeAmount / price)
	if size < 1 {
		logger.Debug("strategy: баланс %.4f мал для котирования %s", balance, symbol)
		return nil
	}

	tick := e.cfg.Trading.TickSize
	bid := helper.RoundDownToTick(price*(1-e.cfg.Trading.PriceOffset), tick)
	ask := helper.RoundUpToTick(price*(1+e.cfg.Trading.PriceOffset), tick)

	if _, err := e.orders.Submit(ctx, models.SideBuy, size, bid, symbol, models.OrdTypeLimit); err != nil {
		if !isRuleRejection(err) {
			return err
		}
	}
	if _, err := e.orders.Submit(ctx, models.SideSell, size, ask, symbol, models.OrdTypeLimit); err != nil {
		if !isRuleRejection(err) {
			return err
		}
	}
	return nil
}

// isRuleRejection — локальное вето гейта не повод замораживать цикл.
func isRuleRejection(err error) bool {
	_, ok := err.(*models.TradingRuleRejection)
	return ok
}

// requote — снять всё и перекотировать симметрично вокруг lastPrice.
func (e *Engine) requote(ctx context.Context, symbol string, lastPrice float64) {
	if err := e.orders.CancelAll(ctx, symbol, ""); err != nil {
		logger.Error("strategy: снятие котировок %s не удалось: %v", symbol, err)
		return
	}

	tick := e.cfg.Trading.TickSize
	spread := e.cfg.Trading.OrderSpread
	size := e.cfg.Trading.OrderSize

	if _, err := e.orders.Submit(ctx, models.SideBuy, size,
		helper.RoundDownToTick(lastPrice*(1-spread), tick), symbol, models.OrdTypeLimit); err != nil {
		logger.Error("strategy: перекотировка bid %s: %v", symbol, err)
	}
	if _, err := e.orders.Submit(ctx, models.SideSell, size,
		helper.RoundUpToTick(lastPrice*(1+spread), tick), symbol, models.OrdTypeLimit); err != nil {
		logger.Error("strategy: перекотировка ask %s: %v", symbol, err)
	}
}

// adjustOnImbalance — перевес стакана: сначала сигнал Analyze по позиции,
// затем перестановка котировок на доминирующую сторону.
func (e *Engine) adjustOnImbalance(ctx context.Context, symbol string) {
	b := e.bookFor(symbol)

	e.actOnBookSignal(ctx, symbol, b)

	ratio, ok := b.ImbalanceRatio()
	if !ok {
		return
	}

	switch {
	case ratio > e.cfg.Risk.BuyImbalanceThreshold:
		// давление покупателей: убираем аски, встаём чуть ниже лучшего аска
		if err := e.orders.CancelAll(ctx, symbol, models.SideSell); err != nil {
			logger.Error("strategy: снятие асков %s: %v", symbol, err)
			return
		}
		if ask, okAsk := b.BestAsk(); okAsk {
			px := helper.RoundDownToTick(ask.Price*0.9999, e.cfg.Trading.TickSize)
			if _, err := e.orders.Submit(ctx, models.SideBuy, e.cfg.Trading.OrderSize, px, symbol, models.OrdTypeLimit); err != nil {
				logger.Error("strategy: бид по перевесу %s: %v", symbol, err)
			}
		}
		logger.Info("strategy: перевес покупателей %s, ratio %.3f", symbol, ratio)

	case ratio < e.cfg.Risk.SellImbalanceThreshold:
		if err := e.orders.CancelAll(ctx, symbol, models.SideBuy); err != nil {
			logger.Error("strategy: снятие бидов %s: %v", symbol, err)
			return
		}
		if bid, okBid := b.BestBid(); okBid {
			px := helper.RoundUpToTick(bid.Price*1.0001, e.cfg.Trading.TickSize)
			if _, err := e.orders.Submit(ctx, models.SideSell, e.cfg.Trading.OrderSize, px, symbol, models.OrdTypeLimit); err != nil {
				logger.Error("strategy: аск по перевесу %s: %v", symbol, err)
			}
		}
		logger.Info("strategy: перевес продавцов %s, ratio %.3f", symbol, ratio)

	default:
		logger.Debug("strategy: стакан %s сбалансирован, ratio %.3f", symbol, ratio)
	}
}

// actOnBookSignal — сигнал стакана с учётом позиции и плеча.
func (e *Engine) actOnBookSignal(ctx context.Context, symbol string, b *book.Book) {
	pos, havePos, err := e.ex.GetPosition(ctx, symbol)
	if err != nil {
		logger.Error("strategy: позиция для сигнала стакана %s: %v", symbol, err)
		return
	}
	if !havePos {
		return
	}

	balance, err := e.ex.AccountBalance(ctx)
	if err != nil {
		logger.Error("strategy: баланс для сигнала стакана: %v", err)
		return
	}

	sig := b.Analyze(pos, balance, book.AnalyzeParams{
		MaxLeverage:         e.cfg.Risk.MaxLeverage,
		TargetLeverage:      e.cfg.Risk.TargetLeverage,
		MaxPnlPct:           e.cfg.Risk.MaxPnlPct,
		VolumeImbalanceMult: e.cfg.Risk.VolumeImbalanceMult,
	})

	switch sig {
	case models.SignalHold:
		return
	case models.SignalReducePosition:
		e.reduceFraction(ctx, pos, 0.1)
	case models.SignalTakeProfit:
		e.partialClosePosition(ctx, pos, "сигнал стакана: фиксация прибыли")
	case models.SignalCutLoss:
		e.closePosition(ctx, pos, "сигнал стакана: фиксация убытка")
	case models.SignalCloseLong, models.SignalCloseShort:
		e.closePosition(ctx, pos, "сигнал стакана: разворот давления")
	case models.SignalIncreaseLong:
		if bid, ok := b.BestBid(); ok {
			if _, err := e.orders.Submit(ctx, models.SideBuy, e.cfg.Trading.OrderSize, bid.Price, symbol, models.OrdTypeLimit); err != nil {
				logger.Error("strategy: набор лонга %s: %v", symbol, err)
			}
		}
	case models.SignalIncreaseShort:
		if ask, ok := b.BestAsk(); ok {
			if _, err := e.orders.Submit(ctx, models.SideSell, e.cfg.Trading.OrderSize, ask.Price, symbol, models.OrdTypeLimit); err != nil {
				logger.Error("strategy: набор шорта %s: %v", symbol, err)
			}
		}
	}

	logger.Debug("strategy: сигнал стакана %s: %s", symbol, sig)
}
