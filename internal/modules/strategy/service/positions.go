package service

import (
	"context"
	"math"

	"hft_bot/internal/models"
	"hft_bot/pkg/logger"
)

// Бета инструмента. Считаем 1.0 для всех: расчёт реальных бет требует
// внешнего ряда доходностей, которого у движка нет.
const instrumentBeta = 1.0

// managePositions — портфельный проход: агрегаты риска, экспозиции,
// секторов и беты, затем каждая позиция отдельно.
func (e *Engine) managePositions(ctx context.Context, currentPrice float64) {
	positions, err := e.ex.GetPositions(ctx)
	if err != nil {
		e.absorb("получение позиций", err)
		return
	}

	var totalRisk, totalExposure, totalPnl float64
	sectorExposure := make(map[string]float64)

	for _, pos := range positions {
		if pos.Empty() {
			continue
		}
		exposure := math.Abs(pos.CurrentQty * currentPrice)
		totalRisk += positionRisk(pos, currentPrice)
		totalExposure += exposure
		totalPnl += pos.CurrentQty * (currentPrice - pos.AvgEntryPrice)
		sectorExposure[e.cfg.SectorFor(pos.Symbol)] += exposure
	}

	if totalRisk > e.cfg.Risk.MaxPortfolioRisk {
		logger.Warn("strategy: риск портфеля %.4f превышает лимит %.4f", totalRisk, e.cfg.Risk.MaxPortfolioRisk)
		if e.n != nil {
			e.n.Sendf("⚠️ Риск портфеля %.4f превысил лимит %.4f, разгружаемся", totalRisk, e.cfg.Risk.MaxPortfolioRisk)
		}
		e.reducePositions(ctx, positions, totalRisk-e.cfg.Risk.MaxPortfolioRisk, func(pos models.Position) float64 {
			return positionRisk(pos, currentPrice)
		})
	}

	if totalExposure > e.cfg.Risk.MaxPortfolioExposure {
		logger.Warn("strategy: экспозиция портфеля %.2f превышает лимит %.2f", totalExposure, e.cfg.Risk.MaxPortfolioExposure)
		e.reducePositions(ctx, positions, totalExposure-e.cfg.Risk.MaxPortfolioExposure, func(pos models.Position) float64 {
			return math.Abs(pos.CurrentQty * currentPrice)
		})
	}

	for sector, exposure := range sectorExposure {
		if exposure <= e.cfg.Risk.MaxSectorExposure {
			continue
		}
		logger.Warn("strategy: экспозиция сектора %s %.2f превышает лимит %.2f", sector, exposure, e.cfg.Risk.MaxSectorExposure)
		excess := exposure - e.cfg.Risk.MaxSectorExposure
		e.reducePositions(ctx, positions, excess, func(pos models.Position) float64 {
			if e.cfg.SectorFor(pos.Symbol) != sector {
				return 0
			}
			return math.Abs(pos.CurrentQty * currentPrice)
		})
	}

	beta := portfolioBeta(positions)
	if math.Abs(beta-e.cfg.Risk.TargetPortfolioBeta) > e.cfg.Risk.BetaTolerance {
		logger.Info("strategy: бета портфеля %.3f вне коридора, цель %.3f", beta, e.cfg.Risk.TargetPortfolioBeta)
		e.adjustPortfolioBeta(ctx, positions, beta, e.cfg.Risk.TargetPortfolioBeta)
	}

	for _, pos := range positions {
		if !pos.Empty() {
			e.manageSinglePosition(ctx, pos, currentPrice)
		}
	}

	logger.Info("strategy: портфель: риск %.4f, экспозиция %.2f, uPnL %.4f, бета %.3f",
		totalRisk, totalExposure, totalPnl, beta)
}

// reducePositions — пропорциональная разгрузка: каждая позиция срезается
// на min(1, excess/вклад) своей величины маркет-ордером.
func (e *Engine) reducePositions(ctx context.Context, positions []models.Position, excess float64, contribution func(models.Position) float64) {
	for _, pos := range positions {
		contrib := contribution(pos)
		if contrib <= 0 || pos.Empty() {
			continue
		}

		ratio := math.Min(1, excess/contrib)
		reduceQty := math.Floor(math.Abs(pos.CurrentQty) * ratio)
		if reduceQty < 1 {
			continue
		}

		side := models.SideSell
		if pos.CurrentQty < 0 {
			side = models.SideBuy
		}
		if _, err := e.orders.Submit(ctx, side, reduceQty, 0, pos.Symbol, models.OrdTypeMarket); err != nil {
			logger.Error("strategy: разгрузка %s на %.0f не удалась: %v", pos.Symbol, reduceQty, err)
			continue
		}
		logger.Info("strategy: позиция %s срезана на %.0f (ratio %.3f)", pos.Symbol, reduceQty, ratio)
	}
}

// reduceFraction срезает долю позиции маркет-ордером.
func (e *Engine) reduceFraction(ctx context.Context, pos models.Position, frac float64) {
	qty := math.Floor(math.Abs(pos.CurrentQty) * frac)
	if qty < 1 {
		return
	}
	side := models.SideSell
	if pos.CurrentQty < 0 {
		side = models.SideBuy
	}
	if _, err := e.orders.Submit(ctx, side, qty, 0, pos.Symbol, models.OrdTypeMarket); err != nil {
		logger.Error("strategy: частичная разгрузка %s не удалась: %v", pos.Symbol, err)
	}
}

// portfolioBeta — средневзвешенная по стоимости позиций.
func portfolioBeta(positions []models.Position) float64 {
	var weighted, total float64
	for _, pos := range positions {
		price := pos.LastPrice
		if price == 0 {
			price = pos.AvgEntryPrice
		}
		value := math.Abs(pos.CurrentQty * price)
		weighted += instrumentBeta * value
		total += value
	}
	if total == 0 {
		return 1.0
	}
	return weighted / total
}

// adjustPortfolioBeta подталкивает бету к цели, двигая по 10% позиции.
// С константной бетой 1.0 у всех инструментов кандидатов не находится,
// проход остаётся холостым — сюда попадут инструменты с настоящими бетами.
func (e *Engine) adjustPortfolioBeta(ctx context.Context, positions []models.Position, current, target float64) {
	adjustment := target - current
	for _, pos := range positions {
		if !((adjustment > 0 && instrumentBeta > 1.0) || (adjustment < 0 && instrumentBeta < 1.0)) {
			continue
		}
		qty := math.Floor(math.Abs(pos.CurrentQty) * math.Abs(adjustment) * 0.1)
		if qty < 1 {
			continue
		}
		side := models.SideBuy
		if adjustment < 0 {
			side = models.SideSell
		}
		if _, err := e.orders.Submit(ctx, side, qty, 0, pos.Symbol, models.OrdTypeMarket); err != nil {
			logger.Error("strategy: бета-коррекция %s не удалась: %v", pos.Symbol, err)
		}
	}
}

// manageSinglePosition — защитные выходы одной позиции: стоп по убытку,
// частичная фиксация прибыли, трейлинг, затем доводка размера до риска.
func (e *Engine) manageSinglePosition(ctx context.Context, pos models.Position, currentPrice float64) {
	side := pos.Side()
	upnl := pos.CurrentQty * (currentPrice - pos.AvgEntryPrice)
	risk := positionRisk(pos, currentPrice)

	logger.Debug("strategy: позиция %s qty=%.0f uPnL=%.4f risk=%.4f", pos.Symbol, pos.CurrentQty, upnl, risk)

	switch {
	case e.stopLossHit(pos, currentPrice, upnl, risk):
		e.closePosition(ctx, pos, "стоп-лосс")
	case e.takeProfitHit(pos, currentPrice, upnl, risk):
		e.partialClosePosition(ctx, pos, "тейк-профит")
	case e.trailingStopHit(pos, currentPrice):
		e.closePosition(ctx, pos, "трейлинг-стоп")
	}

	// размер позиции не должен нести риска больше разрешённого на сделку
	if target := e.cfg.Risk.RiskPerTrade; risk > target {
		reduce := math.Floor(math.Abs(pos.CurrentQty) * (risk - target) / risk)
		if reduce >= 1 {
			exitSide := models.SideSell
			if side == models.SideSell {
				exitSide = models.SideBuy
			}
			if _, err := e.orders.Submit(ctx, exitSide, reduce, 0, pos.Symbol, models.OrdTypeMarket); err != nil {
				logger.Error("strategy: доводка размера %s не удалась: %v", pos.Symbol, err)
			}
		}
	}
}

func (e *Engine) stopLossHit(pos models.Position, currentPrice, upnl, risk float64) bool {
	threshold := e.cfg.Risk.StopLossPct * risk
	if pos.CurrentQty > 0 {
		return currentPrice < pos.AvgEntryPrice && upnl < -threshold
	}
	return currentPrice > pos.AvgEntryPrice && upnl < -threshold
}

func (e *Engine) takeProfitHit(pos models.Position, currentPrice, upnl, risk float64) bool {
	threshold := e.cfg.Risk.TakeProfitPct * risk
	if pos.CurrentQty > 0 {
		return currentPrice > pos.AvgEntryPrice && upnl > threshold
	}
	return currentPrice < pos.AvgEntryPrice && upnl > threshold
}

func (e *Engine) closePosition(ctx context.Context, pos models.Position, reason string) {
	side := models.SideSell
	if pos.CurrentQty < 0 {
		side = models.SideBuy
	}
	if _, err := e.orders.Submit(ctx, side, math.Abs(pos.CurrentQty), 0, pos.Symbol, models.OrdTypeMarket); err != nil {
		logger.Error("strategy: закрытие %s (%s) не удалось: %v", pos.Symbol, reason, err)
		return
	}
	logger.Info("strategy: %s — позиция %s закрыта полностью", reason, pos.Symbol)
	if e.n != nil {
		e.n.Sendf("🔒 %s: позиция %s закрыта (%s)", pos.Symbol, pos.Side(), reason)
	}
}

func (e *Engine) partialClosePosition(ctx context.Context, pos models.Position, reason string) {
	qty := math.Floor(math.Abs(pos.CurrentQty) / 2)
	if qty < 1 {
		return
	}
	side := models.SideSell
	if pos.CurrentQty < 0 {
		side = models.SideBuy
	}
	if _, err := e.orders.Submit(ctx, side, qty, 0, pos.Symbol, models.OrdTypeMarket); err != nil {
		logger.Error("strategy: частичное закрытие %s (%s) не удалось: %v", pos.Symbol, reason, err)
		return
	}
	logger.Info("strategy: %s — позиция %s закрыта наполовину", reason, pos.Symbol)
}
