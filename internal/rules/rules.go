// Package rules — локальные торговые правила, проверяются ДО отправки
// ордера на биржу. Любой отказ здесь — TradingRuleRejection, биржа не трогается.
package rules

import (
	"fmt"
	"math"

	"hft_bot/internal/models"
)

const (
	// Fat-finger: цена не дальше ±5% от рынка.
	FatFingerProtectionPct = 0.05

	MaxOpenOrdersPerSymbol = 200
	MaxStopOrdersPerSymbol = 10

	// QVR: квоты на количество котировок относительно наторгованного объёма.
	QVRThreshold      = 10000.0
	FreeQuotesPerHour = 3600
)

// CheckFatFinger — Buy не выше max(bestAsk, markPrice)*(1+5%),
// Sell не ниже min(bestBid, markPrice)*(1-5%).
func CheckFatFinger(side string, price, bestBid, bestAsk, markPrice float64) error {
	switch side {
	case models.SideBuy:
		maxAllowed := math.Max(bestAsk, markPrice) * (1 + FatFingerProtectionPct)
		if price > maxAllowed {
			return &models.TradingRuleRejection{
				Rule:   "fat_finger",
				Reason: fmt.Sprintf("buy %.2f above cap %.2f", price, maxAllowed),
			}
		}
	case models.SideSell:
		minAllowed := math.Min(bestBid, markPrice) * (1 - FatFingerProtectionPct)
		if price < minAllowed {
			return &models.TradingRuleRejection{
				Rule:   "fat_finger",
				Reason: fmt.Sprintf("sell %.2f below floor %.2f", price, minAllowed),
			}
		}
	default:
		return &models.TradingRuleRejection{Rule: "fat_finger", Reason: "unknown side " + side}
	}
	return nil
}

// CheckOrderLimits — лимиты на число открытых и стоп-ордеров по символу.
func CheckOrderLimits(symbol string, openOrders, stopOrders int) error {
	if openOrders >= MaxOpenOrdersPerSymbol {
		return &models.TradingRuleRejection{
			Rule:   "order_limits",
			Reason: fmt.Sprintf("%s: %d open orders", symbol, openOrders),
		}
	}
	if stopOrders >= MaxStopOrdersPerSymbol {
		return &models.TradingRuleRejection{
			Rule:   "order_limits",
			Reason: fmt.Sprintf("%s: %d stop orders", symbol, stopOrders),
		}
	}
	return nil
}

// CheckQVR — после бесплатной квоты отношение котировок к наторгованному
// объёму не должно превышать порог.
func CheckQVR(quoteValue, tradedValue float64, quotesSubmitted int) error {
	if quotesSubmitted <= FreeQuotesPerHour {
		return nil
	}
	qvr := float64(quotesSubmitted-FreeQuotesPerHour) / (tradedValue + 1e-9)
	if qvr > QVRThreshold {
		return &models.TradingRuleRejection{
			Rule:   "qvr",
			Reason: fmt.Sprintf("qvr %.1f over %.0f (quotes=%d traded=%.4f)", qvr, QVRThreshold, quotesSubmitted, tradedValue),
		}
	}
	return nil
}
