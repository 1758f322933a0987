// Package indicator — тонкая обёртка над go-talib: нам нужны только
// последние значения ATR/RSI/SMA по свежей истории.
package indicator

import (
	talib "github.com/markcheno/go-talib"
)

// ATR по классической схеме high/low/close.
// Сейчас стратегия подаёт сюда один и тот же ряд closes во все три входа —
// так делал исходный бот; true range при этом вырождается в дельты close.
// TODO: подавать настоящий OHLC из /trade/bucketed (high/low там есть).
func ATR(high, low, close []float64, period int) float64 {
	if len(high) != len(low) || len(high) != len(close) || len(high) < period+1 {
		return 0
	}
	out := talib.Atr(high, low, close, period)
	return out[len(out)-1]
}

// RSI. При нехватке истории возвращаем нейтральные 50.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50
	}
	out := talib.Rsi(prices, period)
	return out[len(out)-1]
}

// SMA по всему переданному ряду (бот запрашивает ровно period свечей).
func SMA(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	out := talib.Sma(prices, len(prices))
	return out[len(out)-1]
}
