package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	require.InDelta(t, 2.0, SMA([]float64{1, 2, 3}), 1e-9)
	require.Equal(t, 0.0, SMA(nil))
}

func TestRSIBounds(t *testing.T) {
	// нехватка истории — нейтрально
	require.Equal(t, 50.0, RSI([]float64{1, 2, 3}, 14))

	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}
	rsiUp := RSI(up, 14)
	rsiDown := RSI(down, 14)
	require.Greater(t, rsiUp, 70.0)
	require.Less(t, rsiDown, 30.0)
}

func TestATR(t *testing.T) {
	// недостаточно данных
	require.Equal(t, 0.0, ATR([]float64{1}, []float64{1}, []float64{1}, 14))

	high := make([]float64, 20)
	low := make([]float64, 20)
	close := make([]float64, 20)
	for i := range high {
		high[i] = 105 + float64(i)
		low[i] = 95 + float64(i)
		close[i] = 100 + float64(i)
	}
	atr := ATR(high, low, close, 14)
	require.Greater(t, atr, 0.0)

	// вырожденный вход (один ряд на все три) даёт почти нулевой ATR только
	// при плоском ряде; при тренде остаются дельты close
	flat := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100}
	require.InDelta(t, 0.0, ATR(flat, flat, flat, 14), 1e-9)
}
