package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hft_bot/internal/models"
)

func TestFatFingerBuy(t *testing.T) {
	// bestBid=100, bestAsk=101, mark=100.5 => потолок 101*1.05 = 106.05
	err := CheckFatFinger(models.SideBuy, 107, 100, 101, 100.5)
	require.Error(t, err)
	var rej *models.TradingRuleRejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "fat_finger", rej.Rule)

	require.NoError(t, CheckFatFinger(models.SideBuy, 105, 100, 101, 100.5))
}

func TestFatFingerSell(t *testing.T) {
	// пол: min(100, 100.5)*0.95 = 95
	require.Error(t, CheckFatFinger(models.SideSell, 94, 100, 101, 100.5))
	require.NoError(t, CheckFatFinger(models.SideSell, 96, 100, 101, 100.5))
}

func TestFatFingerUnknownSide(t *testing.T) {
	require.Error(t, CheckFatFinger("Hold", 100, 100, 101, 100.5))
}

func TestOrderLimits(t *testing.T) {
	require.NoError(t, CheckOrderLimits("XBTUSD", 0, 0))
	require.NoError(t, CheckOrderLimits("XBTUSD", 199, 9))
	require.Error(t, CheckOrderLimits("XBTUSD", 200, 0))
	require.Error(t, CheckOrderLimits("XBTUSD", 0, 10))
}

func TestQVR(t *testing.T) {
	// в пределах бесплатной квоты всё проходит, даже без оборота
	require.NoError(t, CheckQVR(1000, 0, 3600))

	// сверх квоты при нулевом обороте — отказ
	require.Error(t, CheckQVR(1000, 0, 3700))

	// при достаточном обороте проходит
	require.NoError(t, CheckQVR(1000, 1.0, 3700))
}
