package book

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"hft_bot/internal/models"
)

func bid(px, sz float64) Level { return Level{Side: models.SideBuy, Price: px, Size: sz} }
func ask(px, sz float64) Level { return Level{Side: models.SideSell, Price: px, Size: sz} }

func TestApplyUpdateReplacesAndTrims(t *testing.T) {
	b := New()

	var bids, asks []Level
	for i := 0; i < 15; i++ {
		bids = append(bids, bid(100-float64(i), 1))
		asks = append(asks, ask(101+float64(i), 1))
	}
	b.ApplyUpdate(bids, asks)

	nb, na := b.Depth()
	require.Equal(t, MaxDepth, nb)
	require.Equal(t, MaxDepth, na)

	// срезаются худшие края: остаются биды 91..100 и аски 101..110
	sortedBids, sortedAsks := b.Levels()
	require.Equal(t, 100.0, sortedBids[0].Price)
	require.Equal(t, 91.0, sortedBids[len(sortedBids)-1].Price)
	require.Equal(t, 101.0, sortedAsks[0].Price)
	require.Equal(t, 110.0, sortedAsks[len(sortedAsks)-1].Price)

	// следующий батч — новая правда, старые уровни не выживают
	b.ApplyUpdate([]Level{bid(50, 2)}, []Level{ask(51, 2)})
	best, ok := b.BestBid()
	require.True(t, ok)
	require.Equal(t, 50.0, best.Price)
	nb, na = b.Depth()
	require.Equal(t, 1, nb)
	require.Equal(t, 1, na)
}

func TestOrderingInvariant(t *testing.T) {
	b := New()
	for round := 0; round < 5; round++ {
		var bids, asks []Level
		for i := 0; i < 12; i++ {
			bids = append(bids, bid(float64(90+i)+float64(round), 1))
			asks = append(asks, ask(float64(110+i)-float64(round), 1))
		}
		b.ApplyUpdate(bids, asks)

		sb, sa := b.Levels()
		require.LessOrEqual(t, len(sb), MaxDepth)
		require.LessOrEqual(t, len(sa), MaxDepth)
		for i := 1; i < len(sb); i++ {
			require.Greater(t, sb[i-1].Price, sb[i].Price, fmt.Sprintf("bids round %d", round))
		}
		for i := 1; i < len(sa); i++ {
			require.Less(t, sa[i-1].Price, sa[i].Price, fmt.Sprintf("asks round %d", round))
		}
	}
}

func TestImbalanceRatio(t *testing.T) {
	b := New()

	// пустой стакан — нейтрально
	_, ok := b.ImbalanceRatio()
	require.False(t, ok)

	// биды 30 @ 99, аски 10 @ 101 => 30/40 = 0.75
	b.ApplyUpdate([]Level{bid(99, 30)}, []Level{ask(101, 10)})
	r, ok := b.ImbalanceRatio()
	require.True(t, ok)
	require.InDelta(t, 0.75, r, 1e-9)
	require.GreaterOrEqual(t, r, 0.0)
	require.LessOrEqual(t, r, 1.0)

	// одна сторона пуста — сигнала нет
	b.ApplyUpdate([]Level{bid(99, 30)}, nil)
	_, ok = b.ImbalanceRatio()
	require.False(t, ok)
}

func TestAnalyzeSignals(t *testing.T) {
	p := AnalyzeParams{
		MaxLeverage:         10,
		TargetLeverage:      5,
		MaxPnlPct:           0.05,
		VolumeImbalanceMult: 0.7,
	}

	b := New()
	b.ApplyUpdate([]Level{bid(100, 30)}, []Level{ask(101, 10)})

	// без позиции и с перевесом бидов — наращиваем лонг
	require.Equal(t, models.SignalIncreaseLong,
		b.Analyze(models.Position{}, 10000, p))

	// шорт против перевеса бидов закрывается
	require.Equal(t, models.SignalCloseShort,
		b.Analyze(models.Position{CurrentQty: -10}, 10000, p))

	// запредельное плечо — сперва снижаем позицию
	require.Equal(t, models.SignalReducePosition,
		b.Analyze(models.Position{CurrentQty: 2000}, 10000, p))

	// перекос PnL важнее дисбаланса объёмов
	require.Equal(t, models.SignalCutLoss,
		b.Analyze(models.Position{CurrentQty: 10, UnrealisedPnl: -600}, 10000, p))
	require.Equal(t, models.SignalTakeProfit,
		b.Analyze(models.Position{CurrentQty: 10, UnrealisedPnl: 600}, 10000, p))

	// пустая сторона — держим
	b.ApplyUpdate(nil, []Level{ask(101, 10)})
	require.Equal(t, models.SignalHold,
		b.Analyze(models.Position{}, 10000, p))
}
