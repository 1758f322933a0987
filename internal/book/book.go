// Package book — локальный стакан по ценовым уровням. Источник считается
// авторитетным: каждый батч заменяет рабочий набор уровней целиком,
// после чего стороны обрезаются до MaxDepth с худшего края.
package book

import (
	"math"
	"sort"
	"sync"

	"hft_bot/internal/models"
)

// MaxDepth — сколько уровней держим на сторону; лишнее срезаем, чтобы
// память не росла на активном фиде.
const MaxDepth = 10

// Level — уровень стакана (строка orderBookL2).
type Level struct {
	ID    int64
	Side  string
	Price float64
	Size  float64
}

type Book struct {
	mu   sync.Mutex
	bids map[float64]Level
	asks map[float64]Level
}

func New() *Book {
	return &Book{
		bids: make(map[float64]Level),
		asks: make(map[float64]Level),
	}
}

// ApplyUpdate — батч из снапшота/дельты становится новой правдой.
// Мутация и обрезка — под одним локом, читатель не видит полусобранный стакан.
func (b *Book) ApplyUpdate(bids, asks []Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make(map[float64]Level, len(bids))
	b.asks = make(map[float64]Level, len(asks))

	for _, lv := range bids {
		b.bids[lv.Price] = lv
	}
	for _, lv := range asks {
		b.asks[lv.Price] = lv
	}

	b.trimLocked()
}

// trimLocked срезает худшие уровни: у бидов — самые низкие цены,
// у асков — самые высокие.
func (b *Book) trimLocked() {
	for len(b.bids) > MaxDepth {
		worst := math.Inf(1)
		for px := range b.bids {
			if px < worst {
				worst = px
			}
		}
		delete(b.bids, worst)
	}
	for len(b.asks) > MaxDepth {
		worst := math.Inf(-1)
		for px := range b.asks {
			if px > worst {
				worst = px
			}
		}
		delete(b.asks, worst)
	}
}

// BestBid — лучшая (максимальная) цена покупки. ok=false на пустой стороне.
func (b *Book) BestBid() (Level, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	best, ok := Level{}, false
	for px, lv := range b.bids {
		if !ok || px > best.Price {
			best, ok = lv, true
		}
	}
	return best, ok
}

// BestAsk — лучшая (минимальная) цена продажи.
func (b *Book) BestAsk() (Level, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	best, ok := Level{}, false
	for px, lv := range b.asks {
		if !ok || px < best.Price {
			best, ok = lv, true
		}
	}
	return best, ok
}

// ImbalanceRatio = bidVolume / (bidVolume + askVolume), в [0,1].
// ok=false — одна из сторон пуста, сигнала нет.
func (b *Book) ImbalanceRatio() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.imbalanceLocked()
}

func (b *Book) imbalanceLocked() (float64, bool) {
	var bidVol, askVol float64
	for _, lv := range b.bids {
		bidVol += lv.Size
	}
	for _, lv := range b.asks {
		askVol += lv.Size
	}
	if bidVol == 0 || askVol == 0 {
		return 0, false
	}
	return bidVol / (bidVol + askVol), true
}

// Depth — количество уровней по сторонам (для health-лога).
func (b *Book) Depth() (bids, asks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bids), len(b.asks)
}

// Levels — отсортированные копии сторон: биды по убыванию, аски по возрастанию.
func (b *Book) Levels() (bids, asks []Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, lv := range b.bids {
		bids = append(bids, lv)
	}
	for _, lv := range b.asks {
		asks = append(asks, lv)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return bids, asks
}

// AnalyzeParams — пороги для Analyze, берутся из RiskLimits.
type AnalyzeParams struct {
	MaxLeverage         float64
	TargetLeverage      float64
	MaxPnlPct           float64
	VolumeImbalanceMult float64 // множитель объёма (например 0.7 => перевес в 1/0.7 раза)
}

// Analyze — сигнал по стакану и текущей позиции. Взвешенные средние цены
// считаются по объёму; пустой или однобокий стакан — Hold.
func (b *Book) Analyze(pos models.Position, balance float64, p AnalyzeParams) models.Signal {
	b.mu.Lock()
	defer b.mu.Unlock()

	var bidVol, askVol, wBid, wAsk float64
	for _, lv := range b.bids {
		bidVol += lv.Size
		wBid += lv.Price * lv.Size
	}
	for _, lv := range b.asks {
		askVol += lv.Size
		wAsk += lv.Price * lv.Size
	}

	if bidVol == 0 || askVol == 0 || balance <= 0 {
		return models.SignalHold
	}

	midPrice := (wBid/bidVol + wAsk/askVol) / 2

	positionValue := math.Abs(pos.CurrentQty) * midPrice
	leverage := positionValue / balance
	pnlPct := pos.UnrealisedPnl / balance

	if leverage > p.MaxLeverage {
		return models.SignalReducePosition
	}

	if math.Abs(pnlPct) > p.MaxPnlPct {
		if pnlPct > 0 {
			return models.SignalTakeProfit
		}
		return models.SignalCutLoss
	}

	if bidVol > askVol*p.VolumeImbalanceMult {
		if pos.CurrentQty < 0 {
			return models.SignalCloseShort
		}
		if leverage < p.TargetLeverage {
			return models.SignalIncreaseLong
		}
	} else if askVol > bidVol*p.VolumeImbalanceMult {
		if pos.CurrentQty > 0 {
			return models.SignalCloseLong
		}
		if leverage < p.TargetLeverage {
			return models.SignalIncreaseShort
		}
	}

	return models.SignalHold
}
