// Package service — торговый цикл: маркет-мейкинг, управление позициями
// и портфельные лимиты. Все обращения к бирже идут через леджер (ордера)
// либо REST-клиент (чтения), любая ошибка цикла поглощается с паузой.
package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"hft_bot/internal/book"
	"hft_bot/internal/models"
	"hft_bot/internal/modules/config"
	"hft_bot/pkg/logger"
)

// Exchange — чтения и сервисные вызовы REST-клиента, нужные стратегии.
type Exchange interface {
	GetPosition(ctx context.Context, symbol string) (models.Position, bool, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	AccountBalance(ctx context.Context) (float64, error)
	HistoricalCloses(ctx context.Context, symbol string, count int) ([]float64, error)
	CancelAllAfter(ctx context.Context, timeoutMs int) error
}

// Orders — ордерные операции через леджер: гейты и учёт там.
type Orders interface {
	Submit(ctx context.Context, side string, qty, price float64, symbol, ordType string) (*models.OpenOrder, error)
	CancelAll(ctx context.Context, symbol, side string) error
	OnTraded(value float64)
}

type Notifier interface {
	Sendf(format string, args ...any)
}

type Engine struct {
	cfg    *config.Config
	ex     Exchange
	orders Orders
	n      Notifier

	mu          sync.Mutex
	books       map[string]*book.Book
	instruments map[string]models.InstrumentUpdate
	lastTick    map[string]models.MarketTick

	// после ошибки цикла торговля замирает до этого момента
	backoffUntil time.Time
	intentSeq    int64

	now func() time.Time
}

func NewEngine(cfg *config.Config, ex Exchange, orders Orders, n Notifier) *Engine {
	return &Engine{
		cfg:         cfg,
		ex:          ex,
		orders:      orders,
		n:           n,
		books:       make(map[string]*book.Book),
		instruments: make(map[string]models.InstrumentUpdate),
		lastTick:    make(map[string]models.MarketTick),
		now:         time.Now,
	}
}

// OnBook — батч уровней от фида; стакан символа заменяется целиком.
func (e *Engine) OnBook(symbol string, bids, asks []book.Level) {
	e.bookFor(symbol).ApplyUpdate(bids, asks)
}

// OnInstrument — свежий тик инструмента (lastPrice/markPrice/fundingRate).
func (e *Engine) OnInstrument(inst models.InstrumentUpdate) {
	e.mu.Lock()
	e.instruments[inst.Symbol] = inst
	e.mu.Unlock()
}

// OnTrade — сделка с рынка; запоминаем последнюю цену.
func (e *Engine) OnTrade(tick models.MarketTick) {
	e.mu.Lock()
	e.lastTick[tick.Symbol] = tick
	e.mu.Unlock()
}

// OnOrder — обновление собственного ордера; исполнение пополняет
// наторгованный объём для QVR.
func (e *Engine) OnOrder(o models.OpenOrder) {
	if o.Status == models.StatusFilled {
		e.orders.OnTraded(o.Quantity * o.Price)
		logger.Info("strategy: ордер %s исполнен, %s %.0f @ %.2f", o.OrderID, o.Side, o.Quantity, o.Price)
	}
}

func (e *Engine) bookFor(symbol string) *book.Book {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[symbol]
	if !ok {
		b = book.New()
		e.books[symbol] = b
	}
	return b
}

func (e *Engine) instrument(symbol string) (models.InstrumentUpdate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instruments[symbol]
	return inst, ok
}

// Trade — один торговый цикл на рыночный тик. Ошибки биржи не фатальны:
// логируем, замораживаем торговлю на error_wait_time и ждём следующий тик.
func (e *Engine) Trade(ctx context.Context, tick models.MarketTick) {
	e.mu.Lock()
	frozen := e.now().Before(e.backoffUntil)
	e.mu.Unlock()
	if frozen {
		logger.Debug("strategy: пауза после ошибки, тик %s пропущен", tick.Symbol)
		return
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "trade_cycle")
	defer span.Finish()

	logger.Info("strategy: торговый цикл %s @ %.2f", tick.Symbol, tick.Price)

	// продление dead-man's switch — первым делом, это страховка от нас самих
	if err := e.ex.CancelAllAfter(ctx, e.cfg.Trading.DeadMansSwitchTimeoutMs); err != nil {
		e.absorb("dead-man's switch", err)
		return
	}

	if err := e.placeMarketMakingOrders(ctx, tick.Symbol, tick.Price); err != nil {
		e.absorb("маркет-мейкинг", err)
		return
	}

	if tick.Price == 0 {
		return
	}

	e.managePositions(ctx, tick.Price)

	if inst, ok := e.instrument(tick.Symbol); ok {
		e.updateStrategy(ctx, inst)
	}

	e.adjustOnImbalance(ctx, tick.Symbol)
}

// absorb — единая точка поглощения ошибок цикла.
func (e *Engine) absorb(what string, err error) {
	logger.Error("strategy: %s: %v", what, err)
	if e.n != nil {
		e.n.Sendf("⚠️ Стратегия: %s: %v", what, err)
	}
	e.mu.Lock()
	e.backoffUntil = e.now().Add(e.cfg.Trading.ErrorWaitTime)
	e.mu.Unlock()
}

func (e *Engine) nextIntentID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.intentSeq++
	return e.intentSeq
}

// DesiredOrders — рекомендательный срез: что движок разместил бы прямо
// сейчас, без отправки на биржу. Трендовый вход при пустой позиции плюс
// защитные выходы по каждой открытой.
func (e *Engine) DesiredOrders(ctx context.Context) ([]models.OrderIntent, error) {
	inst, ok := e.instrument(e.cfg.Symbol)
	if !ok || inst.LastPrice <= 0 {
		return nil, nil
	}
	price := inst.LastPrice

	balance, err := e.ex.AccountBalance(ctx)
	if err != nil {
		return nil, err
	}

	var intents []models.OrderIntent

	pos, havePos, err := e.ex.GetPosition(ctx, e.cfg.Symbol)
	if err != nil {
		return nil, err
	}

	if !havePos || pos.Empty() {
		if side, ok := e.trendEntrySide(ctx, inst); ok {
			intents = append(intents, models.OrderIntent{
				ID:       e.nextIntentID(),
				Side:     side,
				Price:    price,
				Quantity: math.Floor(balance * e.cfg.Risk.RiskPerTrade / price),
				Symbol:   e.cfg.Symbol,
			})
		}
		return intents, nil
	}

	exitSide := models.SideSell
	if pos.CurrentQty < 0 {
		exitSide = models.SideBuy
	}

	if e.trailingStopHit(pos, price) {
		intents = append(intents, models.OrderIntent{
			ID:       e.nextIntentID(),
			Side:     exitSide,
			Price:    price,
			Quantity: math.Abs(pos.CurrentQty),
			Symbol:   pos.Symbol,
		})
	}

	risk := positionRisk(pos, price)
	if risk > e.cfg.Risk.RiskPerTrade {
		reduce := math.Floor(math.Abs(pos.CurrentQty) * (risk - e.cfg.Risk.RiskPerTrade) / risk)
		if reduce > 0 {
			intents = append(intents, models.OrderIntent{
				ID:       e.nextIntentID(),
				Side:     exitSide,
				Price:    price,
				Quantity: reduce,
				Symbol:   pos.Symbol,
			})
		}
	}

	return intents, nil
}

// positionRisk = |uPnL| / |qty * price|, метрика из портфельного прохода.
func positionRisk(pos models.Position, currentPrice float64) float64 {
	value := math.Abs(pos.CurrentQty * currentPrice)
	if value == 0 {
		return 0
	}
	upnl := pos.CurrentQty * (currentPrice - pos.AvgEntryPrice)
	return math.Abs(upnl) / value
}

func (e *Engine) trailingStopHit(pos models.Position, currentPrice float64) bool {
	if pos.TrailingStop == 0 {
		return false
	}
	if pos.CurrentQty > 0 {
		return currentPrice <= pos.TrailingStop
	}
	if pos.CurrentQty < 0 {
		return currentPrice >= pos.TrailingStop
	}
	return false
}
