// Package ledger — локальный учёт открытых ордеров и гейты торговых правил.
// Ни один ордер не уходит на биржу мимо Submit.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"hft_bot/internal/models"
	"hft_bot/internal/modules/bitmex_client/service"
	"hft_bot/internal/rules"
	"hft_bot/pkg/logger"
)

// Exchange — то, что леджеру нужно от REST-клиента.
type Exchange interface {
	PlaceOrder(ctx context.Context, side string, qty, price float64, symbol, ordType string) (*service.OrderResult, error)
	AmendOrder(ctx context.Context, orderID string, qty, price float64) (*service.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAllOrders(ctx context.Context, symbol, side string) ([]string, error)
	OrderStatus(ctx context.Context, orderID string) (string, error)
	BestBidAsk(ctx context.Context, symbol string) (float64, float64, error)
	GetInstrument(ctx context.Context, symbol string) (models.InstrumentUpdate, error)
}

// Journal — необязательный аудит ордерных событий (pg). nil — не пишем.
type Journal interface {
	Record(ctx context.Context, event string, o models.OpenOrder)
}

type statusUpdate struct {
	orderID string
	status  string
}

type Ledger struct {
	ex      Exchange
	journal Journal

	mu     sync.Mutex
	orders map[string]models.OpenOrder

	// счётчики QVR
	tradedValue     float64
	quotesSubmitted int

	statusCh chan statusUpdate
	onFill   func(models.OpenOrder)

	maxAttempts   int
	rateLimitWait time.Duration
	loadShedWait  time.Duration
}

func New(ex Exchange, journal Journal) *Ledger {
	return &Ledger{
		ex:            ex,
		journal:       journal,
		orders:        make(map[string]models.OpenOrder),
		statusCh:      make(chan statusUpdate, 64),
		maxAttempts:   3,
		rateLimitWait: 100 * time.Millisecond,
		loadShedWait:  200 * time.Millisecond,
	}
}

// Run — цикл применения статусов от фоновых поллеров. Результат трекинга
// возвращается в леджер через канал, а не из отвязанной горутины напрямую.
func (l *Ledger) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-l.statusCh:
			l.applyStatus(up)
		}
	}
}

func (l *Ledger) applyStatus(up statusUpdate) {
	l.mu.Lock()
	o, ok := l.orders[up.orderID]
	if !ok {
		l.mu.Unlock()
		logger.Warn("ledger: статус для неизвестного ордера %s", up.orderID)
		return
	}
	o.Status = up.status
	o.LastUpdated = time.Now()
	if o.Terminal() {
		delete(l.orders, up.orderID)
	} else {
		l.orders[up.orderID] = o
	}
	fillFn := l.onFill
	l.mu.Unlock()

	logger.Info("ledger: ордер %s -> %s", up.orderID, up.status)
	if l.journal != nil {
		l.journal.Record(context.Background(), "status", o)
	}

	// колбэк вне мьютекса: обработчик может дергать OnTraded
	if o.Status == models.StatusFilled && fillFn != nil {
		fillFn(o)
	}
}

// NotifyFills регистрирует обработчик исполнений (вызывается из Run).
func (l *Ledger) NotifyFills(fn func(models.OpenOrder)) {
	l.mu.Lock()
	l.onFill = fn
	l.mu.Unlock()
}

// Submit — гейты, размещение с повторами, учёт.
func (l *Ledger) Submit(ctx context.Context, side string, qty, price float64, symbol, ordType string) (*models.OpenOrder, error) {
	bestBid, bestAsk, markPrice, err := l.fetchGateInputs(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := l.checkGates(side, qty, price, symbol, ordType, bestBid, bestAsk, markPrice); err != nil {
		logger.Warn("ledger: ордер отклонён локально: %v", err)
		return nil, err
	}

	res, err := l.placeWithRetry(ctx, side, qty, price, symbol, ordType)
	if err != nil {
		return nil, err
	}

	order := models.OpenOrder{
		OrderID:     res.OrderID,
		Side:        side,
		Quantity:    qty,
		Price:       price,
		Symbol:      symbol,
		OrdType:     ordType,
		Status:      models.StatusTracking,
		LastUpdated: time.Now(),
	}

	l.mu.Lock()
	l.orders[order.OrderID] = order
	l.quotesSubmitted++
	l.mu.Unlock()

	if l.journal != nil {
		l.journal.Record(ctx, "submit", order)
	}

	// fire-and-forget поллер; результат вернётся через statusCh
	go l.trackOrder(ctx, order.OrderID)

	return &order, nil
}

// fetchGateInputs — верх стакана и марк-цена. Чтения независимы,
// запускаем параллельно и ждём оба.
func (l *Ledger) fetchGateInputs(ctx context.Context, symbol string) (bestBid, bestAsk, markPrice float64, err error) {
	var wg sync.WaitGroup
	var bookErr, instErr error
	var inst models.InstrumentUpdate

	wg.Add(2)
	go func() {
		defer wg.Done()
		bestBid, bestAsk, bookErr = l.ex.BestBidAsk(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		inst, instErr = l.ex.GetInstrument(ctx, symbol)
	}()
	wg.Wait()

	if bookErr != nil {
		return 0, 0, 0, errors.Wrap(bookErr, "gate: order book")
	}
	if instErr != nil {
		return 0, 0, 0, errors.Wrap(instErr, "gate: instrument")
	}
	return bestBid, bestAsk, inst.MarkPrice, nil
}

// checkGates — три независимых правила, все должны пройти.
func (l *Ledger) checkGates(side string, qty, price float64, symbol, ordType string, bestBid, bestAsk, markPrice float64) error {
	// fat-finger не применим к Market: цены в ордере нет
	if ordType != models.OrdTypeMarket && price > 0 {
		if err := rules.CheckFatFinger(side, price, bestBid, bestAsk, markPrice); err != nil {
			return err
		}
	}

	l.mu.Lock()
	open, stop := l.countBySymbolLocked(symbol)
	traded, quotes := l.tradedValue, l.quotesSubmitted
	l.mu.Unlock()

	if err := rules.CheckOrderLimits(symbol, open, stop); err != nil {
		return err
	}

	return rules.CheckQVR(qty*price, traded, quotes)
}

func (l *Ledger) countBySymbolLocked(symbol string) (open, stop int) {
	for _, o := range l.orders {
		if o.Symbol != symbol {
			continue
		}
		if o.OrdType == models.OrdTypeLimit || o.OrdType == models.OrdTypeMarket {
			open++
		} else {
			stop++
		}
	}
	return open, stop
}

// placeWithRetry — ограниченный цикл попыток вместо рекурсии:
// rate limit — короткая пауза, load shedding — чуть длиннее,
// остальное пробрасывается после последней попытки.
func (l *Ledger) placeWithRetry(ctx context.Context, side string, qty, price float64, symbol, ordType string) (*service.OrderResult, error) {
	var lastErr error
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		res, err := l.ex.PlaceOrder(ctx, side, qty, price, symbol, ordType)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var apiErr *models.ApiError
		switch {
		case errors.As(err, &apiErr) && apiErr.Kind == models.ApiKindRateLimit:
			logger.Warn("ledger: rate limit при размещении, пауза %s", l.rateLimitWait)
			if !sleepCtx(ctx, l.rateLimitWait) {
				return nil, ctx.Err()
			}
		case errors.As(err, &apiErr) && apiErr.LoadShedding():
			logger.Warn("ledger: биржа сбрасывает нагрузку, пауза %s", l.loadShedWait)
			if !sleepCtx(ctx, l.loadShedWait) {
				return nil, ctx.Err()
			}
		default:
			if attempt == l.maxAttempts-1 {
				return nil, errors.Wrapf(err, "place %s %s after %d attempts", side, symbol, l.maxAttempts)
			}
		}
	}
	return nil, errors.Wrapf(lastErr, "place %s %s after %d attempts", side, symbol, l.maxAttempts)
}

func (l *Ledger) trackOrder(ctx context.Context, orderID string) {
	status, err := l.ex.OrderStatus(ctx, orderID)
	if err != nil {
		logger.Warn("ledger: не удалось получить статус ордера %s: %v", orderID, err)
		return
	}
	select {
	case l.statusCh <- statusUpdate{orderID: orderID, status: status}:
	case <-ctx.Done():
	}
}

// Amend обновляет запись только при успехе на бирже — никаких полусостояний.
func (l *Ledger) Amend(ctx context.Context, orderID string, qty, price float64) error {
	if _, err := l.ex.AmendOrder(ctx, orderID, qty, price); err != nil {
		return err
	}

	l.mu.Lock()
	if o, ok := l.orders[orderID]; ok {
		o.Quantity = qty
		o.Price = price
		o.LastUpdated = time.Now()
		l.orders[orderID] = o
		if l.journal != nil {
			l.journal.Record(ctx, "amend", o)
		}
	}
	l.mu.Unlock()

	logger.Info("ledger: ордер %s изменён: %.0f @ %.2f", orderID, qty, price)
	return nil
}

func (l *Ledger) Cancel(ctx context.Context, orderID string) error {
	if err := l.ex.CancelOrder(ctx, orderID); err != nil {
		return err
	}

	l.mu.Lock()
	o, ok := l.orders[orderID]
	delete(l.orders, orderID)
	l.mu.Unlock()

	if ok && l.journal != nil {
		l.journal.Record(ctx, "cancel", o)
	}
	logger.Info("ledger: ордер %s снят", orderID)
	return nil
}

// CancelAll — снять все ордера стороны (side пустой — обе).
func (l *Ledger) CancelAll(ctx context.Context, symbol, side string) error {
	ids, err := l.ex.CancelAllOrders(ctx, symbol, side)
	if err != nil {
		return err
	}

	l.mu.Lock()
	for _, id := range ids {
		delete(l.orders, id)
	}
	l.mu.Unlock()

	logger.Info("ledger: снято %d ордеров (%s %s)", len(ids), symbol, side)
	return nil
}

// OnTraded — учёт наторгованного объёма для QVR.
func (l *Ledger) OnTraded(value float64) {
	l.mu.Lock()
	l.tradedValue += value
	l.mu.Unlock()
}

// Open — копия открытых ордеров по символу (обе стороны при side == "").
func (l *Ledger) Open(symbol, side string) []models.OpenOrder {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.OpenOrder
	for _, o := range l.orders {
		if o.Symbol == symbol && (side == "" || o.Side == side) {
			out = append(out, o)
		}
	}
	return out
}

func (l *Ledger) Get(orderID string) (models.OpenOrder, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[orderID]
	return o, ok
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
