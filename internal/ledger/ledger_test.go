package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hft_bot/internal/models"
	"hft_bot/internal/modules/bitmex_client/service"
	"hft_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	m.Run()
}

// fakeExchange — управляемая заглушка REST-клиента.
type fakeExchange struct {
	mu sync.Mutex

	bestBid, bestAsk float64
	markPrice        float64

	placeCalls  int32
	placeErrs   []error // ошибки по попыткам, дальше — успех
	placedIDs   []string
	status      string
	canceledIDs []string
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		bestBid:   100,
		bestAsk:   101,
		markPrice: 100.5,
		status:    models.StatusNew,
	}
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, side string, qty, price float64, symbol, ordType string) (*service.OrderResult, error) {
	n := atomic.AddInt32(&f.placeCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(n) <= len(f.placeErrs) {
		return nil, f.placeErrs[n-1]
	}
	id := "ord-" + symbol + "-" + side
	f.placedIDs = append(f.placedIDs, id)
	return &service.OrderResult{OrderID: id, Status: models.StatusNew}, nil
}

func (f *fakeExchange) AmendOrder(ctx context.Context, orderID string, qty, price float64) (*service.OrderResult, error) {
	return &service.OrderResult{OrderID: orderID, Status: models.StatusNew}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) error {
	f.mu.Lock()
	f.canceledIDs = append(f.canceledIDs, orderID)
	f.mu.Unlock()
	return nil
}

func (f *fakeExchange) CancelAllOrders(ctx context.Context, symbol, side string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.placedIDs...)
	return out, nil
}

func (f *fakeExchange) OrderStatus(ctx context.Context, orderID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeExchange) BestBidAsk(ctx context.Context, symbol string) (float64, float64, error) {
	return f.bestBid, f.bestAsk, nil
}

func (f *fakeExchange) GetInstrument(ctx context.Context, symbol string) (models.InstrumentUpdate, error) {
	return models.InstrumentUpdate{Symbol: symbol, MarkPrice: f.markPrice, LastPrice: f.markPrice}, nil
}

func TestSubmitTracksOrder(t *testing.T) {
	ex := newFakeExchange()
	l := New(ex, nil)

	o, err := l.Submit(context.Background(), models.SideBuy, 100, 100.5, "XBTUSD", models.OrdTypeLimit)
	require.NoError(t, err)
	require.Equal(t, models.StatusTracking, o.Status)

	got, ok := l.Get(o.OrderID)
	require.True(t, ok)
	require.Equal(t, "XBTUSD", got.Symbol)
	require.Len(t, l.Open("XBTUSD", models.SideBuy), 1)
	require.Empty(t, l.Open("XBTUSD", models.SideSell))
}

// Цена за пределами ±5% от max(bestAsk, mark) не должна дойти до биржи.
func TestSubmitFatFingerNeverReachesExchange(t *testing.T) {
	ex := newFakeExchange() // bid 100, ask 101, mark 100.5 — потолок 106.05
	l := New(ex, nil)

	_, err := l.Submit(context.Background(), models.SideBuy, 100, 107, "XBTUSD", models.OrdTypeLimit)
	require.Error(t, err)

	var rej *models.TradingRuleRejection
	require.ErrorAs(t, err, &rej)
	require.Zero(t, atomic.LoadInt32(&ex.placeCalls))

	// 105 внутри коридора — проходит
	_, err = l.Submit(context.Background(), models.SideBuy, 100, 105, "XBTUSD", models.OrdTypeLimit)
	require.NoError(t, err)
}

// Market без цены fat-finger не трогает.
func TestSubmitMarketSkipsFatFinger(t *testing.T) {
	ex := newFakeExchange()
	l := New(ex, nil)

	_, err := l.Submit(context.Background(), models.SideSell, 50, 0, "XBTUSD", models.OrdTypeMarket)
	require.NoError(t, err)
}

func TestSubmitRetriesOnRateLimit(t *testing.T) {
	ex := newFakeExchange()
	ex.placeErrs = []error{
		&models.ApiError{Kind: models.ApiKindRateLimit, StatusCode: 429},
		&models.ApiError{Kind: models.ApiKindServer, StatusCode: 503},
	}

	l := New(ex, nil)
	l.rateLimitWait = time.Millisecond
	l.loadShedWait = time.Millisecond

	o, err := l.Submit(context.Background(), models.SideBuy, 10, 100, "XBTUSD", models.OrdTypeLimit)
	require.NoError(t, err)
	require.NotEmpty(t, o.OrderID)
	require.EqualValues(t, 3, atomic.LoadInt32(&ex.placeCalls))
}

func TestSubmitGivesUpAfterMaxAttempts(t *testing.T) {
	ex := newFakeExchange()
	ex.placeErrs = []error{
		&models.ApiError{Kind: models.ApiKindRateLimit, StatusCode: 429},
		&models.ApiError{Kind: models.ApiKindRateLimit, StatusCode: 429},
		&models.ApiError{Kind: models.ApiKindRateLimit, StatusCode: 429},
	}

	l := New(ex, nil)
	l.rateLimitWait = time.Millisecond

	_, err := l.Submit(context.Background(), models.SideBuy, 10, 100, "XBTUSD", models.OrdTypeLimit)
	require.Error(t, err)
	require.EqualValues(t, l.maxAttempts, atomic.LoadInt32(&ex.placeCalls))
}

func TestRunAppliesTerminalStatus(t *testing.T) {
	ex := newFakeExchange()
	ex.status = models.StatusFilled

	l := New(ex, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	o, err := l.Submit(ctx, models.SideBuy, 10, 100, "XBTUSD", models.OrdTypeLimit)
	require.NoError(t, err)

	// поллер статуса снимет заполненный ордер из учёта
	require.Eventually(t, func() bool {
		_, ok := l.Get(o.OrderID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

// Исполнение, пришедшее от поллера, должно дойти до обработчика fills.
func TestNotifyFillsDeliversFilledOrder(t *testing.T) {
	ex := newFakeExchange()
	ex.status = models.StatusFilled

	l := New(ex, nil)

	var mu sync.Mutex
	var fills []models.OpenOrder
	l.NotifyFills(func(o models.OpenOrder) {
		mu.Lock()
		fills = append(fills, o)
		mu.Unlock()
		l.OnTraded(o.Quantity * o.Price) // так делает стратегия
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	_, err := l.Submit(ctx, models.SideBuy, 10, 100, "XBTUSD", models.OrdTypeLimit)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fills) == 1
	}, time.Second, 5*time.Millisecond)

	l.mu.Lock()
	traded := l.tradedValue
	l.mu.Unlock()
	require.Equal(t, 1000.0, traded)
}

func TestCancelRemovesOrder(t *testing.T) {
	ex := newFakeExchange()
	l := New(ex, nil)

	o, err := l.Submit(context.Background(), models.SideBuy, 10, 100, "XBTUSD", models.OrdTypeLimit)
	require.NoError(t, err)

	require.NoError(t, l.Cancel(context.Background(), o.OrderID))
	_, ok := l.Get(o.OrderID)
	require.False(t, ok)
	require.Contains(t, ex.canceledIDs, o.OrderID)
}

func TestCancelAllClearsSide(t *testing.T) {
	ex := newFakeExchange()
	l := New(ex, nil)

	_, err := l.Submit(context.Background(), models.SideBuy, 10, 100, "XBTUSD", models.OrdTypeLimit)
	require.NoError(t, err)

	require.NoError(t, l.CancelAll(context.Background(), "XBTUSD", models.SideBuy))
	require.Empty(t, l.Open("XBTUSD", ""))
}

func TestAmendUpdatesLocalState(t *testing.T) {
	ex := newFakeExchange()
	l := New(ex, nil)

	o, err := l.Submit(context.Background(), models.SideBuy, 10, 100, "XBTUSD", models.OrdTypeLimit)
	require.NoError(t, err)

	require.NoError(t, l.Amend(context.Background(), o.OrderID, 20, 100.5))
	got, ok := l.Get(o.OrderID)
	require.True(t, ok)
	require.Equal(t, 20.0, got.Quantity)
	require.Equal(t, 100.5, got.Price)
}
