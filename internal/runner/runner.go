// Package runner связывает фид, леджер и стратегию: одна горутина на
// сессию фида, одна на цикл статусов леджера, одна на раздачу событий.
package runner

import (
	"context"
	"time"

	"go.uber.org/fx"

	"hft_bot/internal/ledger"
	"hft_bot/internal/models"
	wssvc "hft_bot/internal/modules/bitmex_ws/service"
	"hft_bot/internal/modules/config"
	strategysvc "hft_bot/internal/modules/strategy/service"
	"hft_bot/internal/notify"
	"hft_bot/pkg/logger"
)

type Runner struct {
	cfg        *config.Config
	session    *wssvc.Session
	events     chan wssvc.Event
	engine     *strategysvc.Engine
	led        *ledger.Ledger
	n          notify.Notifier
	shutdowner fx.Shutdowner

	// не чаще одного торгового цикла на символ за trade_interval
	lastCycle map[string]time.Time
}

func New(
	cfg *config.Config,
	session *wssvc.Session,
	events chan wssvc.Event,
	engine *strategysvc.Engine,
	led *ledger.Ledger,
	n notify.Notifier,
	shutdowner fx.Shutdowner,
) *Runner {
	return &Runner{
		cfg:        cfg,
		session:    session,
		events:     events,
		engine:     engine,
		led:        led,
		n:          n,
		shutdowner: shutdowner,
		lastCycle:  make(map[string]time.Time),
	}
}

// Start поднимает фоновые циклы. Фатальна только ошибка сессии после
// исчерпания переподключений — тогда гасим процесс через fx.
func (r *Runner) Start(ctx context.Context) {
	r.led.NotifyFills(r.engine.OnOrder)
	go r.led.Run(ctx)

	go func() {
		if err := r.session.Run(ctx, r.events); err != nil {
			logger.Error("runner: фид мёртв: %v", err)
			if r.n != nil {
				r.n.Sendf("🛑 Фид биржи недоступен, бот останавливается: %v", err)
			}
			_ = r.shutdowner.Shutdown()
		}
	}()

	go r.dispatch(ctx)

	logger.Info("runner: запущен, инструментов: %d", len(r.cfg.Instruments))
}

// dispatch раздаёт события фида движку и решает, когда пора запускать
// торговый цикл.
func (r *Runner) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			switch {
			case ev.Book != nil:
				r.engine.OnBook(ev.Book.Symbol, ev.Book.Bids, ev.Book.Asks)

			case ev.Trade != nil:
				r.engine.OnTrade(*ev.Trade)

			case ev.Instrument != nil:
				r.engine.OnInstrument(*ev.Instrument)
				r.maybeTrade(ctx, *ev.Instrument)
			}
		}
	}
}

func (r *Runner) maybeTrade(ctx context.Context, inst models.InstrumentUpdate) {
	if inst.LastPrice <= 0 {
		return
	}

	now := time.Now()
	if now.Sub(r.lastCycle[inst.Symbol]) < r.cfg.Trading.TradeInterval {
		return
	}
	r.lastCycle[inst.Symbol] = now

	r.engine.Trade(ctx, models.MarketTick{
		Symbol: inst.Symbol,
		Price:  inst.LastPrice,
	})
}
