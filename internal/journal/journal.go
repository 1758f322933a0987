// Package journal — аудит ордерных событий в Postgres. Журнал
// необязателен: без DSN все записи тихо пропускаются.
package journal

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"hft_bot/internal/models"
	"hft_bot/pkg/db"
	"hft_bot/pkg/logger"
)

const insertEvent = `
INSERT INTO order_events (ts, event, order_id, symbol, side, qty, price, ord_type, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type Pg struct {
	mgr *db.PgTxManager
}

// NewPg — mgr == nil допустим, журнал превращается в no-op.
func NewPg(mgr *db.PgTxManager) *Pg {
	return &Pg{mgr: mgr}
}

// Record пишет событие ордера. Ошибка записи не должна мешать торговле —
// логируем и едем дальше.
func (j *Pg) Record(ctx context.Context, event string, o models.OpenOrder) {
	if j == nil || j.mgr == nil {
		return
	}

	err := j.mgr.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, insertEvent,
			time.Now().UTC(), event, o.OrderID, o.Symbol, o.Side,
			o.Quantity, o.Price, o.OrdType, o.Status,
		)
		return err
	})
	if err != nil {
		logger.Warn("journal: запись события %s для %s не удалась: %v", event, o.OrderID, err)
	}
}
