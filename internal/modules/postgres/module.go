package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"hft_bot/internal/journal"
	"hft_bot/internal/modules/config"
	"hft_bot/pkg/db"
	"hft_bot/pkg/logger"
)

// Module поднимает пул Postgres для журнала ордеров. Пустой DSN —
// журнал выключен, это не ошибка.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.Journal.DSN == "" {
					logger.Info("postgres: DSN не задан, журнал ордеров выключен")
					return nil, nil
				}

				ctx := context.Background()
				pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.Journal.DSN})
				if err != nil {
					return nil, fmt.Errorf("failed to create pool: %w", err)
				}
				if err := pool.Ping(ctx); err != nil {
					return nil, err
				}

				mgr := db.NewPgTxManager(pool)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						mgr.Close()
						return nil
					},
				})
				return mgr, nil
			},
			journal.NewPg,
		),
	)
}
