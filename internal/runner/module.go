package runner

import (
	"context"

	"go.uber.org/fx"

	"hft_bot/internal/journal"
	"hft_bot/internal/ledger"
	client "hft_bot/internal/modules/bitmex_client/service"
	"hft_bot/internal/modules/config"
	"hft_bot/internal/notify"
	"hft_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(c *client.Client, j *journal.Pg) *ledger.Ledger {
				return ledger.New(c, j)
			},
			newNotifier,
			New,
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					r.Start(ctx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}

// newNotifier — Telegram при заданном токене, иначе stdout-заглушка.
func newNotifier(lc fx.Lifecycle, cfg *config.Config, c *client.Client) notify.Notifier {
	if cfg.Telegram.Token == "" {
		return notify.NewStdout()
	}

	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, c)
	if err != nil {
		logger.Warn("runner: telegram недоступен (%v), уведомления в лог", err)
		return notify.NewStdout()
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return tg.Start(ctx) },
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return tg
}
