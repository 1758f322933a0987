package strategy

import (
	"go.uber.org/fx"

	"hft_bot/internal/ledger"
	client "hft_bot/internal/modules/bitmex_client/service"
	"hft_bot/internal/modules/config"
	"hft_bot/internal/modules/strategy/service"
	"hft_bot/internal/notify"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config, c *client.Client, l *ledger.Ledger, n notify.Notifier) *service.Engine {
				return service.NewEngine(cfg, c, l, n)
			},
		),
	)
}
