package bitmex_client

import (
	"go.uber.org/fx"

	"hft_bot/internal/modules/bitmex_client/service"
	"hft_bot/internal/ratelimit"
)

func Module() fx.Option {
	return fx.Module("bitmex_client",
		fx.Provide(
			ratelimit.NewDefault,
			service.NewClient,
		),
	)
}
