package bitmex_ws

import (
	"go.uber.org/fx"

	"hft_bot/internal/modules/bitmex_ws/service"
)

// Module отдаёт сессию фида и общий канал событий.
// Жизненным циклом сессии владеет runner: ему решать, что делать
// с фатальной ошибкой подключения.
func Module() fx.Option {
	return fx.Module("bitmex_ws",
		fx.Provide(
			service.NewSession,
			func() chan service.Event {
				// общий буфер на стакан + instrument + trade
				return make(chan service.Event, 1024)
			},
		),
	)
}
