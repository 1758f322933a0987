package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"hft_bot/internal/modules/bitmex_client"
	"hft_bot/internal/modules/bitmex_ws"
	"hft_bot/internal/modules/config"
	"hft_bot/internal/modules/postgres"
	"hft_bot/internal/modules/strategy"
	"hft_bot/internal/runner"
	"hft_bot/pkg/logger"
	"hft_bot/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("hft_bot")
	tracing.SetServiceName("hft_bot")

	app := fx.New(
		config.Module(),
		bitmex_client.Module(),
		bitmex_ws.Module(),
		postgres.Module(),
		strategy.Module(),
		runner.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) {
			if cfg.Tracing.Host == "" {
				return
			}
			_, closer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Tracing.Host,
				Port: cfg.Tracing.Port,
			})
			if err != nil {
				logger.Warn("main: трейсер не поднялся: %v", err)
				return
			}
			lc.Append(fx.Hook{OnStop: func(context.Context) error { closer(); return nil }})
		}),
	)
	app.Run()
}
