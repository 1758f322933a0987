// Package notify — уведомления оператору. Telegram, если задан токен,
// иначе stdout-заглушка.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hft_bot/internal/models"
	"hft_bot/pkg/logger"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// PositionSource — откуда брать позиции для команды /positions.
type PositionSource interface {
	GetPositions(ctx context.Context) ([]models.Position, error)
}

// Telegram — пассивный нотифайер + одна команда /positions.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	src    PositionSource
}

func NewTelegram(token string, chatID int64, src PositionSource) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID, src: src}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) handlePositions(ctx context.Context) {
	positions, err := t.src.GetPositions(ctx)
	if err != nil {
		t.Sendf("❗️ Ошибка получения позиций: %v", err)
		return
	}

	open := positions[:0]
	for _, p := range positions {
		if !p.Empty() {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		t.Send("📭 Открытых позиций нет")
		return
	}

	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, p := range open {
		fmt.Fprintf(&b, "- %s [%s] qty=%.0f @ %.2f uPnL=%.4f\n",
			p.Symbol, p.Side(), p.CurrentQty, p.AvgEntryPrice, p.UnrealisedPnl)
	}
	t.Send(b.String())
}

// Start — long-polling команд. Слушаем только свой чат.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "positions":
					go t.handlePositions(ctx)
				}
			}
		}
	}()
	return nil
}

// Stdout — всё в лог, без внешних зависимостей.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("%s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { logger.Info(format, args...) }
