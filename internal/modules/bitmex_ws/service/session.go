// Package service — WebSocket-сессия к realtime-фиду биржи: одна горутина
// держит соединение, переподключается с экспоненциальной паузой и
// раскладывает кадры по таблицам в исходящий канал событий.
package service

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"hft_bot/internal/book"
	"hft_bot/internal/models"
	"hft_bot/internal/modules/config"
	"hft_bot/pkg/logger"
)

// State — фаза жизненного цикла сессии.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

const (
	heartbeatInterval    = 30 * time.Second
	baseReconnectDelay   = 100 * time.Millisecond
	maxReconnectDelay    = 60 * time.Second
	maxReconnectAttempts = 10
)

// BookUpdate — батч уровней одного символа из orderBookL2_25.
type BookUpdate struct {
	Symbol string
	Bids   []book.Level
	Asks   []book.Level
}

// Event — один кадр фида, уже разобранный по таблице.
// Заполнено ровно одно из полей.
type Event struct {
	Instrument *models.InstrumentUpdate
	Book       *BookUpdate
	Trade      *models.MarketTick
}

type Session struct {
	cfg    *config.Config
	dialer *websocket.Dialer
	url    string

	state int32

	// подменяется в тестах, чтобы не ждать реальные паузы
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewSession(cfg *config.Config) *Session {
	return &Session{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		url:    cfg.WSURL(),
		sleep:  sleepCtx,
	}
}

func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Session) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

// reconnectDelay — пауза перед попыткой attempt (с нуля): 100ms * 2^attempt,
// но не больше минуты.
func reconnectDelay(attempt int) time.Duration {
	d := baseReconnectDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return d
}

// topics — аргументы подписки: instrument и стакан по каждому символу
// плюс дополнительные топики из конфига.
func (s *Session) topics() []string {
	var args []string
	for _, sym := range s.cfg.Instruments {
		args = append(args, "instrument:"+sym, "orderBookL2_25:"+sym)
		for _, t := range s.cfg.AdditionalTopics {
			args = append(args, t+":"+sym)
		}
	}
	return args
}

// Run держит сессию до отмены контекста. Подряд идущие неудачные
// подключения считаются; после maxReconnectAttempts возвращаем
// ConnectivityError — дальше решает вызывающий.
func (s *Session) Run(ctx context.Context, out chan<- Event) error {
	defer s.setState(StateDisconnected)

	attempts := 0
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil
		}
		if attempts >= maxReconnectAttempts {
			return &models.ConnectivityError{Attempts: attempts, Err: lastErr}
		}
		if attempts > 0 {
			wait := reconnectDelay(attempts)
			logger.Warn("ws: попытка %d/%d через %s", attempts+1, maxReconnectAttempts, wait)
			if !s.sleep(ctx, wait) {
				return nil
			}
		}

		s.setState(StateConnecting)
		conn, err := s.connect(ctx)
		if err != nil {
			attempts++
			lastErr = err
			logger.Warn("ws: подключение не удалось: %v", err)
			continue
		}

		s.setState(StateOpen)
		attempts, lastErr = 0, nil
		logger.Info("ws: сессия открыта, топиков: %d", len(s.topics()))

		err = s.readLoop(ctx, conn, out)
		s.setState(StateClosing)
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		attempts++
		lastErr = err
		logger.Warn("ws: сессия оборвана: %v", err)
	}
}

func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, http.Header{})
	if err != nil {
		return nil, err
	}

	sub := map[string]any{"op": "subscribe", "args": s.topics()}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// readLoop читает кадры до ошибки. Параллельно живёт keepalive:
// биржа рвёт молчащее соединение, поэтому раз в 30s шлём ping.
func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- Event) error {
	stopPing := make(chan struct{})
	defer close(stopPing)

	// отмена контекста должна выбить блокирующий ReadMessage
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stopPing:
		}
	}()

	go func() {
		t := time.NewTicker(heartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopPing:
				return
			case <-t.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if string(msg) == "pong" {
			continue
		}

		ev, ok := parseFrame(msg)
		if !ok {
			continue
		}
		for _, e := range ev {
			select {
			case out <- e:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
