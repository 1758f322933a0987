package ratelimit

import (
	"sync"
	"time"
)

// Limiter — скользящие окна по нескольким классам запросов сразу
// (у BitMEX общий лимит и отдельный на order-роуты). Запрос проходит,
// только если есть место во ВСЕХ окнах; тогда штамп пишется в каждое.
// Чистка протухших штампов — лениво на каждом вызове, без фоновых таймеров.
type Limiter struct {
	mu     sync.Mutex
	limits []Window
	stamps [][]time.Time

	now func() time.Time // подменяется в тестах
}

type Window struct {
	MaxRequests int
	Period      time.Duration
}

// Дефолтные лимиты BitMEX: 120 запросов в минуту + 10 в секунду на ордера.
func NewDefault() *Limiter {
	return New([]Window{
		{MaxRequests: 120, Period: time.Minute},
		{MaxRequests: 10, Period: time.Second},
	})
}

func New(limits []Window) *Limiter {
	l := &Limiter{
		limits: limits,
		stamps: make([][]time.Time, len(limits)),
		now:    time.Now,
	}
	return l
}

// Admit — неблокирующая проверка-и-запись. false означает "сейчас нельзя":
// решать, ждать или отбрасывать, должен вызывающий.
func (l *Limiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	for i := range l.limits {
		l.prune(i, now)
		if len(l.stamps[i]) >= l.limits[i].MaxRequests {
			return false
		}
	}

	for i := range l.limits {
		l.stamps[i] = append(l.stamps[i], now)
	}
	return true
}

// ResetInterval — период первого окна; им вызывающие размеряют паузы.
func (l *Limiter) ResetInterval() time.Duration {
	return l.limits[0].Period
}

// prune выкидывает штампы возрастом >= периода окна. Штамп ровно на границе
// окна считается протухшим: запрос в этот момент проходит.
func (l *Limiter) prune(i int, now time.Time) {
	cut := 0
	for _, ts := range l.stamps[i] {
		if now.Sub(ts) >= l.limits[i].Period {
			cut++
			continue
		}
		break
	}
	if cut > 0 {
		l.stamps[i] = append(l.stamps[i][:0], l.stamps[i][cut:]...)
	}
}
