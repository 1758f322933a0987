package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(limits []Window) (*Limiter, *time.Time) {
	l := New(limits)
	cur := time.Unix(1000, 0)
	l.now = func() time.Time { return cur }
	return l, &cur
}

func TestAdmitHonorsEveryWindow(t *testing.T) {
	l, cur := newTestLimiter([]Window{
		{MaxRequests: 5, Period: time.Minute},
		{MaxRequests: 2, Period: time.Second},
	})

	require.True(t, l.Admit())
	require.True(t, l.Admit())
	// секундное окно заполнено, минутное ещё нет
	require.False(t, l.Admit())

	*cur = cur.Add(time.Second)
	require.True(t, l.Admit())
	require.True(t, l.Admit())
	require.False(t, l.Admit())

	// минутное окно: 4 штампа, остался один
	*cur = cur.Add(time.Second)
	require.True(t, l.Admit())
	require.False(t, l.Admit())

	*cur = cur.Add(2 * time.Second)
	// секундное окно чистое, но минутное заполнено
	require.False(t, l.Admit())
}

func TestAdmitExactlyAtWindowExpiry(t *testing.T) {
	l, cur := newTestLimiter([]Window{{MaxRequests: 1, Period: time.Second}})

	require.True(t, l.Admit())
	require.False(t, l.Admit())

	// ровно на границе окна штамп считается протухшим
	*cur = cur.Add(time.Second)
	require.True(t, l.Admit())
}

func TestNeverMoreThanMaxInTrailingWindow(t *testing.T) {
	const max = 7
	l, cur := newTestLimiter([]Window{{MaxRequests: max, Period: time.Minute}})

	admitted := 0
	for i := 0; i < 1000; i++ {
		if l.Admit() {
			admitted++
		}
		*cur = cur.Add(100 * time.Millisecond)

		// в любом хвостовом окне не больше max штампов
		require.LessOrEqual(t, len(l.stamps[0]), max)
	}
	require.Greater(t, admitted, max) // окно скользит, пропускаем волнами
}

func TestResetInterval(t *testing.T) {
	l := NewDefault()
	require.Equal(t, time.Minute, l.ResetInterval())
}
