package helper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundToTick(t *testing.T) {
	require.Equal(t, 106.5, RoundDownToTick(106.893, 0.5))
	require.Equal(t, 107.5, RoundUpToTick(107.107, 0.5))

	// цена на сетке не двигается
	require.Equal(t, 100.0, RoundDownToTick(100.0, 0.5))
	require.Equal(t, 100.0, RoundUpToTick(100.0, 0.5))

	// нулевой тик — цена как есть
	require.Equal(t, 99.99, RoundDownToTick(99.99, 0))
}

func TestSatoshiToXBT(t *testing.T) {
	require.Equal(t, 1.0, SatoshiToXBT(1e8))
	require.Equal(t, 0.5, SatoshiToXBT(5e7))
}

func TestClamp(t *testing.T) {
	require.Equal(t, 1.0, Clamp(2, 0, 1))
	require.Equal(t, 0.0, Clamp(-1, 0, 1))
	require.Equal(t, 0.5, Clamp(0.5, 0, 1))
}
