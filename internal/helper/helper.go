package helper

import "math"

// RoundDownToTick / RoundUpToTick — цена котировки должна лежать на сетке
// тиков инструмента, иначе биржа отклонит ордер.
func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return steps * tick
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Ceil(px/tick - 1e-12)
	return steps * tick
}

// SatoshiToXBT — биржа отдаёт балансы в сатоши.
func SatoshiToXBT(v float64) float64 { return v / 1e8 }

// Clamp — x в пределах [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
