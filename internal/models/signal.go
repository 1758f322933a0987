package models

// Signal — закрытый набор сигналов анализа стакана/позиции.
// Раньше это были строки ("close_long", "hold", ...) — теперь
// перечисление, чтобы switch был исчерпывающим.
type Signal int

const (
	SignalHold Signal = iota
	SignalReducePosition
	SignalTakeProfit
	SignalCutLoss
	SignalCloseLong
	SignalCloseShort
	SignalIncreaseLong
	SignalIncreaseShort
)

func (s Signal) String() string {
	switch s {
	case SignalHold:
		return "hold"
	case SignalReducePosition:
		return "reduce_position"
	case SignalTakeProfit:
		return "take_profit"
	case SignalCutLoss:
		return "cut_loss"
	case SignalCloseLong:
		return "close_long"
	case SignalCloseShort:
		return "close_short"
	case SignalIncreaseLong:
		return "increase_long"
	case SignalIncreaseShort:
		return "increase_short"
	}
	return "unknown"
}
