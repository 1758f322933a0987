package models

// Position — снапшот позиции с биржи. Не кешируем между циклами:
// между ними могли пройти исполнения.
type Position struct {
	Symbol        string  `json:"symbol"`
	CurrentQty    float64 `json:"currentQty"`
	AvgEntryPrice float64 `json:"avgEntryPrice"`
	UnrealisedPnl float64 `json:"unrealisedPnl"`
	TrailingStop  float64 `json:"trailingStop,omitempty"`
	LastPrice     float64 `json:"lastPrice,omitempty"`
}

// Side — сторона позиции по знаку qty.
func (p Position) Side() string {
	if p.CurrentQty > 0 {
		return SideBuy
	}
	return SideSell
}

func (p Position) Empty() bool { return p.CurrentQty == 0 }
