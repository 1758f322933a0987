package models

import "time"

// Стороны и типы ордеров — как на проводе BitMEX.
const (
	SideBuy  = "Buy"
	SideSell = "Sell"

	OrdTypeLimit  = "Limit"
	OrdTypeMarket = "Market"
	OrdTypeStop   = "Stop"
)

// Статусы жизненного цикла, которые мы отслеживаем локально.
// "Tracking" — наш собственный статус сразу после успешного размещения,
// до первого ответа поллинга. Остальные приходят с биржи (ordStatus).
const (
	StatusTracking = "Tracking"
	StatusNew      = "New"
	StatusFilled   = "Filled"
	StatusCanceled = "Canceled"
	StatusRejected = "Rejected"
)

// OpenOrder — локально известный открытый ордер. Ключ — orderID с биржи.
type OpenOrder struct {
	OrderID     string
	Side        string
	Quantity    float64
	Price       float64
	Symbol      string
	OrdType     string
	Status      string
	LastUpdated time.Time
}

// Terminal — ордер дошёл до конечного статуса и может быть убран из леджера.
func (o OpenOrder) Terminal() bool {
	return o.Status == StatusFilled || o.Status == StatusCanceled || o.Status == StatusRejected
}

// OrderIntent — желаемый ордер, отдаётся наружу через DesiredOrders().
type OrderIntent struct {
	ID       int64
	Side     string
	Price    float64
	Quantity float64
	Symbol   string
}
