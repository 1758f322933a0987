package models

// MarketTick — вход торгового цикла (из WS или от внешнего драйвера).
type MarketTick struct {
	Symbol  string
	Price   float64 // mid
	Volume  float64
	BestBid float64
	BestAsk float64
}

// InstrumentUpdate — обновление по инструменту из WS (table=instrument).
type InstrumentUpdate struct {
	Symbol      string
	LastPrice   float64
	MarkPrice   float64
	FundingRate float64
}
