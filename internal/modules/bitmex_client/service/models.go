package service

// Ответы BitMEX, только нужные нам поля.

type orderResp struct {
	OrderID   string  `json:"orderID"`
	OrdStatus string  `json:"ordStatus"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderQty  float64 `json:"orderQty"`
	Price     float64 `json:"price"`
}

type instrumentResp struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"lastPrice"`
	MarkPrice   float64 `json:"markPrice"`
	FundingRate float64 `json:"fundingRate"`
}

type bookRowResp struct {
	ID    int64   `json:"id"`
	Side  string  `json:"side"`
	Size  float64 `json:"size"`
	Price float64 `json:"price"`
}

type bucketResp struct {
	Close float64 `json:"close"`
}

type marginResp struct {
	// в сатоши
	MarginBalance float64 `json:"marginBalance"`
}

// OrderResult — результат размещения/изменения ордера.
type OrderResult struct {
	OrderID string
	Status  string
}
