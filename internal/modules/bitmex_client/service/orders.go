package service

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"hft_bot/internal/models"
	"hft_bot/pkg/logger"
)

// PlaceOrder — POST /order. Для Market-ордеров price=0 и поле не шлётся.
func (c *Client) PlaceOrder(ctx context.Context, side string, qty, price float64, symbol, ordType string) (*OrderResult, error) {
	body := map[string]any{
		"symbol":   symbol,
		"side":     side,
		"orderQty": qty,
		"ordType":  ordType,
	}
	if price > 0 {
		body["price"] = price
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal order")
	}

	data, err := c.Request(ctx, http.MethodPost, "/order", string(payload))
	if err != nil {
		return nil, err
	}

	var r orderResp
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, &models.DataError{Msg: "place order response: " + err.Error()}
	}
	if r.OrderID == "" {
		return nil, &models.DataError{Msg: "place order response without orderID: " + string(data)}
	}

	logger.Info("order: %s %s %.0f @ %.2f размещён, orderID=%s", side, symbol, qty, price, r.OrderID)
	return &OrderResult{OrderID: r.OrderID, Status: r.OrdStatus}, nil
}

// AmendOrder — PUT /order, меняет количество и цену.
func (c *Client) AmendOrder(ctx context.Context, orderID string, qty, price float64) (*OrderResult, error) {
	payload, err := sonic.Marshal(map[string]any{
		"orderID":  orderID,
		"orderQty": qty,
		"price":    price,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal amend")
	}

	data, err := c.Request(ctx, http.MethodPut, "/order", string(payload))
	if err != nil {
		return nil, err
	}

	var r orderResp
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, &models.DataError{Msg: "amend response: " + err.Error()}
	}
	if r.OrderID == "" {
		return nil, &models.DataError{Msg: "amend response without orderID: " + string(data)}
	}
	return &OrderResult{OrderID: r.OrderID, Status: r.OrdStatus}, nil
}

// CancelOrder — DELETE /order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	payload, err := sonic.Marshal(map[string]any{"orderID": orderID})
	if err != nil {
		return errors.Wrap(err, "marshal cancel")
	}

	_, err = c.Request(ctx, http.MethodDelete, "/order", string(payload))
	return err
}

// CancelAllOrders — DELETE /order/all; side пустой = обе стороны.
// Возвращает orderID отменённых ордеров.
func (c *Client) CancelAllOrders(ctx context.Context, symbol, side string) ([]string, error) {
	body := map[string]any{"symbol": symbol}
	if side != "" {
		body["side"] = side
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal cancel all")
	}

	data, err := c.Request(ctx, http.MethodDelete, "/order/all", string(payload))
	if err != nil {
		return nil, err
	}

	var rs []orderResp
	if err := sonic.Unmarshal(data, &rs); err != nil {
		return nil, &models.DataError{Msg: "cancel all response: " + err.Error()}
	}

	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.OrderID != "" {
			ids = append(ids, r.OrderID)
		}
	}
	return ids, nil
}

// CancelAllAfter — dead-man's switch: если не продлевать, биржа сама снимет
// все ордера через timeout миллисекунд.
func (c *Client) CancelAllAfter(ctx context.Context, timeoutMs int) error {
	payload, err := sonic.Marshal(map[string]any{"timeout": timeoutMs})
	if err != nil {
		return errors.Wrap(err, "marshal cancelAllAfter")
	}

	_, err = c.Request(ctx, http.MethodPost, "/order/cancelAllAfter", string(payload))
	return err
}

// OrderStatus — GET /order?filter={"orderID": ...}, текущий ordStatus.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (string, error) {
	filter := url.QueryEscape(`{"orderID":"` + orderID + `"}`)

	data, err := c.Request(ctx, http.MethodGet, "/order?filter="+filter, "")
	if err != nil {
		return "", err
	}

	var rs []orderResp
	if err := sonic.Unmarshal(data, &rs); err != nil {
		return "", &models.DataError{Msg: "order status response: " + err.Error()}
	}
	if len(rs) == 0 || rs[0].OrdStatus == "" {
		return "", &models.DataError{Msg: "no status for order " + orderID}
	}
	return rs[0].OrdStatus, nil
}
