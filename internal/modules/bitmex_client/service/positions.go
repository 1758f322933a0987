package service

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"

	"hft_bot/internal/models"
)

// GetPosition — позиция по символу. ok=false, если позиции нет.
func (c *Client) GetPosition(ctx context.Context, symbol string) (models.Position, bool, error) {
	filter := url.QueryEscape(`{"symbol":"` + symbol + `"}`)

	data, err := c.Request(ctx, http.MethodGet, "/position?filter="+filter, "")
	if err != nil {
		return models.Position{}, false, err
	}

	var rs []models.Position
	if err := sonic.Unmarshal(data, &rs); err != nil {
		return models.Position{}, false, &models.DataError{Msg: "position response: " + err.Error()}
	}
	if len(rs) == 0 {
		return models.Position{}, false, nil
	}
	return rs[0], true, nil
}

// GetPositions — все открытые позиции аккаунта.
func (c *Client) GetPositions(ctx context.Context) ([]models.Position, error) {
	data, err := c.Request(ctx, http.MethodGet, "/position", "")
	if err != nil {
		return nil, err
	}

	var rs []models.Position
	if err := sonic.Unmarshal(data, &rs); err != nil {
		return nil, &models.DataError{Msg: "positions response: " + err.Error()}
	}
	return rs, nil
}
