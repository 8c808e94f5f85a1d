package coinmarketcap

import (
	"context"
	"net/url"
	"strconv"
)

const ExchangeMapPath = "/v1/exchange/map"

// Exchange is an entry of the exchange map.
type Exchange struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	Slug                string `json:"slug"`
	IsActive            int    `json:"is_active"`
	Status              string `json:"status"`
	FirstHistoricalData string `json:"first_historical_data"`
	LastHistoricalData  string `json:"last_historical_data"`
}

// ExchangeMap retrieves up to limit active exchanges.
func (c *Client) ExchangeMap(ctx context.Context, limit int, opts ...Option) ([]Exchange, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	query.Set("listing_status", "active")
	exchanges, err := get[[]Exchange](ctx, c, ExchangeMapPath, query, opts)
	if err != nil {
		return nil, err
	}
	if exchanges == nil {
		exchanges = []Exchange{}
	}
	return exchanges, nil
}
