package coinmarketcap

import (
	"context"
	"net/url"
	"strconv"
)

const ListingsLatestPath = "/v1/cryptocurrency/listings/latest"

// ListingsLatest retrieves the top limit currencies by market cap, priced in convert.
func (c *Client) ListingsLatest(ctx context.Context, limit int, convert string, opts ...Option) ([]Currency, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if convert != "" {
		query.Set("convert", convert)
	}
	listings, err := get[[]Currency](ctx, c, ListingsLatestPath, query, opts)
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []Currency{}
	}
	return listings, nil
}
