package coinmarketcap

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const MarketPairsLatestPath = "/v1/cryptocurrency/market-pairs/latest"

// MarketPairs is the data block of the market pairs endpoint.
type MarketPairs struct {
	ID             int          `json:"id"`
	Name           string       `json:"name"`
	Symbol         string       `json:"symbol"`
	NumMarketPairs int          `json:"num_market_pairs"`
	MarketPairs    []MarketPair `json:"market_pairs"`
}

// MarketPair is one trading pair of a currency on an exchange.
type MarketPair struct {
	Exchange struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"exchange"`
	MarketID        int     `json:"market_id"`
	MarketPair      string  `json:"market_pair"`
	Category        string  `json:"category"`
	FeeType         string  `json:"fee_type"`
	MarketPairBase  PairLeg `json:"market_pair_base"`
	MarketPairQuote PairLeg `json:"market_pair_quote"`
	Quote           map[string]struct {
		Price       *float64 `json:"price"`
		Volume24h   float64  `json:"volume_24h"`
		LastUpdated string   `json:"last_updated"`
	} `json:"quote"`
}

// PairLeg is the base or quote side of a market pair.
type PairLeg struct {
	CurrencyID     int    `json:"currency_id"`
	CurrencySymbol string `json:"currency_symbol"`
	CurrencyType   string `json:"currency_type"`
	ExchangeSymbol string `json:"exchange_symbol"`
}

// MarketPairsLatest retrieves up to limit market pairs for symbol.
func (c *Client) MarketPairsLatest(ctx context.Context, symbol string, limit int, opts ...Option) (MarketPairs, error) {
	if symbol == "" {
		return MarketPairs{}, fmt.Errorf("empty symbol")
	}
	query := url.Values{}
	query.Set("symbol", symbol)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	pairs, err := get[MarketPairs](ctx, c, MarketPairsLatestPath, query, opts)
	if err != nil {
		return MarketPairs{}, err
	}
	if pairs.MarketPairs == nil {
		pairs.MarketPairs = []MarketPair{}
	}
	return pairs, nil
}
