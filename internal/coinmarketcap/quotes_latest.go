package coinmarketcap

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// QuotesLatestPath is the v1 quotes endpoint, keyed by symbol in the response.
const QuotesLatestPath = "/v1/cryptocurrency/quotes/latest"

// Currency is a cryptocurrency as returned by the quotes and listings endpoints.
type Currency struct {
	ID                int                   `json:"id"`
	Name              string                `json:"name"`
	Symbol            string                `json:"symbol"`
	Slug              string                `json:"slug"`
	CMCRank           *int                  `json:"cmc_rank"`
	NumMarketPairs    int                   `json:"num_market_pairs"`
	CirculatingSupply *float64              `json:"circulating_supply"`
	TotalSupply       *float64              `json:"total_supply"`
	MaxSupply         *float64              `json:"max_supply"`
	LastUpdated       string                `json:"last_updated"`
	DateAdded         string                `json:"date_added"`
	Tags              []string              `json:"tags"`
	Quote             map[string]QuoteEntry `json:"quote"`
}

// QuoteEntry is the market data of a currency in one convert currency.
// Price is a pointer so that a missing or null price can be told apart from zero.
type QuoteEntry struct {
	Price                 *float64 `json:"price"`
	Volume24h             float64  `json:"volume_24h"`
	VolumeChange24h       float64  `json:"volume_change_24h"`
	PercentChange1h       float64  `json:"percent_change_1h"`
	PercentChange24h      float64  `json:"percent_change_24h"`
	PercentChange7d       float64  `json:"percent_change_7d"`
	MarketCap             float64  `json:"market_cap"`
	MarketCapDominance    float64  `json:"market_cap_dominance"`
	FullyDilutedMarketCap float64  `json:"fully_diluted_market_cap"`
	LastUpdated           string   `json:"last_updated"`
}

// Price returns the price of c in convert, validating every step of the
// data.<symbol>.quote.<convert>.price path.
func (c Currency) Price(convert string) (float64, error) {
	entry, ok := c.Quote[convert]
	if !ok {
		return 0, fmt.Errorf("%s: %w: %s", c.Symbol, ErrCurrencyNotFound, convert)
	}
	if entry.Price == nil {
		return 0, fmt.Errorf("%s/%s: %w", c.Symbol, convert, ErrMissingPrice)
	}
	if *entry.Price < 0 {
		return 0, fmt.Errorf("%s/%s: %w: %v", c.Symbol, convert, ErrNegativePrice, *entry.Price)
	}
	return *entry.Price, nil
}

// Quotes is the data block of the quotes endpoint, keyed by symbol.
type Quotes map[string]Currency

// Lookup returns the currency for symbol.
func (q Quotes) Lookup(symbol string) (Currency, error) {
	c, ok := q[symbol]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return c, nil
}

// QuotesLatest retrieves the latest quotes for symbols. convert is only sent
// when non-empty; CoinMarketCap quotes in USD otherwise.
func (c *Client) QuotesLatest(ctx context.Context, symbols []string, convert string, opts ...Option) (Quotes, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols")
	}
	query := url.Values{}
	query.Set("symbol", strings.Join(symbols, ","))
	if convert != "" {
		query.Set("convert", convert)
	}
	quotes, err := get[Quotes](ctx, c, QuotesLatestPath, query, opts)
	if err != nil {
		return nil, err
	}
	if quotes == nil {
		quotes = Quotes{}
	}
	return quotes, nil
}
