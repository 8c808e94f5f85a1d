// Package pricefetcher fetches the latest USD price of one symbol from
// CoinMarketCap and renders it as a display line.
package pricefetcher

import (
	"context"
	"errors"
	"fmt"

	"chonkprice/internal/coinmarketcap"
)

const (
	DefaultAPIKey = "YOUR_CMC_API_KEY"
	DefaultSymbol = "CHONK9K"
	// DefaultEndpoint is informational; requests are built from the client's base URL.
	DefaultEndpoint = coinmarketcap.DefaultBaseURL + coinmarketcap.QuotesLatestPath

	// ErrorMessage is returned in place of a price for any non-200 response.
	ErrorMessage = "Error fetching price"

	currency = "USD"
)

// Quote is the price of a symbol in USD.
type Quote struct {
	Symbol   string
	PriceUSD float64
}

// String renders the quote as "<symbol> Price: $<price>" with four decimals.
func (q Quote) String() string {
	return FormatPrice(q.Symbol, q.PriceUSD)
}

// FormatPrice renders a price line with exactly four fractional digits.
func FormatPrice(symbol string, price float64) string {
	return fmt.Sprintf("%s Price: $%.4f", symbol, price)
}

// QuoteClient is the part of the CoinMarketCap client the fetcher uses.
type QuoteClient interface {
	QuotesLatest(ctx context.Context, symbols []string, convert string, opts ...coinmarketcap.Option) (coinmarketcap.Quotes, error)
}

// Fetcher performs one quote request per call. It keeps no state between
// calls and does not retry, cache or time out on its own.
type Fetcher struct {
	client QuoteClient
	symbol string
}

// New returns a Fetcher for symbol. An empty symbol means DefaultSymbol.
func New(client QuoteClient, symbol string) *Fetcher {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Fetcher{client: client, symbol: symbol}
}

// NewDefault builds a Fetcher for DefaultSymbol on a fresh CoinMarketCap client.
func NewDefault(apiKey string, opts ...coinmarketcap.Option) (*Fetcher, error) {
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}
	client, err := coinmarketcap.NewClient(apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap client: %w", err)
	}
	return New(client, DefaultSymbol), nil
}

// Symbol returns the symbol the fetcher prices.
func (f *Fetcher) Symbol() string { return f.symbol }

// Quote requests the latest quote. Any failure, including a non-200
// status, is returned as an error.
func (f *Fetcher) Quote(ctx context.Context) (Quote, error) {
	// convert is left empty so the request carries only symbol=<symbol>.
	quotes, err := f.client.QuotesLatest(ctx, []string{f.symbol}, "")
	if err != nil {
		return Quote{}, err
	}
	c, err := quotes.Lookup(f.symbol)
	if err != nil {
		return Quote{}, err
	}
	price, err := c.Price(currency)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Symbol: f.symbol, PriceUSD: price}, nil
}

// FetchPrice returns the display line for the latest price. A non-200
// response yields ErrorMessage with a nil error; a malformed body or a
// transport failure yields an error and no line.
func (f *Fetcher) FetchPrice(ctx context.Context) (string, error) {
	q, err := f.Quote(ctx)
	if err != nil {
		var statusErr *coinmarketcap.StatusError
		if errors.As(err, &statusErr) {
			return ErrorMessage, nil
		}
		return "", fmt.Errorf("fetch %s price: %w", f.symbol, err)
	}
	return q.String(), nil
}
