package cmcadapter

import (
	"context"
	"fmt"
	"time"

	"chonkprice/internal/coinmarketcap"
	"chonkprice/internal/provider"
)

type Config struct {
	Name     string // display name, default: CoinMarketCap
	Currency string // convert currency, default: USD
}

// QuoteClient is the part of *coinmarketcap.Client the adapter needs.
type QuoteClient interface {
	QuotesLatest(ctx context.Context, symbols []string, convert string, opts ...coinmarketcap.Option) (coinmarketcap.Quotes, error)
}

// Adapter exposes CoinMarketCap quotes as a provider.Provider.
type Adapter struct {
	cfg    Config
	client QuoteClient
	now    func() time.Time
}

func New(cfg Config, client QuoteClient) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "CoinMarketCap"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Adapter{cfg: cfg, client: client, now: time.Now}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Fetch requests all symbols in one call. Symbols without a usable price
// in the configured currency are skipped; the call only fails when the
// request itself fails.
func (a *Adapter) Fetch(ctx context.Context, symbols []string) ([]provider.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	quotes, err := a.client.QuotesLatest(ctx, symbols, a.cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.cfg.Name, err)
	}

	now := a.now().UTC()
	out := make([]provider.Quote, 0, len(symbols))
	for _, s := range symbols {
		c, err := quotes.Lookup(s)
		if err != nil {
			continue
		}
		price, err := c.Price(a.cfg.Currency)
		if err != nil {
			continue
		}
		out = append(out, provider.Quote{
			Symbol:     s,
			Price:      price,
			Currency:   a.cfg.Currency,
			Source:     a.cfg.Name,
			ReceivedAt: receivedAt(c.Quote[a.cfg.Currency].LastUpdated, now),
		})
	}
	return out, nil
}

// receivedAt parses CoinMarketCap's last_updated stamp, falling back to now.
func receivedAt(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
