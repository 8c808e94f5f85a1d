package provider

import (
	"context"
	"errors"
	"time"
)

// ErrNoQuote is returned when a provider has no price for a requested symbol.
var ErrNoQuote = errors.New("no quote")

// Quote is the normalized shape returned by all providers.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}

//go:generate mockgen -package=providermock -destination=providermock/mock_provider.go -source=provider.go Provider,CacheObserver
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbols []string) ([]Quote, error)
}

// CacheObserver is told about every cache lookup a caching provider makes.
type CacheObserver interface {
	ObserveCache(layer string, hit bool)
}

// Find returns the first quote for symbol.
func Find(quotes []Quote, symbol string) (Quote, bool) {
	for _, q := range quotes {
		if q.Symbol == symbol {
			return q, true
		}
	}
	return Quote{}, false
}
