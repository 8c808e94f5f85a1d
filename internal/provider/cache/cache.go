package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"chonkprice/internal/provider"
	"golang.org/x/sync/singleflight"
)

const layer = "memory"

// entry stores cached quotes for a single symbol with expiry.
type entry struct {
	expiresAt time.Time
	quotes    []provider.Quote
}

// Provider caches results per symbol for a TTL.
// It requests only missing symbols from the underlying provider and
// combines cached + fresh results. Concurrent requests for the same
// missing symbols share one upstream call.
type Provider struct {
	P        provider.Provider
	TTL      time.Duration
	MaxItems int
	Observer provider.CacheObserver

	// Now defaults to time.Now.
	Now func() time.Time

	// RefreshTimeout bounds a shared upstream refresh; default 30s.
	RefreshTimeout time.Duration

	mu    sync.RWMutex
	items map[string]entry // key: symbol
	sf    singleflight.Group
}

func (c *Provider) Name() string { return c.P.Name() }

func (c *Provider) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Provider) refreshTimeout() time.Duration {
	if c.RefreshTimeout > 0 {
		return c.RefreshTimeout
	}
	return 30 * time.Second
}

func (c *Provider) observe(hit bool) {
	if c.Observer != nil {
		c.Observer.ObserveCache(layer, hit)
	}
}

// Fetch returns quotes for requested symbols using cache when valid.
func (c *Provider) Fetch(ctx context.Context, symbols []string) ([]provider.Quote, error) {
	if c.TTL <= 0 {
		return c.P.Fetch(ctx, symbols)
	}

	now := c.now()

	// Split into cached and missing symbols, preserving request order
	cached := make(map[string][]provider.Quote, len(symbols))
	missing := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))

	c.mu.RLock()
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if e, ok := c.items[s]; ok && now.Before(e.expiresAt) {
			cached[s] = e.quotes
			c.observe(true)
			continue
		}
		c.observe(false)
		missing = append(missing, s)
	}
	c.mu.RUnlock()

	var fresh map[string][]provider.Quote
	if len(missing) > 0 {
		// The shared refresh must outlive any single caller: it runs on a
		// context detached from ctx, and each caller waits on its own ctx.
		ch := c.sf.DoChan(strings.Join(missing, "\x00"), func() (any, error) {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
			defer cancel()
			return c.refresh(rctx, missing)
		})
		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}
		v, err := res.Val, res.Err
		if err != nil {
			// If we have at least some cached data, return it rather than failing entirely
			if len(cached) > 0 {
				return merge(symbols, cached, nil), nil
			}
			return nil, err
		}
		fresh = v.(map[string][]provider.Quote)
	}
	return merge(symbols, cached, fresh), nil
}

// refresh fetches missing symbols and stores them.
func (c *Provider) refresh(ctx context.Context, missing []string) (map[string][]provider.Quote, error) {
	qs, err := c.P.Fetch(ctx, missing)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]provider.Quote, len(missing))
	for _, q := range qs {
		bySymbol[q.Symbol] = append(bySymbol[q.Symbol], q)
	}

	now := c.now()
	expiry := now.Add(c.TTL)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry, len(bySymbol))
	}
	for sym, qs := range bySymbol {
		c.items[sym] = entry{expiresAt: expiry, quotes: qs}
	}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// expired first, then arbitrary keys until under the cap
		for k, v := range c.items {
			if !now.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			delete(c.items, k)
		}
	}
	return bySymbol, nil
}

// Put stores q as the only cached quote for its symbol, e.g. when another
// instance announced a fresher price.
func (c *Provider) Put(q provider.Quote) {
	if c.TTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[q.Symbol] = entry{expiresAt: c.now().Add(c.TTL), quotes: []provider.Quote{q}}
}

func merge(symbols []string, cached, fresh map[string][]provider.Quote) []provider.Quote {
	out := make([]provider.Quote, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if qs, ok := fresh[s]; ok {
			out = append(out, qs...)
			continue
		}
		out = append(out, cached[s]...)
	}
	return out
}
