// Package rediscache shares fetched quotes between service instances through
// Redis. Fresh quotes are written with a TTL and announced on a Pub/Sub channel.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chonkprice/internal/provider"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const layer = "redis"

// Provider serves quotes from Redis when present and fetches the rest from P.
// Redis failures are logged and degrade to a pass-through.
type Provider struct {
	P        provider.Provider
	Redis    redis.UniversalClient
	TTL      time.Duration
	Channel  string // empty disables publishing
	Observer provider.CacheObserver
	Log      logrus.FieldLogger
}

func (c *Provider) Name() string { return c.P.Name() }

// Key returns the Redis key holding the quotes for symbol.
func Key(symbol string) string {
	return fmt.Sprintf("chonkprice:quote:%s", strings.ToUpper(symbol))
}

func (c *Provider) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

func (c *Provider) observe(hit bool) {
	if c.Observer != nil {
		c.Observer.ObserveCache(layer, hit)
	}
}

func (c *Provider) Fetch(ctx context.Context, symbols []string) ([]provider.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	cached, missing := c.lookup(ctx, symbols)
	if len(missing) == 0 {
		return cached, nil
	}

	fresh, err := c.P.Fetch(ctx, missing)
	if err != nil {
		if len(cached) > 0 {
			c.logger().WithError(err).Warn("upstream fetch failed; serving redis quotes only")
			return cached, nil
		}
		return nil, err
	}
	if err := c.store(ctx, fresh); err != nil {
		c.logger().WithError(err).Warn("redis store failed")
	}

	bySymbol := make(map[string][]provider.Quote, len(symbols))
	for _, q := range cached {
		bySymbol[q.Symbol] = append(bySymbol[q.Symbol], q)
	}
	for _, q := range fresh {
		bySymbol[q.Symbol] = append(bySymbol[q.Symbol], q)
	}
	out := make([]provider.Quote, 0, len(cached)+len(fresh))
	for _, s := range dedup(symbols) {
		out = append(out, bySymbol[s]...)
	}
	return out, nil
}

// lookup reads all symbols with one MGET. Undecodable values count as misses.
func (c *Provider) lookup(ctx context.Context, symbols []string) (cached []provider.Quote, missing []string) {
	symbols = dedup(symbols)
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = Key(s)
	}
	vals, err := c.Redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger().WithError(err).Warn("redis mget failed")
		for range symbols {
			c.observe(false)
		}
		return nil, symbols
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			c.observe(false)
			missing = append(missing, symbols[i])
			continue
		}
		var qs []provider.Quote
		if err := json.Unmarshal([]byte(s), &qs); err != nil || len(qs) == 0 {
			c.observe(false)
			missing = append(missing, symbols[i])
			continue
		}
		c.observe(true)
		cached = append(cached, qs...)
	}
	return cached, missing
}

// store writes quotes grouped by symbol and publishes each quote, in one
// transaction so subscribers never see a quote that is not yet readable.
func (c *Provider) store(ctx context.Context, quotes []provider.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	bySymbol := make(map[string][]provider.Quote)
	for _, q := range quotes {
		bySymbol[q.Symbol] = append(bySymbol[q.Symbol], q)
	}
	_, err := c.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for sym, qs := range bySymbol {
			payload, err := json.Marshal(qs)
			if err != nil {
				return err
			}
			pipe.Set(ctx, Key(sym), payload, c.TTL)
		}
		if c.Channel == "" {
			return nil
		}
		for _, q := range quotes {
			payload, err := json.Marshal(q)
			if err != nil {
				return err
			}
			pipe.Publish(ctx, c.Channel, payload)
		}
		return nil
	})
	return err
}

// Subscribe calls handle for every quote published on the channel.
// It blocks until ctx is done or the subscription is closed.
func (c *Provider) Subscribe(ctx context.Context, handle func(provider.Quote)) error {
	if c.Channel == "" {
		return errors.New("rediscache: no channel configured")
	}
	sub := c.Redis.Subscribe(ctx, c.Channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var q provider.Quote
			if err := json.Unmarshal([]byte(msg.Payload), &q); err != nil {
				c.logger().WithError(err).Debug("ignoring undecodable quote message")
				continue
			}
			handle(q)
		}
	}
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
