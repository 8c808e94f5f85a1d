package rediscache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chonkprice/internal/provider"
	"chonkprice/internal/provider/cache"
	"chonkprice/internal/provider/providermock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func quote(sym string, price float64) provider.Quote {
	return provider.Quote{Symbol: sym, Price: price, Currency: "USD", Source: "CoinMarketCap", ReceivedAt: t0}
}

// newRedis starts an in-process Redis and a client for it.
func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "chonkprice:quote:CHONK9K", Key("chonk9k"))
}

func TestFetch_StoresThenServesFromRedis(t *testing.T) {
	t.Parallel()

	mr, rdb := newRedis(t)
	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	obs := providermock.NewMockCacheObserver(ctrl)

	q := quote("CHONK9K", 2.25)
	p.EXPECT().Fetch(gomock.Any(), []string{"CHONK9K"}).Return([]provider.Quote{q}, nil).Times(1)
	gomock.InOrder(
		obs.EXPECT().ObserveCache("redis", false),
		obs.EXPECT().ObserveCache("redis", true),
	)

	c := &Provider{P: p, Redis: rdb, TTL: time.Minute, Observer: obs}

	got, err := c.Fetch(t.Context(), []string{"CHONK9K"})
	require.NoError(t, err)
	require.Equal(t, []provider.Quote{q}, got)
	require.Equal(t, time.Minute, mr.TTL(Key("CHONK9K")))

	// second fetch is served from redis
	got, err = c.Fetch(t.Context(), []string{"CHONK9K"})
	require.NoError(t, err)
	require.Equal(t, []provider.Quote{q}, got)
}

func TestFetch_MixedHitAndMissKeepsRequestOrder(t *testing.T) {
	t.Parallel()

	mr, rdb := newRedis(t)
	cached, err := json.Marshal([]provider.Quote{quote("CHONK9K", 1)})
	require.NoError(t, err)
	require.NoError(t, mr.Set(Key("CHONK9K"), string(cached)))

	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().Fetch(gomock.Any(), []string{"BTC"}).Return([]provider.Quote{quote("BTC", 60000)}, nil)

	c := &Provider{P: p, Redis: rdb, TTL: time.Minute}
	got, err := c.Fetch(t.Context(), []string{"BTC", "CHONK9K"})
	require.NoError(t, err)
	require.Equal(t, []provider.Quote{quote("BTC", 60000), quote("CHONK9K", 1)}, got)
	require.True(t, mr.Exists(Key("BTC")))
}

func TestFetch_UndecodableValueIsMiss(t *testing.T) {
	t.Parallel()

	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set(Key("CHONK9K"), "not json"))

	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	obs := providermock.NewMockCacheObserver(ctrl)
	p.EXPECT().Fetch(gomock.Any(), []string{"CHONK9K"}).Return([]provider.Quote{quote("CHONK9K", 3)}, nil)
	obs.EXPECT().ObserveCache("redis", false)

	c := &Provider{P: p, Redis: rdb, TTL: time.Minute, Observer: obs}
	got, err := c.Fetch(t.Context(), []string{"CHONK9K"})
	require.NoError(t, err)
	require.Equal(t, []provider.Quote{quote("CHONK9K", 3)}, got)

	// the bad value was replaced
	stored, err := mr.Get(Key("CHONK9K"))
	require.NoError(t, err)
	var qs []provider.Quote
	require.NoError(t, json.Unmarshal([]byte(stored), &qs))
	require.Equal(t, []provider.Quote{quote("CHONK9K", 3)}, qs)
}

func TestFetch_UpstreamErrorServesRedisQuotes(t *testing.T) {
	t.Parallel()

	mr, rdb := newRedis(t)
	cached, err := json.Marshal([]provider.Quote{quote("CHONK9K", 1)})
	require.NoError(t, err)
	require.NoError(t, mr.Set(Key("CHONK9K"), string(cached)))

	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	p.EXPECT().Fetch(gomock.Any(), []string{"BTC"}).Return(nil, context.DeadlineExceeded)

	c := &Provider{P: p, Redis: rdb, TTL: time.Minute}
	got, err := c.Fetch(t.Context(), []string{"CHONK9K", "BTC"})
	require.NoError(t, err)
	require.Equal(t, []provider.Quote{quote("CHONK9K", 1)}, got)
}

func TestFetch_RedisDownPassesThrough(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	p := providermock.NewMockProvider(ctrl)
	obs := providermock.NewMockCacheObserver(ctrl)

	want := []provider.Quote{{Symbol: "CHONK9K", Price: 1.5, Currency: "USD", Source: "CoinMarketCap"}}
	p.EXPECT().Fetch(gomock.Any(), []string{"CHONK9K"}).Return(want, nil)
	obs.EXPECT().ObserveCache("redis", false)

	// nothing listens on this port; every command fails fast
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	c := &Provider{P: p, Redis: rdb, TTL: time.Minute, Channel: "prices", Observer: obs}
	got, err := c.Fetch(t.Context(), []string{"CHONK9K", "CHONK9K"})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSubscribe_FeedsMemoryCache(t *testing.T) {
	t.Parallel()

	_, rdb := newRedis(t)
	ctrl := gomock.NewController(t)
	upstream := providermock.NewMockProvider(ctrl)
	upstream.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)

	mem := &cache.Provider{P: upstream, TTL: time.Minute}
	c := &Provider{Redis: rdb, TTL: time.Minute, Channel: "prices"}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	got := make(chan provider.Quote, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, func(q provider.Quote) {
			mem.Put(q)
			got <- q
		})
	}()

	// the subscription may not be live yet; publish until it is
	q := quote("CHONK9K", 4.5)
	require.Eventually(t, func() bool {
		if err := c.store(ctx, []provider.Quote{q}); err != nil {
			return false
		}
		return len(got) > 0
	}, 3*time.Second, 50*time.Millisecond)
	require.Equal(t, q, <-got)

	// served by the memory cache without an upstream call
	qs, err := mem.Fetch(ctx, []string{"CHONK9K"})
	require.NoError(t, err)
	require.Equal(t, []provider.Quote{q}, qs)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestSubscribe_NoChannel(t *testing.T) {
	t.Parallel()

	c := &Provider{}
	require.Error(t, c.Subscribe(t.Context(), func(provider.Quote) {}))
}
