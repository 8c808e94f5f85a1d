package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chonkprice/internal/coinmarketcap"
	"chonkprice/internal/config"
	"chonkprice/internal/history"
	"chonkprice/internal/httpx"
	"chonkprice/internal/logging"
	"chonkprice/internal/metrics"
	"chonkprice/internal/provider"
	"chonkprice/internal/provider/cache"
	"chonkprice/internal/provider/cmcadapter"
	"chonkprice/internal/provider/ratelimit"
	"chonkprice/internal/provider/rediscache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	if cfg.CoinMarketCap.APIKey == "" || cfg.CoinMarketCap.APIKey == config.Default().CoinMarketCap.APIKey {
		log.Warn("COINMARKETCAP_API_KEY not set; requests will use the placeholder key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	upstreamTimeout := 10 * time.Second
	if cfg.CoinMarketCap.TimeoutSec > 0 {
		upstreamTimeout = time.Duration(cfg.CoinMarketCap.TimeoutSec) * time.Second
	}
	httpClient := httpx.New(upstreamTimeout)
	cmc, err := coinmarketcap.NewClient(
		cfg.CoinMarketCap.APIKey,
		coinmarketcap.WithBaseURL(cfg.CoinMarketCap.BaseURL),
		coinmarketcap.WithHTTPClient(m.Client(httpClient)),
	)
	if err != nil {
		log.WithError(err).Fatal("coinmarketcap client")
	}

	var (
		store *history.Store
		hist  historyReader
	)
	if cfg.Postgres.Enabled {
		pool, err := history.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.WithError(err).Fatal("postgres")
		}
		defer pool.Close()
		store = history.NewStore(pool, log.WithField("component", "history"))
		if err := store.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("postgres schema")
		}
		hist = store
	}

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; shared cache degrades to pass-through")
		}
	}

	prices, mem, shared := priceChain(cfg, cmc, m, log, store, rdb)
	if shared != nil && shared.Channel != "" {
		go func() {
			if err := shared.Subscribe(ctx, mem.Put); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("quote subscription ended")
			}
		}()
	}

	s := &server{
		cmc:           cmc,
		prices:        prices,
		history:       hist,
		metrics:       m,
		log:           log,
		defaultSymbol: cfg.CoinMarketCap.Symbol,
		convert:       cfg.CoinMarketCap.Convert,
		timeout:       time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// priceChain builds the provider behind /api/price:
// adapter, rate limit, history recorder, Redis cache, memory cache.
// store and rdb may be nil. The memory cache and the Redis layer are
// returned so the caller can feed Pub/Sub updates into the former.
func priceChain(cfg config.Config, client cmcadapter.QuoteClient, m *metrics.Metrics, log logrus.FieldLogger, store *history.Store, rdb redis.UniversalClient) (provider.Provider, *cache.Provider, *rediscache.Provider) {
	cmc := cfg.CoinMarketCap

	var p provider.Provider = cmcadapter.New(cmcadapter.Config{Currency: cmc.Convert}, client)
	p = ratelimit.Wrap(p, cmc.MaxRequestsPerMinute, cmc.Burst, time.Duration(cmc.MinRequestIntervalSec)*time.Second)
	if store != nil {
		p = &history.Recorder{P: p, Store: store}
	}

	var observer provider.CacheObserver
	if m != nil {
		observer = m
	}

	var shared *rediscache.Provider
	if rdb != nil {
		shared = &rediscache.Provider{
			P:        p,
			Redis:    rdb,
			TTL:      time.Duration(cfg.Redis.TTLSeconds) * time.Second,
			Channel:  cfg.Redis.Channel,
			Observer: observer,
			Log:      log.WithField("component", "rediscache"),
		}
		p = shared
	}

	mem := &cache.Provider{
		P:        p,
		TTL:      time.Duration(cmc.CacheTTLSeconds) * time.Second,
		MaxItems: cmc.CacheMaxItems,
		Observer: observer,
	}
	return mem, mem, shared
}
