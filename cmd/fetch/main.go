package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"chonkprice/internal/coinmarketcap"
	"chonkprice/internal/config"
	"chonkprice/internal/httpx"
	"chonkprice/internal/logging"
	"chonkprice/internal/pricefetcher"
	"github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}

	if err := run(context.Background(), cfg, log, os.Stdout); err != nil {
		log.WithError(err).Fatal("fetch price")
	}
}

// run prints exactly one line to out: the price line, or the fixed error
// message when CoinMarketCap answers with a non-200 status.
func run(ctx context.Context, cfg config.Config, log logrus.FieldLogger, out io.Writer) error {
	f, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	log.WithField("symbol", f.Symbol()).Debug("requesting latest quote")

	line, err := f.FetchPrice(ctx)
	if err != nil {
		return err
	}
	if line == pricefetcher.ErrorMessage {
		log.WithField("symbol", f.Symbol()).Warn("coinmarketcap returned a non-200 status")
	}
	_, err = fmt.Fprintln(out, line)
	return err
}

func newFetcher(cfg config.Config) (*pricefetcher.Fetcher, error) {
	cmc := cfg.CoinMarketCap

	// No timeout unless one is configured.
	var hc coinmarketcap.HTTPClient = http.DefaultClient
	if cmc.TimeoutSec > 0 {
		hc = httpx.New(time.Duration(cmc.TimeoutSec) * time.Second)
	}

	opts := []coinmarketcap.Option{coinmarketcap.WithHTTPClient(hc)}
	if cmc.BaseURL != "" {
		opts = append(opts, coinmarketcap.WithBaseURL(cmc.BaseURL))
	}
	key := cmc.APIKey
	if key == "" {
		key = pricefetcher.DefaultAPIKey
	}
	client, err := coinmarketcap.NewClient(key, opts...)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap client: %w", err)
	}
	return pricefetcher.New(client, cmc.Symbol), nil
}
