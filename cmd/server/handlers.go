package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chonkprice/internal/coinmarketcap"
	"chonkprice/internal/history"
	"chonkprice/internal/metrics"
	"chonkprice/internal/pricefetcher"
	"chonkprice/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const defaultLimit = 100

// cmcAPI is the part of the CoinMarketCap client the handlers call directly.
type cmcAPI interface {
	QuotesLatest(ctx context.Context, symbols []string, convert string, opts ...coinmarketcap.Option) (coinmarketcap.Quotes, error)
	ListingsLatest(ctx context.Context, limit int, convert string, opts ...coinmarketcap.Option) ([]coinmarketcap.Currency, error)
	ExchangeMap(ctx context.Context, limit int, opts ...coinmarketcap.Option) ([]coinmarketcap.Exchange, error)
	MarketPairsLatest(ctx context.Context, symbol string, limit int, opts ...coinmarketcap.Option) (coinmarketcap.MarketPairs, error)
}

type historyReader interface {
	Recent(ctx context.Context, symbol string, limit int) ([]provider.Quote, error)
}

type server struct {
	cmc           cmcAPI
	prices        provider.Provider
	history       historyReader // nil when Postgres is disabled
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
	defaultSymbol string
	convert       string
	timeout       time.Duration
}

type priceResponse struct {
	provider.Quote
	Display string `json:"display"`
}

type historyResponse struct {
	Symbol string           `json:"symbol"`
	Quotes []provider.Quote `json:"quotes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	s.handle(mux, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.handle(mux, "GET /api/price", s.handlePrice)
	s.handle(mux, "GET /api/crypto/listings", s.handleListings)
	s.handle(mux, "GET /api/crypto/search/{symbol}", s.handleSearch)
	s.handle(mux, "GET /api/crypto/exchanges", s.handleExchanges)
	s.handle(mux, "GET /api/crypto/market-pairs/{symbol}", s.handleMarketPairs)
	s.handle(mux, "GET /api/crypto/history/{symbol}", s.handleHistory)
	return mux
}

// handler wraps the API routes in the middleware stack. /metrics is mounted
// outside withGzip since promhttp negotiates compression on its own.
func (s *server) handler(reg *prometheus.Registry) http.Handler {
	root := http.NewServeMux()
	root.Handle("/", withGzip(recoverPanic(s.log, limitBody(s.routes()))))
	root.Handle("GET /metrics", recoverPanic(s.log, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	return withJSONHeaders(root)
}

func (s *server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	if s.metrics != nil {
		route := pattern
		if _, path, ok := strings.Cut(pattern, " "); ok {
			route = path
		}
		handler = s.metrics.Handler(route, handler)
	}
	mux.Handle(pattern, handler)
}

func (s *server) context(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		symbol = s.defaultSymbol
	}
	ctx, cancel := s.context(r)
	defer cancel()

	qs, err := s.prices.Fetch(ctx, []string{symbol})
	if err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("price fetch failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: pricefetcher.ErrorMessage})
		return
	}
	q, ok := provider.Find(qs, symbol)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no quote for " + symbol})
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Quote: q, Display: pricefetcher.FormatPrice(q.Symbol, q.Price)})
}

// The /api/crypto routes pass CoinMarketCap's {status, data} body through,
// so clients read data.<SYMBOL> as they would from the upstream API.

func (s *server) handleListings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()

	var status coinmarketcap.Status
	listings, err := s.cmc.ListingsLatest(ctx, queryInt(r, "limit", defaultLimit), s.queryConvert(r), coinmarketcap.WithStatus(&status))
	if err != nil {
		s.fail(w, err, "Failed to fetch crypto listings")
		return
	}
	writeJSON(w, http.StatusOK, coinmarketcap.Response[[]coinmarketcap.Currency]{Status: status, Data: listings})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	ctx, cancel := s.context(r)
	defer cancel()

	var status coinmarketcap.Status
	quotes, err := s.cmc.QuotesLatest(ctx, []string{symbol}, s.queryConvert(r), coinmarketcap.WithStatus(&status))
	if err != nil {
		s.fail(w, err, "Failed to search for cryptocurrency")
		return
	}
	writeJSON(w, http.StatusOK, coinmarketcap.Response[coinmarketcap.Quotes]{Status: status, Data: quotes})
}

func (s *server) handleExchanges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()

	var status coinmarketcap.Status
	exchanges, err := s.cmc.ExchangeMap(ctx, queryInt(r, "limit", defaultLimit), coinmarketcap.WithStatus(&status))
	if err != nil {
		s.fail(w, err, "Failed to fetch exchanges")
		return
	}
	writeJSON(w, http.StatusOK, coinmarketcap.Response[[]coinmarketcap.Exchange]{Status: status, Data: exchanges})
}

func (s *server) handleMarketPairs(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	ctx, cancel := s.context(r)
	defer cancel()

	var status coinmarketcap.Status
	pairs, err := s.cmc.MarketPairsLatest(ctx, symbol, queryInt(r, "limit", defaultLimit), coinmarketcap.WithStatus(&status))
	if err != nil {
		s.fail(w, err, "Failed to fetch market pairs")
		return
	}
	writeJSON(w, http.StatusOK, coinmarketcap.Response[coinmarketcap.MarketPairs]{Status: status, Data: pairs})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "price history is disabled"})
		return
	}
	symbol := strings.ToUpper(r.PathValue("symbol"))
	ctx, cancel := s.context(r)
	defer cancel()

	quotes, err := s.history.Recent(ctx, symbol, queryInt(r, "limit", history.DefaultLimit))
	if err != nil {
		s.fail(w, err, "Failed to fetch price history")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Symbol: symbol, Quotes: quotes})
}

func (s *server) queryConvert(r *http.Request) string {
	if c := strings.TrimSpace(r.URL.Query().Get("convert")); c != "" {
		return strings.ToUpper(c)
	}
	return s.convert
}

func (s *server) fail(w http.ResponseWriter, err error, msg string) {
	s.log.WithError(err).Error(msg)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
}

// queryInt returns the positive integer in query key, or def.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
