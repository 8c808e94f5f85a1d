package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Doer is satisfied by *http.Client, *httpx.Client and coinmarketcap.HTTPClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chonkprice",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to CoinMarketCap by endpoint path and status code",
		}, []string{"endpoint", "code"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chonkprice",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of CoinMarketCap requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chonkprice",
			Name:      "cache_lookups_total",
			Help:      "Quote cache lookups by layer and result",
		}, []string{"layer", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chonkprice",
			Name:      "http_requests_total",
			Help:      "Requests served by route, method and status code",
		}, []string{"route", "code", "method"}),
	}
	reg.MustRegister(m.upstreamRequests, m.upstreamDuration, m.cacheLookups, m.httpRequests)
	return m
}

// Client wraps next so every request is counted and timed.
func (m *Metrics) Client(next Doer) Doer {
	return &instrumentedClient{next: next, m: m}
}

type instrumentedClient struct {
	next Doer
	m    *Metrics
}

func (c *instrumentedClient) Do(req *http.Request) (*http.Response, error) {
	endpoint := req.URL.Path
	start := time.Now()
	res, err := c.next.Do(req)
	c.m.upstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	code := "error"
	if err == nil {
		code = strconv.Itoa(res.StatusCode)
	}
	c.m.upstreamRequests.WithLabelValues(endpoint, code).Inc()
	return res, err
}

// ObserveCache records one cache lookup.
func (m *Metrics) ObserveCache(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(layer, result).Inc()
}

// Handler counts requests served by next under the route label.
func (m *Metrics) Handler(route string, next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.httpRequests.MustCurryWith(prometheus.Labels{"route": route}), next)
}
