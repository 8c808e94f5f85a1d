package coinmarketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
)

const (
	// DefaultBaseURL is the CoinMarketCap Pro API host.
	DefaultBaseURL = "https://pro-api.coinmarketcap.com"
	// APIKeyHeader is the header CoinMarketCap authenticates requests with.
	APIKeyHeader = "X-CMC_PRO_API_KEY"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coinmarketcap_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the CoinMarketCap API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
	// status receives the status block of a successful response.
	status *Status
}

// Option is a configuration option for the CoinMarketCap API client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithQuery sets additional query parameters to be sent with each request.
func WithQuery(query url.Values) Option {
	return func(c *Client) {
		for key, values := range query {
			for _, value := range values {
				c.query.Add(key, value)
			}
		}
	}
}

// WithStatus stores the status block of a successful response in dst.
// It is meant as a per-call option.
func WithStatus(dst *Status) Option {
	return func(c *Client) {
		c.status = dst
	}
}

// NewClient creates a new CoinMarketCap API client. The key is sent in the
// X-CMC_PRO_API_KEY header on every request.
func NewClient(key string, options ...Option) (*Client, error) {
	var client = &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	if key != "" {
		client.header.Set(APIKeyHeader, key)
	}
	for _, option := range options {
		option(client)
	}
	if client.httpClient == nil {
		return nil, fmt.Errorf("nil http client")
	}
	return client, nil
}

// override returns a shallow copy of c with per-call options applied.
func (c *Client) override(opts []Option) *Client {
	var o = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      cloneValues(c.query),
		status:     c.status,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, values := range v {
		out[key] = slices.Clone(values)
	}
	return out
}

// Response is the outer shape of every CoinMarketCap response.
type Response[T any] struct {
	Status Status `json:"status"`
	Data   T      `json:"data"`
}

// Status is the status block attached to every CoinMarketCap response.
type Status struct {
	Timestamp    string  `json:"timestamp"`
	ErrorCode    int     `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
	Elapsed      int     `json:"elapsed"`
	CreditCount  int     `json:"credit_count"`
}

// get performs a GET against path and decodes the data block of the response.
// Only HTTP 200 is treated as success; anything else yields a *StatusError.
func get[T any](ctx context.Context, c *Client, path string, query url.Values, opts []Option) (T, error) {
	var zero T
	o := c.override(opts)

	q := cloneValues(o.query)
	for key, values := range query {
		for _, value := range values {
			q.Add(key, value)
		}
	}

	u := o.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return zero, fmt.Errorf("creating request: %w", err)
	}
	req.Header = o.header.Clone()
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	res, err := o.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return zero, newStatusError(res)
	}

	var body Response[T]
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return zero, fmt.Errorf("decoding %s response: %w", path, err)
	}
	if o.status != nil {
		*o.status = body.Status
	}
	return body.Data, nil
}
