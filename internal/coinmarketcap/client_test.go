package coinmarketcap_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"chonkprice/internal/coinmarketcap"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// jsonResponse builds a response whose body is v encoded as JSON.
func jsonResponse(t *testing.T, status int, v any) *http.Response {
	t.Helper()
	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(v))
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(buffer),
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	// Assert: a valid key should return a client.
	client, err := coinmarketcap.NewClient("test")
	require.NoErrorf(t, err, "unexpected error: %v", err)
	require.NotNilf(t, client, "unexpected nil client")
}

func TestNewClient_NilHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := coinmarketcap.NewClient("test", coinmarketcap.WithHTTPClient(nil))
	require.Error(t, err)
	require.Nil(t, client)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: the custom client is the one performing the request
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusOK, map[string]any{"data": map[string]any{}}), nil
		}).
		Times(1)

	client, err := coinmarketcap.NewClient("test", coinmarketcap.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: call QuotesLatest with the custom HTTP client.
	_, err = client.QuotesLatest(t.Context(), []string{"CHONK9K"}, "")
	require.NoError(t, err)
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Arrange: define a base url
	baseURL := "http://localhost:8080"

	// Assert: the request goes to the overridden host
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return jsonResponse(t, http.StatusOK, map[string]any{"data": []any{}}), nil
		}).
		Times(1)

	client, err := coinmarketcap.NewClient("test", coinmarketcap.WithHTTPClient(httpClient), coinmarketcap.WithBaseURL(baseURL))
	require.NoError(t, err)

	// Act: call ExchangeMap with the overridden base URL.
	_, err = client.ExchangeMap(t.Context(), 10)
	require.NoError(t, err)
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: both the custom header and the key header are sent
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			require.Equal(t, "test", req.Header.Get(coinmarketcap.APIKeyHeader))
			require.Equal(t, "application/json", req.Header.Get("Accept"))
			return jsonResponse(t, http.StatusOK, map[string]any{"data": []any{}}), nil
		}).
		Times(1)

	client, err := coinmarketcap.NewClient("test", coinmarketcap.WithHTTPClient(httpClient), coinmarketcap.WithHeader(http.Header{
		"foo": []string{"bar"},
	}))
	require.NoError(t, err)

	_, err = client.ListingsLatest(t.Context(), 1, "USD")
	require.NoError(t, err)
}

func TestWithQuery_PerCallDoesNotLeak(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	var seen []url.Values
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			seen = append(seen, req.URL.Query())
			return jsonResponse(t, http.StatusOK, map[string]any{"data": []any{}}), nil
		}).
		Times(2)

	client, err := coinmarketcap.NewClient("test", coinmarketcap.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: one call with a per-call query option, one without.
	_, err = client.ExchangeMap(t.Context(), 5, coinmarketcap.WithQuery(url.Values{"aux": []string{"status"}}))
	require.NoError(t, err)
	_, err = client.ExchangeMap(t.Context(), 5)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	require.Equal(t, "status", seen[0].Get("aux"))
	require.Empty(t, seen[1].Get("aux"))
	require.Equal(t, "active", seen[1].Get("listing_status"))
	require.Equal(t, "5", seen[1].Get("limit"))
}

func TestNewClient_NoKeyNoHeader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			_, ok := req.Header[http.CanonicalHeaderKey(coinmarketcap.APIKeyHeader)]
			require.False(t, ok)
			return jsonResponse(t, http.StatusOK, map[string]any{"data": []any{}}), nil
		}).
		Times(1)

	client, err := coinmarketcap.NewClient("", coinmarketcap.WithHTTPClient(httpClient))
	require.NoError(t, err)

	_, err = client.ExchangeMap(t.Context(), 0)
	require.NoError(t, err)
}

func TestWithStatus(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusOK, mockQuotesResponse), nil
		}).
		Times(2)

	client, err := coinmarketcap.NewClient("test", coinmarketcap.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act: the status block is captured only for the call that asks for it.
	var status coinmarketcap.Status
	quotes, err := client.QuotesLatest(t.Context(), []string{"CHONK9K"}, "", coinmarketcap.WithStatus(&status))
	require.NoError(t, err)
	require.Contains(t, quotes, "CHONK9K")
	require.Equal(t, 1, status.CreditCount)
	require.Nil(t, status.ErrorMessage)

	status = coinmarketcap.Status{}
	_, err = client.QuotesLatest(t.Context(), []string{"CHONK9K"}, "")
	require.NoError(t, err)
	require.Zero(t, status.CreditCount)
}
