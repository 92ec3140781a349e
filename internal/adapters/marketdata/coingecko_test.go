package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsBody = `[
  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"https://img/btc.png","current_price":62341.23,
   "market_cap":1228642378901,"market_cap_rank":1,"total_volume":31000000000,"last_updated":"2025-01-02T10:00:00.000Z"},
  {"id":"dogecoin","symbol":"doge","name":"Dogecoin","current_price":0.132,"market_cap":19014937634,
   "market_cap_rank":9,"total_volume":null},
  {"id":"","symbol":"bad","name":"No id"},
  {"id":"newcoin","symbol":"new","name":"New Coin","current_price":null,"market_cap":null,"market_cap_rank":null}
]`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithRequestsPerMinute(6000))
}

func TestFetchMarkets(t *testing.T) {
	var gotQuery string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, marketsBody)
	})

	records, err := client.FetchMarkets(context.Background())
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "vs_currency=usd")
	assert.Contains(t, gotQuery, "order=market_cap_desc")
	assert.Contains(t, gotQuery, "per_page=100")
	assert.Contains(t, gotQuery, "sparkline=false")

	require.Len(t, records, 3, "records without an id are skipped")
	btc := records[0]
	assert.Equal(t, "bitcoin", btc.ID)
	assert.Equal(t, "btc", btc.Symbol)
	assert.Equal(t, 1, btc.MarketCapRank)
	assert.InDelta(t, 1228642378901, btc.MarketCap, 1)
	assert.InDelta(t, 3.1e10, btc.TotalVolume, 1)
	require.NotNil(t, btc.LastUpdated)
	assert.Equal(t, 2025, btc.LastUpdated.Year())

	assert.Zero(t, records[1].TotalVolume)
	assert.Zero(t, records[2].MarketCapRank, "null rank stays zero for the synthesizer to default")
	assert.Nil(t, records[2].LastUpdated)
}

func TestFetchMarketsWithDetails(t *testing.T) {
	var detailCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/coins/markets":
			fmt.Fprint(w, `[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","market_cap":1,"market_cap_rank":1},
			               {"id":"dogecoin","symbol":"doge","name":"Dogecoin","market_cap":1,"market_cap_rank":9}]`)
		case r.URL.Path == "/coins/bitcoin":
			detailCalls.Add(1)
			assert.Equal(t, "false", r.URL.Query().Get("tickers"))
			assert.Equal(t, "false", r.URL.Query().Get("market_data"))
			fmt.Fprint(w, `{"categories":["Smart Contract Platform","Layer 1 (L1)"],"genesis_date":"2009-01-03",
			               "description":{"en":"<b>Bitcoin</b> is the first."}}`)
		case strings.HasPrefix(r.URL.Path, "/coins/"):
			detailCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRequestsPerMinute(6000), WithDetails(true), WithDetailConcurrency(2))
	records, err := client.FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, int32(2), detailCalls.Load())
	assert.Equal(t, []string{"Smart Contract Platform", "Layer 1 (L1)"}, records[0].Categories)
	assert.Equal(t, "2009-01-03", records[0].GenesisDate)
	assert.Equal(t, "<b>Bitcoin</b> is the first.", records[0].Description)

	// failed detail keeps the base record
	assert.Equal(t, "dogecoin", records[1].ID)
	assert.Empty(t, records[1].Categories)
}

func TestFetchMarketsErrors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := client.FetchMarkets(context.Background())
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := client.FetchMarkets(context.Background())
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("malformed body", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"not":"a list"`)
		})
		_, err := client.FetchMarkets(context.Background())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[]`)
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.FetchMarkets(ctx)
		assert.Error(t, err)
	})
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < breakerConsecutiveTrip; i++ {
		_, err := client.FetchMarkets(context.Background())
		require.ErrorIs(t, err, ErrUpstream)
	}
	require.Equal(t, int32(breakerConsecutiveTrip), calls.Load())

	_, err := client.FetchMarkets(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(breakerConsecutiveTrip), calls.Load(), "open breaker must short-circuit")
}

func TestDecodeErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `garbage`)
	})

	for i := 0; i < breakerConsecutiveTrip+2; i++ {
		_, err := client.FetchMarkets(context.Background())
		require.ErrorIs(t, err, ErrDecode)
	}
	assert.Equal(t, int32(breakerConsecutiveTrip+2), calls.Load())
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < breakerConsecutiveTrip+2; i++ {
		_, err := client.FetchDetail(context.Background(), "ghost")
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestPing(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"gecko_says":"(V3) To the Moon!"}`)
	})
	assert.NoError(t, client.Ping(context.Background()))
}

func TestOptions(t *testing.T) {
	c := NewClient(WithPerPage(0), WithPerPage(500), WithRequestsPerMinute(-1), WithBaseURL("http://example.test/api/"))
	assert.Equal(t, defaultPerPage, c.perPage)
	assert.Equal(t, defaultRequestsPerMinute, c.rpm)
	assert.Equal(t, "http://example.test/api", c.baseURL)

	c = NewClient(WithPerPage(25))
	assert.Equal(t, 25, c.perPage)
}
