// Package marketdata fetches ranked coin records from the CoinGecko API.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/cryptoheroes/internal/domain/model"
	"github.com/okian/cryptoheroes/pkg/logger"
	"github.com/okian/cryptoheroes/pkg/metrics"
)

// DefaultBaseURL is the public CoinGecko v3 API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

const (
	defaultPerPage           = 100
	maxPerPage               = 250
	defaultRequestsPerMinute = 30
	defaultTimeout           = 10 * time.Second
	defaultDetailConcurrency = 4
	maxBodyBytes             = 8 << 20

	breakerInterval        = 60 * time.Second
	breakerTimeout         = 60 * time.Second
	breakerConsecutiveTrip = 3
)

// Client talks to CoinGecko. Every request passes the rate limiter and the
// circuit breaker.
type Client struct {
	baseURL           string
	http              *http.Client
	timeout           time.Duration
	perPage           int
	rpm               int
	fetchDetails      bool
	detailConcurrency int
	limiter           *rate.Limiter
	breaker           *gobreaker.CircuitBreaker
	log               logger.Logger
}

// NewClient creates a CoinGecko client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:           DefaultBaseURL,
		timeout:           defaultTimeout,
		perPage:           defaultPerPage,
		rpm:               defaultRequestsPerMinute,
		detailConcurrency: defaultDetailConcurrency,
		log:               logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}

	burst := c.rpm / 10
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.rpm)), burst)

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "coingecko",
		Interval: breakerInterval,
		Timeout:  breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveTrip
		},
		// decode failures and unknown coins do not count against the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrDecode) || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	return c
}

type marketItem struct {
	ID            string   `json:"id"`
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Image         string   `json:"image"`
	CurrentPrice  *float64 `json:"current_price"`
	MarketCap     *float64 `json:"market_cap"`
	MarketCapRank *int     `json:"market_cap_rank"`
	TotalVolume   *float64 `json:"total_volume"`
	LastUpdated   string   `json:"last_updated"`
}

// CoinDetail is the subset of /coins/{id} the roster uses.
type CoinDetail struct {
	Categories  []string `json:"categories"`
	GenesisDate *string  `json:"genesis_date"`
	Description struct {
		EN string `json:"en"`
	} `json:"description"`
}

// FetchMarkets returns the top coins by market cap. Detail lookups are
// best-effort: a failed lookup keeps the base record.
func (c *Client) FetchMarkets(ctx context.Context) ([]model.MarketRecord, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var items []marketItem
	if err := c.getJSON(ctx, "markets", "/coins/markets?"+q.Encode(), &items); err != nil {
		return nil, err
	}

	records := make([]model.MarketRecord, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		records = append(records, it.toRecord())
	}

	if c.fetchDetails && len(records) > 0 {
		c.enrich(ctx, records)
	}
	return records, nil
}

func (c *Client) enrich(ctx context.Context, records []model.MarketRecord) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.detailConcurrency)
	for i := range records {
		g.Go(func() error {
			d, err := c.FetchDetail(gctx, records[i].ID)
			if err != nil {
				c.log.Debug(gctx, "coin detail unavailable",
					logger.String("coin", records[i].ID), logger.Error(err))
				return nil
			}
			records[i].Categories = d.Categories
			if d.GenesisDate != nil {
				records[i].GenesisDate = *d.GenesisDate
			}
			records[i].Description = d.Description.EN
			return nil
		})
	}
	_ = g.Wait()
}

// FetchDetail looks up categories, genesis date and description for one coin.
func (c *Client) FetchDetail(ctx context.Context, id string) (CoinDetail, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("market_data", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")

	var d CoinDetail
	err := c.getJSON(ctx, "coin", "/coins/"+url.PathEscape(id)+"?"+q.Encode(), &d)
	return d, err
}

// Ping checks that the API answers.
func (c *Client) Ping(ctx context.Context) error {
	var out map[string]any
	return c.getJSON(ctx, "ping", "/ping", &out)
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out any) error {
	// an open breaker rejects without spending a rate-limit token
	if c.breaker.State() == gobreaker.StateOpen {
		metrics.RecordMarketDataRequest(endpoint, "breaker_open", 0)
		return fmt.Errorf("%w: %s: %w", ErrUpstream, endpoint, gobreaker.ErrOpenState)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRateLimited, endpoint, err)
	}

	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordMarketDataRequest(endpoint, status, float64(time.Since(start).Milliseconds()))
	}()

	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, endpoint, err)
		}
		defer resp.Body.Close()
		status = strconv.Itoa(resp.StatusCode)

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, endpoint)
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, fmt.Errorf("%w: %s: status %d", ErrUpstream, endpoint, resp.StatusCode)
		}

		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, endpoint, err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		status = "breaker_open"
		return fmt.Errorf("%w: %s: %w", ErrUpstream, endpoint, err)
	}
	return err
}

func (it marketItem) toRecord() model.MarketRecord {
	rec := model.MarketRecord{
		ID:     it.ID,
		Symbol: it.Symbol,
		Name:   it.Name,
		Image:  it.Image,
	}
	if it.CurrentPrice != nil {
		rec.CurrentPrice = *it.CurrentPrice
	}
	if it.MarketCap != nil {
		rec.MarketCap = *it.MarketCap
	}
	if it.TotalVolume != nil {
		rec.TotalVolume = *it.TotalVolume
	}
	if it.MarketCapRank != nil {
		rec.MarketCapRank = *it.MarketCapRank
	}
	if t, err := time.Parse(time.RFC3339, it.LastUpdated); err == nil {
		rec.LastUpdated = &t
	}
	return rec
}
