// Package ranking fetches the shopping-site item ranking and assembles it
// into validated snapshots.
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-rank-watch/config"
)

// Item is one raw entry from a ranking API page. The caption participates in
// feature-flag derivation but is not persisted.
type Item struct {
	Rank          int
	ItemCode      string
	Name          string
	Caption       string
	Price         int64
	ReviewAverage float64
	ReviewCount   int
}

type rankingResponse struct {
	Items []struct {
		Item apiItem `json:"Item"`
	} `json:"Items"`
}

type apiItem struct {
	Rank          int     `json:"rank"`
	ItemCode      string  `json:"itemCode"`
	ItemName      string  `json:"itemName"`
	ItemCaption   string  `json:"itemCaption"`
	ItemPrice     int64   `json:"itemPrice"`
	ReviewAverage float64 `json:"reviewAverage"`
	ReviewCount   int     `json:"reviewCount"`
}

type apiErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Client issues paced, retried GETs against the ranking endpoint.
type Client struct {
	http    *resty.Client
	cfg     *config.Config
	limiter *rate.Limiter
	metrics *Metrics

	requestCount int64
	retryCount   int64
}

// NewClient builds a ranking API client from cfg. Pages are paced through a
// rate limiter instead of sleeps so cancellation interrupts the wait.
func NewClient(cfg *config.Config, metrics *Metrics) *Client {
	c := &Client{
		cfg:     cfg,
		metrics: metrics,
		limiter: newLimiter(cfg.FetchInterval),
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryBackoff).
		SetRetryMaxWaitTime(cfg.RetryBackoffMax).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError ||
				r.StatusCode() == http.StatusTooManyRequests
		}).
		AddRetryHook(func(_ *resty.Response, _ error) {
			atomic.AddInt64(&c.retryCount, 1)
			metrics.AddRetries(1)
		})

	c.http = httpClient
	return c
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Transport swaps the underlying HTTP transport; tests install mocks here.
func (c *Client) Transport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// Requests returns the number of HTTP attempts issued so far, retries
// included.
func (c *Client) Requests() int {
	return int(atomic.LoadInt64(&c.requestCount))
}

// Retries returns the number of retry attempts issued so far.
func (c *Client) Retries() int {
	return int(atomic.LoadInt64(&c.retryCount))
}

// FetchPage retrieves one ranking page. The page is 1-based; the returned
// slice preserves the API's rank order and may be shorter than the requested
// page size on the final page.
func (c *Client) FetchPage(ctx context.Context, page int) ([]Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.metrics.IncRequest("started")
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"applicationId": c.cfg.AppID,
			"format":        "json",
			"genreId":       strconv.Itoa(c.cfg.GenreID),
			"page":          strconv.Itoa(page),
			"hits":          strconv.Itoa(c.cfg.PageSize),
		}).
		Get(c.cfg.BaseURL)

	c.metrics.ObserveDuration(time.Since(start))
	c.countAttempts(resp)

	if err != nil {
		classified := classifyError(err, 0)
		c.metrics.IncError(errorTypeLabel(classified))
		return nil, classified
	}
	if resp.StatusCode() != http.StatusOK {
		apiErr := apiError(resp)
		classified := classifyError(apiErr, resp.StatusCode())
		c.metrics.IncError(errorTypeLabel(classified))
		return nil, classified
	}

	var decoded rankingResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		c.metrics.IncError("decode")
		return nil, fmt.Errorf("decode ranking page %d: %w", page, err)
	}

	items := make([]Item, 0, len(decoded.Items))
	for _, wrapper := range decoded.Items {
		items = append(items, Item{
			Rank:          wrapper.Item.Rank,
			ItemCode:      wrapper.Item.ItemCode,
			Name:          wrapper.Item.ItemName,
			Caption:       wrapper.Item.ItemCaption,
			Price:         wrapper.Item.ItemPrice,
			ReviewAverage: wrapper.Item.ReviewAverage,
			ReviewCount:   wrapper.Item.ReviewCount,
		})
	}
	return items, nil
}

func (c *Client) countAttempts(resp *resty.Response) {
	attempts := 1
	if resp != nil && resp.Request != nil && resp.Request.Attempt > 0 {
		attempts = resp.Request.Attempt
	}
	atomic.AddInt64(&c.requestCount, int64(attempts))
}

func apiError(resp *resty.Response) APIError {
	var body apiErrorBody
	// Error bodies are best effort; status alone is enough to classify.
	_ = json.Unmarshal(resp.Body(), &body)
	return APIError{
		StatusCode:  resp.StatusCode(),
		Code:        body.Error,
		Description: body.ErrorDescription,
	}
}
