// Package shipstation is a ShipStation V1 REST client bound to one account.
package shipstation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/telemetry"
)

const (
	// DefaultBaseURL is the production V1 endpoint
	DefaultBaseURL = "https://ssapi.shipstation.com"

	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024

	findOrderPageSize = 10
	maxPageSize       = 500
)

// AccountContext is the credential and identity of one ShipStation account
type AccountContext struct {
	Account   integration.Account
	APIKey    string
	APISecret string
	BaseURL   string
	// StoreID scopes new orders and shipment polls when set
	StoreID *int
}

// Options tunes retries, timeouts and client-side throttling
type Options struct {
	RetryAttempts int
	RetryDelay    time.Duration
	Timeout       time.Duration
	// RequestsPerMinute throttles requests before they are sent; 0 disables throttling
	RequestsPerMinute int
	// PageSize is the shipments page size
	PageSize   int
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// Client implements integration.OrderGateway for one account
type Client struct {
	acct       AccountContext
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   int
	retryDelay time.Duration
	pageSize   int
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

var _ integration.OrderGateway = (*Client)(nil)

// NewClient creates a client for the given account context
func NewClient(acct AccountContext, opts Options) (*Client, error) {
	if acct.APIKey == "" || acct.APISecret == "" {
		return nil, fmt.Errorf("%w: %s", integration.ErrAccountNotConfigured, acct.Account.Label())
	}
	baseURL := strings.TrimRight(acct.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60), opts.RequestsPerMinute)
	}

	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		acct:       acct,
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    limiter,
		attempts:   attempts,
		retryDelay: opts.RetryDelay,
		pageSize:   pageSize,
		logger:     logger.With(zap.String("account", acct.Account.Label())),
		sleep:      sleepContext,
	}, nil
}

// Account returns the account this client is bound to
func (c *Client) Account() integration.Account {
	return c.acct.Account
}

// StoreID returns the configured store, or nil
func (c *Client) StoreID() *int {
	return c.acct.StoreID
}

// CreateOrUpdateOrder posts to /orders/createorder, which upserts by orderKey
func (c *Client) CreateOrUpdateOrder(ctx context.Context, payload *integration.OrderPayload) (*integration.RemoteOrder, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/createorder", nil, payload, &resp); err != nil {
		return nil, err
	}
	return resp.toRemote(), nil
}

// FindOrderByNumber returns the order whose number equals orderNumber exactly, or nil.
// The API matches by prefix, so results are filtered locally.
func (c *Client) FindOrderByNumber(ctx context.Context, orderNumber string) (*integration.RemoteOrder, error) {
	query := url.Values{}
	query.Set("orderNumber", orderNumber)
	query.Set("pageSize", strconv.Itoa(findOrderPageSize))

	var resp orderListResponse
	if err := c.do(ctx, http.MethodGet, "/orders", query, nil, &resp); err != nil {
		return nil, err
	}
	for _, o := range resp.Orders {
		if o.OrderNumber == orderNumber {
			return o.toRemote(), nil
		}
	}
	return nil, nil
}

// ListShipmentsSince pages through shipments created on or after the date of since
func (c *Client) ListShipmentsSince(ctx context.Context, since time.Time) ([]integration.ShipmentEvent, error) {
	var events []integration.ShipmentEvent
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("createDateStart", since.Format(integration.PollDateLayout))
		query.Set("page", strconv.Itoa(page))
		query.Set("pageSize", strconv.Itoa(c.pageSize))
		if c.acct.StoreID != nil {
			query.Set("storeId", strconv.Itoa(*c.acct.StoreID))
		}

		var resp shipmentListResponse
		if err := c.do(ctx, http.MethodGet, "/shipments", query, nil, &resp); err != nil {
			return nil, fmt.Errorf("list shipments page %d: %w", page, err)
		}
		for _, s := range resp.Shipments {
			events = append(events, c.toEvent(s))
		}

		pages := resp.Pages
		if pages < 1 {
			pages = 1
		}
		c.logger.Info("Fetched shipments page",
			zap.Int("page", page),
			zap.Int("pages", pages),
			zap.Int("shipments", len(resp.Shipments)),
		)
		if page >= pages {
			return events, nil
		}
	}
}

// ListStores returns the account's stores
func (c *Client) ListStores(ctx context.Context) ([]integration.Store, error) {
	var resp []storeResponse
	if err := c.do(ctx, http.MethodGet, "/stores", nil, nil, &resp); err != nil {
		return nil, err
	}
	stores := make([]integration.Store, 0, len(resp))
	for _, s := range resp {
		stores = append(stores, integration.Store{
			StoreID:         s.StoreID,
			StoreName:       s.StoreName,
			MarketplaceName: s.MarketplaceName,
			Active:          s.Active,
		})
	}
	return stores, nil
}

func (c *Client) toEvent(s shipmentResponse) integration.ShipmentEvent {
	return integration.ShipmentEvent{
		EventID:        strconv.FormatInt(s.ShipmentID, 10),
		Account:        c.acct.Account,
		OrderNumber:    s.OrderNumber,
		TrackingNumber: s.TrackingNumber,
		CarrierCode:    s.CarrierCode,
		ServiceCode:    s.ServiceCode,
		ShipDate:       s.ShipDate,
		CreateDate:     s.CreateDate,
		Voided:         s.Voided,
		Weight:         s.Weight,
		Dimensions:     s.Dimensions,
	}
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// do sends one logical request, retrying transient failures.
// Rate-limited responses wait for Retry-After when the server sends one.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: marshal request: %v", integration.ErrPermanent, err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		wait, err := c.attempt(ctx, method, path, query, payload, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !integration.IsTransient(err) {
			c.logger.Error("ShipStation request rejected",
				zap.String("method", method),
				zap.String("path", path),
				zap.Error(err),
			)
			return err
		}
		lastErr = err
		if attempt == c.attempts {
			break
		}
		if wait <= 0 {
			wait = c.retryDelay
		}
		throttled := IsRateLimited(err)
		telemetry.AddEvent(trace.SpanFromContext(ctx), "shipstation.retry",
			"path", path,
			"attempt", attempt,
			"rate_limited", throttled,
			"wait", wait,
		)
		c.logger.Warn("ShipStation request failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.attempts),
			zap.Bool("rate_limited", throttled),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", c.attempts, lastErr)
}

// attempt performs a single HTTP exchange. The returned duration is the
// server's Retry-After on a 429, zero otherwise.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, payload []byte, out any) (time.Duration, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %v", integration.ErrPermanent, err)
	}
	req.SetBasicAuth(c.acct.APIKey, c.acct.APISecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", integration.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %v", integration.ErrTransient, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := newAPIError(c.acct.Account, method, path, resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			return retryAfter(resp.Header.Get("Retry-After")), apiErr
		}
		return 0, apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return 0, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return 0, fmt.Errorf("%w: decode %s response: %v", integration.ErrPermanent, path, err)
	}
	return 0, nil
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date
func retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRateLimited reports whether err is a 429 response
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
