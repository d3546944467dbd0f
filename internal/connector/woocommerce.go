package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
)

const wooDefaultPageSize = 100

// WooCommerceConfig configures a WooCommerce REST API v3 client.
type WooCommerceConfig struct {
	// BaseURL is the store origin, e.g. https://shop.example.com.
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	PageSize       int
	Timeout        time.Duration
}

func (c *WooCommerceConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("woocommerce: base URL is required")
	}
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return fmt.Errorf("woocommerce: consumer key and secret are required")
	}
	return nil
}

// WooCommerce extracts records through /wp-json/wc/v3, paginating with the
// page query parameter until a short page comes back.
type WooCommerce struct {
	baseURL  string
	key      string
	secret   string
	pageSize int
	client   *http.Client
}

func NewWooCommerce(cfg WooCommerceConfig) (*WooCommerce, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = wooDefaultPageSize
	}
	return &WooCommerce{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		key:      cfg.ConsumerKey,
		secret:   cfg.ConsumerSecret,
		pageSize: cfg.PageSize,
		client:   newHTTPClient(cfg.Timeout),
	}, nil
}

var _ Connector = (*WooCommerce)(nil)

func (w *WooCommerce) Source() v1.SourceType { return v1.SourceWooCommerce }

func (w *WooCommerce) TestConnection(ctx context.Context) error {
	if _, err := w.fetchPage(ctx, "products", url.Values{"per_page": {"1"}, "page": {"1"}}); err != nil {
		return fmt.Errorf("woocommerce: %w", err)
	}
	return nil
}

func (w *WooCommerce) FetchCustomers(ctx context.Context, since *time.Time) ([]Raw, error) {
	return w.fetchAll(ctx, "customers", since)
}

func (w *WooCommerce) FetchProducts(ctx context.Context, since *time.Time) ([]Raw, error) {
	return w.fetchAll(ctx, "products", since)
}

func (w *WooCommerce) FetchOrders(ctx context.Context, since *time.Time) ([]Raw, error) {
	return w.fetchAll(ctx, "orders", since)
}

func (w *WooCommerce) fetchAll(ctx context.Context, resource string, since *time.Time) ([]Raw, error) {
	var records []Raw
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(w.pageSize))
		query.Set("page", strconv.Itoa(page))
		if since != nil {
			query.Set("modified_after", since.UTC().Format("2006-01-02T15:04:05"))
		}

		batch, err := w.fetchPage(ctx, resource, query)
		if err != nil {
			return nil, fmt.Errorf("woocommerce: fetch %s page %d: %w", resource, page, err)
		}
		records = append(records, batch...)

		if len(batch) < w.pageSize {
			return records, nil
		}
	}
}

func (w *WooCommerce) fetchPage(ctx context.Context, resource string, query url.Values) ([]Raw, error) {
	query.Set("consumer_key", w.key)
	query.Set("consumer_secret", w.secret)

	endpoint := fmt.Sprintf("%s/wp-json/wc/v3/%s?%s", w.baseURL, resource, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", resource, err)
	}

	body, _, err := doRequest(w.client, req)
	if err != nil {
		return nil, err
	}

	var batch []Raw
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", resource, err)
	}
	return batch, nil
}
