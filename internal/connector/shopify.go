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

const (
	shopifyDefaultAPIVersion = "2024-01"
	shopifyDefaultPageSize   = 250
)

// ShopifyConfig configures a Shopify admin API client.
type ShopifyConfig struct {
	// BaseURL is the shop origin, e.g. https://acme.myshopify.com.
	BaseURL     string
	AccessToken string
	APIVersion  string
	PageSize    int
	Timeout     time.Duration
}

func (c *ShopifyConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("shopify: base URL is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("shopify: access token is required")
	}
	return nil
}

// Shopify extracts records through the Shopify REST admin API, following
// the Link header for cursor pagination.
type Shopify struct {
	baseURL    string
	token      string
	apiVersion string
	pageSize   int
	client     *http.Client
}

func NewShopify(cfg ShopifyConfig) (*Shopify, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = shopifyDefaultAPIVersion
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = shopifyDefaultPageSize
	}
	return &Shopify{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		apiVersion: cfg.APIVersion,
		pageSize:   cfg.PageSize,
		client:     newHTTPClient(cfg.Timeout),
	}, nil
}

func (s *Shopify) Source() v1.SourceType { return v1.SourceShopify }

func (s *Shopify) TestConnection(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/admin/api/%s/shop.json", s.baseURL, s.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("shopify: failed to build request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", s.token)

	if _, _, err := doRequest(s.client, req); err != nil {
		return fmt.Errorf("shopify: %w", err)
	}
	return nil
}

func (s *Shopify) FetchCustomers(ctx context.Context, since *time.Time) ([]Raw, error) {
	return s.fetch(ctx, "customers", since, nil)
}

func (s *Shopify) FetchProducts(ctx context.Context, since *time.Time) ([]Raw, error) {
	return s.fetch(ctx, "products", since, nil)
}

func (s *Shopify) FetchOrders(ctx context.Context, since *time.Time) ([]Raw, error) {
	// Without status=any the API silently drops closed and cancelled orders.
	return s.fetch(ctx, "orders", since, url.Values{"status": {"any"}})
}

func (s *Shopify) fetch(ctx context.Context, resource string, since *time.Time, extra url.Values) ([]Raw, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(s.pageSize))
	if since != nil {
		query.Set("updated_at_min", since.UTC().Format(time.RFC3339))
	}
	for key, values := range extra {
		query[key] = values
	}

	next := fmt.Sprintf("%s/admin/api/%s/%s.json?%s", s.baseURL, s.apiVersion, resource, query.Encode())

	var records []Raw
	for next != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, fmt.Errorf("shopify: failed to build %s request: %w", resource, err)
		}
		req.Header.Set("X-Shopify-Access-Token", s.token)

		body, header, err := doRequest(s.client, req)
		if err != nil {
			return nil, fmt.Errorf("shopify: fetch %s: %w", resource, err)
		}

		var page map[string][]Raw
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("shopify: failed to parse %s response: %w", resource, err)
		}
		records = append(records, page[resource]...)

		next = shopifyNextPageURL(header)
	}

	return records, nil
}

var _ Connector = (*Shopify)(nil)

// shopifyNextPageURL extracts the rel="next" target from a Link header.
// Returns "" when the response is the last page.
func shopifyNextPageURL(header http.Header) string {
	for _, link := range strings.Split(header.Get("Link"), ",") {
		parts := strings.Split(link, ";")
		if len(parts) < 2 {
			continue
		}
		if !strings.Contains(parts[1], `rel="next"`) {
			continue
		}
		target := strings.TrimSpace(parts[0])
		return strings.Trim(target, "<>")
	}
	return ""
}
