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
	commercetoolsDefaultPageSize = 200

	// commercetoolsTimeFormat is the millisecond-precision timestamp format
	// the platform expects inside where predicates.
	commercetoolsTimeFormat = "2006-01-02T15:04:05.000Z"
)

// CommercetoolsConfig configures a commercetools HTTP API client.
type CommercetoolsConfig struct {
	// BaseURL is the regional API host, e.g. https://api.europe-west1.gcp.commercetools.com.
	BaseURL     string
	ProjectKey  string
	AccessToken string
	PageSize    int
	Timeout     time.Duration
}

func (c *CommercetoolsConfig) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("commercetools: base URL is required")
	}
	if c.ProjectKey == "" {
		return fmt.Errorf("commercetools: project key is required")
	}
	if c.AccessToken == "" {
		return fmt.Errorf("commercetools: access token is required")
	}
	return nil
}

// Commercetools extracts records through the commercetools HTTP API using
// limit/offset pagination and lastModifiedAt where predicates.
type Commercetools struct {
	baseURL    string
	projectKey string
	token      string
	pageSize   int
	client     *http.Client
}

func NewCommercetools(cfg CommercetoolsConfig) (*Commercetools, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = commercetoolsDefaultPageSize
	}
	return &Commercetools{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		projectKey: cfg.ProjectKey,
		token:      cfg.AccessToken,
		pageSize:   cfg.PageSize,
		client:     newHTTPClient(cfg.Timeout),
	}, nil
}

var _ Connector = (*Commercetools)(nil)

func (c *Commercetools) Source() v1.SourceType { return v1.SourceCommercetools }

func (c *Commercetools) TestConnection(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, c.projectKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("commercetools: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	if _, _, err := doRequest(c.client, req); err != nil {
		return fmt.Errorf("commercetools: %w", err)
	}
	return nil
}

func (c *Commercetools) FetchCustomers(ctx context.Context, since *time.Time) ([]Raw, error) {
	return c.fetchAll(ctx, "customers", since)
}

func (c *Commercetools) FetchProducts(ctx context.Context, since *time.Time) ([]Raw, error) {
	return c.fetchAll(ctx, "product-projections", since)
}

func (c *Commercetools) FetchOrders(ctx context.Context, since *time.Time) ([]Raw, error) {
	return c.fetchAll(ctx, "orders", since)
}

func (c *Commercetools) fetchAll(ctx context.Context, resource string, since *time.Time) ([]Raw, error) {
	var records []Raw
	for offset := 0; ; offset += c.pageSize {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("offset", strconv.Itoa(offset))
		query.Set("sort", "lastModifiedAt asc")
		if since != nil {
			predicate := fmt.Sprintf("lastModifiedAt > %q", since.UTC().Format(commercetoolsTimeFormat))
			query.Set("where", predicate)
		}

		endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.projectKey, resource, query.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("commercetools: failed to build %s request: %w", resource, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		body, _, err := doRequest(c.client, req)
		if err != nil {
			return nil, fmt.Errorf("commercetools: fetch %s offset %d: %w", resource, offset, err)
		}

		var page struct {
			Results []Raw `json:"results"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("commercetools: failed to parse %s response: %w", resource, err)
		}
		records = append(records, page.Results...)

		if len(page.Results) < c.pageSize {
			return records, nil
		}
	}
}
