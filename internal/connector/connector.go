// Package connector implements the storefront platform clients. Each
// connector speaks one platform's REST API and returns raw, platform-shaped
// records; mapping to canonical entities happens in the transform package.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
)

// Raw is an unmapped record as returned by a platform API.
type Raw = map[string]any

// ErrUnreachable indicates the platform did not answer the connection probe.
var ErrUnreachable = errors.New("source unreachable")

// Connector is the extraction contract consumed by the orchestrator.
// A nil since requests a full extraction; a non-nil since requests only
// records created or updated after that instant.
type Connector interface {
	Source() v1.SourceType

	// TestConnection probes the platform with a minimal authenticated
	// request. A non-nil error means the source cannot be extracted from.
	TestConnection(ctx context.Context) error

	FetchCustomers(ctx context.Context, since *time.Time) ([]Raw, error)
	FetchProducts(ctx context.Context, since *time.Time) ([]Raw, error)
	FetchOrders(ctx context.Context, since *time.Time) ([]Raw, error)
}

// maxResponseSize caps a single API response read (10MB).
const maxResponseSize = 10 * 1024 * 1024

const defaultTimeout = 30 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// doRequest executes the request and returns the response body and headers.
// Connection-level failures wrap ErrUnreachable so callers can distinguish
// an unreachable platform from a rejected request.
func doRequest(client *http.Client, req *http.Request) ([]byte, http.Header, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("request to %s failed: HTTP %d", req.URL.Path, resp.StatusCode)
	}

	return body, resp.Header, nil
}
