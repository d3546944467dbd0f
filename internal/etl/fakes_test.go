package etl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/storelens-lab/storelens/internal/connector"
	"github.com/storelens-lab/storelens/internal/core/storage"
)

type fakeConnector struct {
	source     v1.SourceType
	connectErr error

	customers []connector.Raw
	products  []connector.Raw
	orders    []connector.Raw

	customersErr error
	productsErr  error
	ordersErr    error

	sinceSeen []*time.Time
}

func (f *fakeConnector) Source() v1.SourceType { return f.source }

func (f *fakeConnector) TestConnection(context.Context) error { return f.connectErr }

func (f *fakeConnector) FetchCustomers(_ context.Context, since *time.Time) ([]connector.Raw, error) {
	f.sinceSeen = append(f.sinceSeen, since)
	return f.customers, f.customersErr
}

func (f *fakeConnector) FetchProducts(_ context.Context, since *time.Time) ([]connector.Raw, error) {
	return f.products, f.productsErr
}

func (f *fakeConnector) FetchOrders(_ context.Context, since *time.Time) ([]connector.Raw, error) {
	return f.orders, f.ordersErr
}

// memStore is an in-memory storage.Store for orchestrator tests.
type memStore struct {
	mu sync.Mutex

	nextID    int64
	customers map[string]*v1.Customer // keyed by source/sourceID
	products  map[string]*v1.Product
	orders    map[string]*v1.Order
	items     map[int64][]*v1.OrderItem // keyed by order id
	runs      []*v1.ETLRunLog

	customerMetrics []*v1.CustomerMetrics
	dailyMetrics    []*v1.DailyMetrics

	failCustomerSourceIDs map[string]bool
	failOrderItemSourceID string
	refreshErr            error
	customersWithOrdersErr error
	logRunErr              error
}

func newMemStore() *memStore {
	return &memStore{
		customers:             make(map[string]*v1.Customer),
		products:              make(map[string]*v1.Product),
		orders:                make(map[string]*v1.Order),
		items:                 make(map[int64][]*v1.OrderItem),
		failCustomerSourceIDs: make(map[string]bool),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func key(source v1.SourceType, sourceID string) string {
	return string(source) + "/" + sourceID
}

func (m *memStore) UpsertCustomer(_ context.Context, customer *v1.Customer) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCustomerSourceIDs[customer.SourceID] {
		return 0, fmt.Errorf("simulated upsert failure")
	}
	k := key(customer.SourceType, customer.SourceID)
	if existing, ok := m.customers[k]; ok {
		customer.ID = existing.ID
	} else {
		customer.ID = m.id()
	}
	clone := *customer
	m.customers[k] = &clone
	return customer.ID, nil
}

func (m *memStore) UpsertProduct(_ context.Context, product *v1.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(product.SourceType, product.SourceID)
	if existing, ok := m.products[k]; ok {
		product.ID = existing.ID
	} else {
		product.ID = m.id()
	}
	clone := *product
	m.products[k] = &clone
	return product.ID, nil
}

func (m *memStore) UpsertOrder(_ context.Context, order *v1.Order, customerID *int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(order.SourceType, order.SourceID)
	if existing, ok := m.orders[k]; ok {
		order.ID = existing.ID
	} else {
		order.ID = m.id()
	}
	order.CustomerID = customerID
	clone := *order
	clone.LineItems = nil
	m.orders[k] = &clone
	return order.ID, nil
}

func (m *memStore) InsertOrderItems(_ context.Context, items []*v1.OrderItem, orderID int64) ([]*v1.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var inserted []*v1.OrderItem
	for _, item := range items {
		if item.SourceID == m.failOrderItemSourceID && m.failOrderItemSourceID != "" {
			continue
		}
		item.ID = m.id()
		item.OrderID = orderID
		clone := *item
		m.items[orderID] = append(m.items[orderID], &clone)
		inserted = append(inserted, &clone)
	}
	return inserted, nil
}

func (m *memStore) FindCustomerID(_ context.Context, email string, source v1.SourceType) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, customer := range m.customers {
		if customer.SourceType == source && strings.EqualFold(customer.Email, email) {
			id := customer.ID
			return &id, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindProductID(_ context.Context, sourceProductID string, source v1.SourceType) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if product, ok := m.products[key(source, sourceProductID)]; ok {
		id := product.ID
		return &id, nil
	}
	return nil, nil
}

func (m *memStore) RefreshCustomerPurchaseDates(_ context.Context, source v1.SourceType) error {
	if m.refreshErr != nil {
		return m.refreshErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, customer := range m.customers {
		if customer.SourceType != source {
			continue
		}
		for _, order := range m.orders {
			if order.CustomerID == nil || *order.CustomerID != customer.ID {
				continue
			}
			processed := order.ProcessedAt
			if customer.FirstPurchaseDate == nil || processed.Before(*customer.FirstPurchaseDate) {
				t := processed
				customer.FirstPurchaseDate = &t
			}
			if customer.LastPurchaseDate == nil || processed.After(*customer.LastPurchaseDate) {
				t := processed
				customer.LastPurchaseDate = &t
			}
		}
	}
	return nil
}

func (m *memStore) LastSuccessfulRun(_ context.Context, pipelineName string, source v1.SourceType) (*v1.ETLRunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *v1.ETLRunLog
	for _, run := range m.runs {
		if run.PipelineName != pipelineName || run.SourceType != source || run.Status != v1.RunStatusSuccess {
			continue
		}
		if latest == nil || run.CompletedAt.After(latest.CompletedAt) {
			latest = run
		}
	}
	return latest, nil
}

func (m *memStore) LogRun(_ context.Context, run *v1.ETLRunLog) error {
	if m.logRunErr != nil {
		return m.logRunErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *run
	m.runs = append(m.runs, &clone)
	return nil
}

func (m *memStore) RecentRuns(_ context.Context, limit int) ([]*v1.ETLRunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*v1.ETLRunLog, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *memStore) CustomersWithOrders(_ context.Context, source v1.SourceType) ([]*storage.CustomerOrders, error) {
	if m.customersWithOrdersErr != nil {
		return nil, m.customersWithOrdersErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.CustomerOrders
	for _, customer := range m.customers {
		if source != "" && customer.SourceType != source {
			continue
		}
		pair := &storage.CustomerOrders{Customer: customer}
		for _, order := range m.orders {
			if order.CustomerID != nil && *order.CustomerID == customer.ID {
				pair.Orders = append(pair.Orders, order)
			}
		}
		out = append(out, pair)
	}
	return out, nil
}

func (m *memStore) OrdersForDate(_ context.Context, source v1.SourceType, date time.Time) ([]*v1.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := date.UTC().Truncate(24 * time.Hour)
	var out []*v1.Order
	for _, order := range m.orders {
		if order.SourceType != source {
			continue
		}
		if order.ProcessedAt.UTC().Truncate(24 * time.Hour).Equal(day) {
			clone := *order
			clone.LineItems = m.items[order.ID]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memStore) ProductsBySource(_ context.Context, source v1.SourceType) ([]*v1.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*v1.Product
	for _, product := range m.products {
		if product.SourceType == source {
			out = append(out, product)
		}
	}
	return out, nil
}

func (m *memStore) UpsertCustomerMetrics(_ context.Context, metrics *v1.CustomerMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customerMetrics = append(m.customerMetrics, metrics)
	return nil
}

func (m *memStore) UpsertDailyMetrics(_ context.Context, metrics *v1.DailyMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyMetrics = append(m.dailyMetrics, metrics)
	return nil
}

func (m *memStore) LatestCustomerMetrics(_ context.Context, customerID int64) (*v1.CustomerMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.customerMetrics) - 1; i >= 0; i-- {
		if m.customerMetrics[i].CustomerID == customerID {
			return m.customerMetrics[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) DailyMetricsRange(_ context.Context, source v1.SourceType, start, end time.Time) ([]*v1.DailyMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*v1.DailyMetrics
	for _, metrics := range m.dailyMetrics {
		if source != "" && metrics.SourceType != source {
			continue
		}
		if metrics.MetricDate.Before(start) || metrics.MetricDate.After(end) {
			continue
		}
		out = append(out, metrics)
	}
	return out, nil
}

func (m *memStore) SegmentCounts(context.Context) (map[v1.Segment]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[int64]v1.Segment)
	for _, metrics := range m.customerMetrics {
		latest[metrics.CustomerID] = metrics.Segment
	}
	counts := make(map[v1.Segment]int)
	for _, segment := range latest {
		counts[segment]++
	}
	return counts, nil
}

var _ storage.Store = (*memStore)(nil)
var _ connector.Connector = (*fakeConnector)(nil)
