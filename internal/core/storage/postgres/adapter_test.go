package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/storelens-lab/storelens/internal/core/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:                  db,
		stmtUpsertCustomer:  mustPrepareStmt(t, db, mock, queryUpsertCustomer),
		stmtUpsertProduct:   mustPrepareStmt(t, db, mock, queryUpsertProduct),
		stmtUpsertOrder:     mustPrepareStmt(t, db, mock, queryUpsertOrder),
		stmtInsertOrderItem: mustPrepareStmt(t, db, mock, queryInsertOrderItem),
		stmtFindCustomerID:  mustPrepareStmt(t, db, mock, queryFindCustomerID),
		stmtFindProductID:   mustPrepareStmt(t, db, mock, queryFindProductID),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func TestAdapter_UpsertCustomer(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	customer := &v1.Customer{
		SourceID:    "cust-1",
		SourceType:  v1.SourceShopify,
		Email:       "alice@example.com",
		TotalSpent:  decimal.NewFromFloat(512.30),
		OrdersCount: 4,
		CreatedAt:   time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryUpsertCustomer)).
		WithArgs(
			customer.SourceID,
			customer.SourceType,
			customer.Email,
			customer.FirstName,
			customer.LastName,
			customer.Phone,
			customer.City,
			customer.Country,
			sqlmock.AnyArg(),
			customer.OrdersCount,
			customer.CreatedAt,
			sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := adapter.UpsertCustomer(context.Background(), customer)
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.Equal(t, int64(42), customer.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpsertOrder_LinksCustomer(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	processedAt := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	order := &v1.Order{
		SourceID:      "ord-9",
		SourceType:    v1.SourceWooCommerce,
		CustomerEmail: "bob@example.com",
		Total:         decimal.NewFromFloat(150.00),
		ProcessedAt:   processedAt,
	}
	customerID := int64(7)

	mock.ExpectQuery(regexp.QuoteMeta(queryUpsertOrder)).
		WithArgs(
			order.SourceID,
			order.SourceType,
			sql.NullInt64{Int64: 7, Valid: true},
			order.CustomerEmail,
			order.OrderNumber,
			sqlmock.AnyArg(), // subtotal
			sqlmock.AnyArg(), // tax
			sqlmock.AnyArg(), // discounts
			sqlmock.AnyArg(), // shipping
			sqlmock.AnyArg(), // total
			order.Currency,
			order.FinancialStatus,
			order.Channel,
			processedAt,
			sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(77)))

	id, err := adapter.UpsertOrder(context.Background(), order, &customerID)
	require.NoError(t, err)
	require.Equal(t, int64(77), id)
	require.NotNil(t, order.CustomerID)
	require.Equal(t, int64(7), *order.CustomerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_InsertOrderItems_SkipsFailedItem(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	items := []*v1.OrderItem{
		{SourceID: "li-1", Quantity: 1, Price: decimal.NewFromInt(10)},
		{SourceID: "li-2", Quantity: 2, Price: decimal.NewFromInt(20)},
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryInsertOrderItem)).
		WithArgs(int64(5), "li-1", sql.NullInt64{}, "", "", 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectQuery(regexp.QuoteMeta(queryInsertOrderItem)).
		WithArgs(int64(5), "li-2", sql.NullInt64{}, "", "", 2, sqlmock.AnyArg()).
		WillReturnError(errors.New("constraint violation"))

	inserted, err := adapter.InsertOrderItems(context.Background(), items, 5)
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	require.Equal(t, "li-1", inserted[0].SourceID)
	require.Equal(t, int64(100), inserted[0].ID)
	require.Equal(t, int64(5), inserted[0].OrderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FindCustomerID(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryFindCustomerID)).
		WithArgs("alice@example.com", v1.SourceShopify).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

	id, err := adapter.FindCustomerID(context.Background(), "alice@example.com", v1.SourceShopify)
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, int64(12), *id)

	mock.ExpectQuery(regexp.QuoteMeta(queryFindCustomerID)).
		WithArgs("missing@example.com", v1.SourceShopify).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err = adapter.FindCustomerID(context.Background(), "missing@example.com", v1.SourceShopify)
	require.NoError(t, err)
	require.Nil(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_LastSuccessfulRun(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	completedAt := time.Date(2024, 1, 14, 3, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryLastSuccessfulRun)).
		WithArgs("commerce-etl", v1.SourceShopify).
		WillReturnRows(sqlmock.NewRows(runLogColumnsList()).
			AddRow(
				"run-1", "commerce-etl", "shopify", "success",
				10, 10, 9,
				completedAt.Add(-time.Minute), completedAt, 60.0,
				nil, []byte(`{"customers":{"inserted":3}}`),
			))

	run, err := adapter.LastSuccessfulRun(context.Background(), "commerce-etl", v1.SourceShopify)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, v1.RunStatusSuccess, run.Status)
	require.Equal(t, completedAt, run.CompletedAt)
	require.Equal(t, 9, run.RecordsLoaded)
	require.NotNil(t, run.Metadata["customers"])

	// Never succeeded: nil run, no error.
	mock.ExpectQuery(regexp.QuoteMeta(queryLastSuccessfulRun)).
		WithArgs("commerce-etl", v1.SourceWooCommerce).
		WillReturnRows(sqlmock.NewRows(runLogColumnsList()))

	run, err = adapter.LastSuccessfulRun(context.Background(), "commerce-etl", v1.SourceWooCommerce)
	require.NoError(t, err)
	require.Nil(t, run)
	require.NoError(t, mock.ExpectationsWereMet())
}

// The run log and metrics columns that the adapter deliberately leaves NULL
// must bind SQL NULL, never empty-value placeholders.
func TestAdapter_LogRun_NullableColumns(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	startedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(30 * time.Second)

	t.Run("successful run binds NULL error message", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(queryInsertRunLog)).
			WithArgs(
				"run-ok", "commerce-etl", v1.SourceShopify, v1.RunStatusSuccess,
				4, 4, 6,
				startedAt, completedAt, 30.0,
				nil, []byte(`{"customers":{"inserted":2}}`),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.LogRun(context.Background(), &v1.ETLRunLog{
			ID:                 "run-ok",
			PipelineName:       "commerce-etl",
			SourceType:         v1.SourceShopify,
			Status:             v1.RunStatusSuccess,
			RecordsExtracted:   4,
			RecordsTransformed: 4,
			RecordsLoaded:      6,
			StartedAt:          startedAt,
			CompletedAt:        completedAt,
			DurationSeconds:    30.0,
			Metadata:           map[string]any{"customers": map[string]any{"inserted": 2}},
		})
		require.NoError(t, err)
	})

	t.Run("run failed before loading binds NULL metadata", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(queryInsertRunLog)).
			WithArgs(
				"run-failed", "commerce-etl", v1.SourceShopify, v1.RunStatusFailed,
				0, 0, 0,
				startedAt, completedAt, 30.0,
				sqlmock.AnyArg(), []byte(nil),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.LogRun(context.Background(), &v1.ETLRunLog{
			ID:              "run-failed",
			PipelineName:    "commerce-etl",
			SourceType:      v1.SourceShopify,
			Status:          v1.RunStatusFailed,
			StartedAt:       startedAt,
			CompletedAt:     completedAt,
			DurationSeconds: 30.0,
			ErrorMessage:    "connection error in connecting stage: boom",
		})
		require.NoError(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpsertCustomerMetrics_NeverPurchasedBindsNullDays(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	calculationDate := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(queryUpsertCustomerMetrics)).
		WithArgs(
			int64(7), calculationDate,
			decimal.Zero, 0, decimal.Zero, 0.0, 0, decimal.Zero, 1.0,
			nil,
			1, 1, 1, v1.SegmentInactive,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpsertCustomerMetrics(context.Background(), &v1.CustomerMetrics{
		CustomerID:            7,
		CalculationDate:       calculationDate,
		TotalRevenue:          decimal.Zero,
		AverageOrderValue:     decimal.Zero,
		CustomerLifetimeValue: decimal.Zero,
		ChurnProbability:      1,
		RecencyScore:          1,
		FrequencyScore:        1,
		MonetaryScore:         1,
		Segment:               v1.SegmentInactive,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_OrdersForDate_PopulatesLineItems(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	dayStart := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryOrdersForDate)).
		WithArgs(v1.SourceShopify, dayStart, dayStart.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows(orderColumnsList()).
			AddRow(
				int64(1), "ord-1", "shopify", int64(3), "a@b.c", "1001",
				"90", "10", "0", "0", "100", "USD",
				"paid", "web", dayStart.Add(9*time.Hour),
			))

	mock.ExpectQuery(regexp.QuoteMeta(queryOrderItemsForOrders)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "source_id", "product_id", "source_product_id", "title", "quantity", "price",
		}).AddRow(int64(11), int64(1), "li-1", nil, "p-1", "Widget", 2, "50"))

	orders, err := adapter.OrdersForDate(context.Background(), v1.SourceShopify, dayStart.Add(13*time.Hour))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].LineItems, 1)
	require.Equal(t, "li-1", orders[0].LineItems[0].SourceID)
	require.Nil(t, orders[0].LineItems[0].ProductID)
	require.True(t, decimal.NewFromInt(100).Equal(orders[0].Total))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_LatestCustomerMetrics_NotFound(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryLatestCustomerMetrics)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id"}))

	_, err := adapter.LatestCustomerMetrics(context.Background(), 99)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SegmentCounts(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(querySegmentCounts)).
		WillReturnRows(sqlmock.NewRows([]string{"customer_segment", "count"}).
			AddRow("Champions", 3).
			AddRow("Hibernating", 8))

	counts, err := adapter.SegmentCounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, counts[v1.SegmentChampions])
	require.Equal(t, 8, counts[v1.SegmentHibernating])
	require.NoError(t, mock.ExpectationsWereMet())
}

func runLogColumnsList() []string {
	return []string{
		"id", "pipeline_name", "source_type", "status",
		"records_extracted", "records_transformed", "records_loaded",
		"started_at", "completed_at", "duration_seconds", "error_message", "metadata",
	}
}

func orderColumnsList() []string {
	return []string{
		"id", "source_id", "source_type", "customer_id", "customer_email", "order_number",
		"subtotal", "tax", "discounts", "shipping", "total", "currency",
		"financial_status", "channel", "processed_at",
	}
}
