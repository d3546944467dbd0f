package postgres

// SQL for the commerce store. Upserts key on (source_type, source_id) so a
// re-extraction of already loaded records stays idempotent.

const (
	queryUpsertCustomer = `
		INSERT INTO customers (
			source_id, source_type, email, first_name, last_name, phone,
			city, country, total_spent, orders_count, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (source_type, source_id) DO UPDATE SET
			email        = EXCLUDED.email,
			first_name   = EXCLUDED.first_name,
			last_name    = EXCLUDED.last_name,
			phone        = EXCLUDED.phone,
			city         = EXCLUDED.city,
			country      = EXCLUDED.country,
			total_spent  = EXCLUDED.total_spent,
			orders_count = EXCLUDED.orders_count,
			updated_at   = EXCLUDED.updated_at
		RETURNING id
	`

	queryUpsertProduct = `
		INSERT INTO products (
			source_id, source_type, title, sku, price,
			category, vendor, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_type, source_id) DO UPDATE SET
			title      = EXCLUDED.title,
			sku        = EXCLUDED.sku,
			price      = EXCLUDED.price,
			category   = EXCLUDED.category,
			vendor     = EXCLUDED.vendor,
			status     = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	queryUpsertOrder = `
		INSERT INTO orders (
			source_id, source_type, customer_id, customer_email, order_number,
			subtotal, tax, discounts, shipping, total, currency,
			financial_status, channel, processed_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (source_type, source_id) DO UPDATE SET
			customer_id      = EXCLUDED.customer_id,
			customer_email   = EXCLUDED.customer_email,
			order_number     = EXCLUDED.order_number,
			subtotal         = EXCLUDED.subtotal,
			tax              = EXCLUDED.tax,
			discounts        = EXCLUDED.discounts,
			shipping         = EXCLUDED.shipping,
			total            = EXCLUDED.total,
			currency         = EXCLUDED.currency,
			financial_status = EXCLUDED.financial_status,
			channel          = EXCLUDED.channel,
			processed_at     = EXCLUDED.processed_at,
			updated_at       = EXCLUDED.updated_at
		RETURNING id
	`

	queryInsertOrderItem = `
		INSERT INTO order_items (
			order_id, source_id, product_id, source_product_id, title, quantity, price
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, source_id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			title      = EXCLUDED.title,
			quantity   = EXCLUDED.quantity,
			price      = EXCLUDED.price
		RETURNING id
	`

	queryFindCustomerID = `
		SELECT id FROM customers
		WHERE lower(email) = lower($1) AND source_type = $2
		LIMIT 1
	`

	queryFindProductID = `
		SELECT id FROM products
		WHERE source_id = $1 AND source_type = $2
		LIMIT 1
	`

	// queryRefreshPurchaseDates derives first/last purchase dates from loaded
	// orders. Runs once per source at the end of the Loading stage.
	queryRefreshPurchaseDates = `
		UPDATE customers c
		SET first_purchase_date = agg.first_at,
		    last_purchase_date  = agg.last_at
		FROM (
			SELECT customer_id, MIN(processed_at) AS first_at, MAX(processed_at) AS last_at
			FROM orders
			WHERE source_type = $1 AND customer_id IS NOT NULL
			GROUP BY customer_id
		) agg
		WHERE c.id = agg.customer_id
	`

	runLogColumns = `
		id, pipeline_name, source_type, status,
		records_extracted, records_transformed, records_loaded,
		started_at, completed_at, duration_seconds, error_message, metadata
	`

	queryLastSuccessfulRun = `
		SELECT ` + runLogColumns + `
		FROM etl_run_logs
		WHERE pipeline_name = $1 AND source_type = $2 AND status = 'success'
		ORDER BY completed_at DESC
		LIMIT 1
	`

	queryInsertRunLog = `
		INSERT INTO etl_run_logs (` + runLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	queryRecentRuns = `
		SELECT ` + runLogColumns + `
		FROM etl_run_logs
		ORDER BY started_at DESC
		LIMIT $1
	`

	customerColumns = `
		id, source_id, source_type, email, first_name, last_name, phone,
		city, country, total_spent, orders_count,
		first_purchase_date, last_purchase_date, created_at
	`

	queryCustomersBySource = `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE ($1 = '' OR source_type = $1)
		ORDER BY id
	`

	orderColumns = `
		id, source_id, source_type, customer_id, customer_email, order_number,
		subtotal, tax, discounts, shipping, total, currency,
		financial_status, channel, processed_at
	`

	queryLinkedOrdersBySource = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1 = '' OR source_type = $1) AND customer_id IS NOT NULL
		ORDER BY customer_id, processed_at, id
	`

	queryOrdersForDate = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE source_type = $1 AND processed_at >= $2 AND processed_at < $3
		ORDER BY processed_at, id
	`

	queryOrderItemsForOrders = `
		SELECT id, order_id, source_id, product_id, source_product_id, title, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`

	queryProductsBySource = `
		SELECT id, source_id, source_type, title, sku, price, category, vendor, status, created_at
		FROM products
		WHERE source_type = $1
		ORDER BY id
	`

	queryUpsertCustomerMetrics = `
		INSERT INTO customer_metrics (
			customer_id, calculation_date, total_revenue, total_orders,
			average_order_value, purchase_frequency, customer_lifespan_days,
			customer_lifetime_value, churn_probability, days_since_last_purchase,
			rfm_recency_score, rfm_frequency_score, rfm_monetary_score, customer_segment
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (customer_id, calculation_date) DO UPDATE SET
			total_revenue            = EXCLUDED.total_revenue,
			total_orders             = EXCLUDED.total_orders,
			average_order_value      = EXCLUDED.average_order_value,
			purchase_frequency       = EXCLUDED.purchase_frequency,
			customer_lifespan_days   = EXCLUDED.customer_lifespan_days,
			customer_lifetime_value  = EXCLUDED.customer_lifetime_value,
			churn_probability        = EXCLUDED.churn_probability,
			days_since_last_purchase = EXCLUDED.days_since_last_purchase,
			rfm_recency_score        = EXCLUDED.rfm_recency_score,
			rfm_frequency_score      = EXCLUDED.rfm_frequency_score,
			rfm_monetary_score       = EXCLUDED.rfm_monetary_score,
			customer_segment         = EXCLUDED.customer_segment
	`

	queryUpsertDailyMetrics = `
		INSERT INTO daily_metrics (
			metric_date, source_type, total_revenue, total_orders, total_customers,
			average_order_value, total_products_sold, new_customers,
			returning_customers, revenue_by_source, top_selling_products
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (metric_date, source_type) DO UPDATE SET
			total_revenue        = EXCLUDED.total_revenue,
			total_orders         = EXCLUDED.total_orders,
			total_customers      = EXCLUDED.total_customers,
			average_order_value  = EXCLUDED.average_order_value,
			total_products_sold  = EXCLUDED.total_products_sold,
			new_customers        = EXCLUDED.new_customers,
			returning_customers  = EXCLUDED.returning_customers,
			revenue_by_source    = EXCLUDED.revenue_by_source,
			top_selling_products = EXCLUDED.top_selling_products
	`

	customerMetricsColumns = `
		customer_id, calculation_date, total_revenue, total_orders,
		average_order_value, purchase_frequency, customer_lifespan_days,
		customer_lifetime_value, churn_probability, days_since_last_purchase,
		rfm_recency_score, rfm_frequency_score, rfm_monetary_score, customer_segment
	`

	queryLatestCustomerMetrics = `
		SELECT ` + customerMetricsColumns + `
		FROM customer_metrics
		WHERE customer_id = $1
		ORDER BY calculation_date DESC
		LIMIT 1
	`

	queryDailyMetricsRange = `
		SELECT metric_date, source_type, total_revenue, total_orders, total_customers,
		       average_order_value, total_products_sold, new_customers,
		       returning_customers, revenue_by_source, top_selling_products
		FROM daily_metrics
		WHERE ($1 = '' OR source_type = $1) AND metric_date >= $2 AND metric_date <= $3
		ORDER BY metric_date, source_type
	`

	// querySegmentCounts uses each customer's newest metrics row only, so a
	// customer re-scored into a new segment is not double-counted.
	querySegmentCounts = `
		SELECT customer_segment, COUNT(*)
		FROM (
			SELECT DISTINCT ON (customer_id) customer_id, customer_segment
			FROM customer_metrics
			ORDER BY customer_id, calculation_date DESC
		) latest
		GROUP BY customer_segment
	`
)
