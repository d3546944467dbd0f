// Package transform maps raw platform records onto the canonical commerce
// entities. Each platform has a default field mapping; operators can
// redirect individual fields through YAML overrides without a code change.
package transform

import (
	"fmt"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/storelens-lab/storelens/internal/connector"
)

// Error reports a record that cannot be mapped to canonical form. Raw holds
// the offending record so a fail-fast run's log can pinpoint it.
type Error struct {
	Source v1.SourceType
	Entity string
	Raw    connector.Raw
	Err    error
}

func (e *Error) Error() string {
	if id := asString(e.Raw, "id"); id != "" {
		return fmt.Sprintf("failed to normalize %s %s record %s: %v", e.Source, e.Entity, id, e.Err)
	}
	return fmt.Sprintf("failed to normalize %s %s record: %v", e.Source, e.Entity, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Normalizer converts raw connector records into validated canonical
// entities. It is stateless and safe for concurrent use.
type Normalizer struct {
	mappings MappingRepository
}

// NewNormalizer creates a normalizer. mappings may be nil when no field
// overrides are configured.
func NewNormalizer(mappings MappingRepository) *Normalizer {
	return &Normalizer{mappings: mappings}
}

func (n *Normalizer) path(source v1.SourceType, entity, field, fallback string) string {
	if n.mappings != nil {
		if override, ok := n.mappings.Override(source, entity, field); ok {
			return override
		}
	}
	return fallback
}

// Customer maps a raw platform customer onto the canonical record.
func (n *Normalizer) Customer(source v1.SourceType, raw connector.Raw) (*v1.Customer, error) {
	get := func(field, fallback string) string {
		return asString(raw, n.path(source, "customer", field, fallback))
	}

	customer := &v1.Customer{
		SourceType: source,
		SourceID:   get("id", "id"),
	}

	switch source {
	case v1.SourceShopify:
		customer.Email = get("email", "email")
		customer.FirstName = get("first_name", "first_name")
		customer.LastName = get("last_name", "last_name")
		customer.Phone = get("phone", "phone")
		customer.City = get("city", "default_address.city")
		customer.Country = get("country", "default_address.country")
		customer.TotalSpent = asDecimal(raw, n.path(source, "customer", "total_spent", "total_spent"))
		customer.OrdersCount = asInt(raw, n.path(source, "customer", "orders_count", "orders_count"))
		customer.CreatedAt = asTime(raw, n.path(source, "customer", "created_at", "created_at"))
	case v1.SourceWooCommerce:
		customer.Email = get("email", "email")
		customer.FirstName = get("first_name", "first_name")
		customer.LastName = get("last_name", "last_name")
		customer.Phone = get("phone", "billing.phone")
		customer.City = get("city", "billing.city")
		customer.Country = get("country", "billing.country")
		customer.TotalSpent = asDecimal(raw, n.path(source, "customer", "total_spent", "total_spent"))
		customer.OrdersCount = asInt(raw, n.path(source, "customer", "orders_count", "orders_count"))
		customer.CreatedAt = asTime(raw, n.path(source, "customer", "created_at", "date_created"))
	case v1.SourceCommercetools:
		customer.Email = get("email", "email")
		customer.FirstName = get("first_name", "firstName")
		customer.LastName = get("last_name", "lastName")
		customer.Phone = get("phone", "addresses.0.phone")
		customer.City = get("city", "addresses.0.city")
		customer.Country = get("country", "addresses.0.country")
		customer.CreatedAt = asTime(raw, n.path(source, "customer", "created_at", "createdAt"))
	default:
		return nil, &Error{Source: source, Entity: "customer", Raw: raw, Err: fmt.Errorf("unsupported source")}
	}

	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	if err := customer.Validate(); err != nil {
		return nil, &Error{Source: source, Entity: "customer", Raw: raw, Err: err}
	}
	return customer, nil
}

// Product maps a raw platform product onto the canonical record.
func (n *Normalizer) Product(source v1.SourceType, raw connector.Raw) (*v1.Product, error) {
	get := func(field, fallback string) string {
		return asString(raw, n.path(source, "product", field, fallback))
	}

	product := &v1.Product{
		SourceType: source,
		SourceID:   get("id", "id"),
	}

	switch source {
	case v1.SourceShopify:
		product.Title = get("title", "title")
		product.SKU = get("sku", "variants.0.sku")
		product.Price = asDecimal(raw, n.path(source, "product", "price", "variants.0.price"))
		product.Category = get("category", "product_type")
		product.Vendor = get("vendor", "vendor")
		product.Status = get("status", "status")
		product.CreatedAt = asTime(raw, n.path(source, "product", "created_at", "created_at"))
	case v1.SourceWooCommerce:
		product.Title = get("title", "name")
		product.SKU = get("sku", "sku")
		product.Price = asDecimal(raw, n.path(source, "product", "price", "price"))
		product.Category = get("category", "categories.0.name")
		product.Status = get("status", "status")
		product.CreatedAt = asTime(raw, n.path(source, "product", "created_at", "date_created"))
	case v1.SourceCommercetools:
		product.Title = asLocalized(raw, n.path(source, "product", "title", "name"))
		product.SKU = get("sku", "masterVariant.sku")
		product.Price = asCentAmount(raw, n.path(source, "product", "price", "masterVariant.prices.0.value"))
		product.Status = ctProductStatus(raw)
		product.CreatedAt = asTime(raw, n.path(source, "product", "created_at", "createdAt"))
	default:
		return nil, &Error{Source: source, Entity: "product", Raw: raw, Err: fmt.Errorf("unsupported source")}
	}

	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	if err := product.Validate(); err != nil {
		return nil, &Error{Source: source, Entity: "product", Raw: raw, Err: err}
	}
	return product, nil
}

func ctProductStatus(raw connector.Raw) string {
	if published, ok := dig(raw, "published"); ok {
		if b, ok := published.(bool); ok && b {
			return "active"
		}
	}
	return "draft"
}

// Order maps a raw platform order, line items included, onto the canonical
// record.
func (n *Normalizer) Order(source v1.SourceType, raw connector.Raw) (*v1.Order, error) {
	get := func(field, fallback string) string {
		return asString(raw, n.path(source, "order", field, fallback))
	}

	order := &v1.Order{
		SourceType: source,
		SourceID:   get("id", "id"),
	}

	switch source {
	case v1.SourceShopify:
		order.CustomerEmail = get("customer_email", "email")
		order.OrderNumber = get("order_number", "order_number")
		order.Subtotal = asDecimal(raw, n.path(source, "order", "subtotal", "subtotal_price"))
		order.Tax = asDecimal(raw, n.path(source, "order", "tax", "total_tax"))
		order.Discounts = asDecimal(raw, n.path(source, "order", "discounts", "total_discounts"))
		order.Shipping = asDecimal(raw, n.path(source, "order", "shipping", "total_shipping_price_set.shop_money.amount"))
		order.Total = asDecimal(raw, n.path(source, "order", "total", "total_price"))
		order.Currency = get("currency", "currency")
		order.FinancialStatus = get("financial_status", "financial_status")
		order.Channel = get("channel", "source_name")
		order.ProcessedAt = firstTime(raw,
			n.path(source, "order", "processed_at", "processed_at"), "created_at")
		order.LineItems = n.lineItems(source, raw, "line_items", shopifyLineItem)
	case v1.SourceWooCommerce:
		order.CustomerEmail = get("customer_email", "billing.email")
		order.OrderNumber = get("order_number", "number")
		order.Tax = asDecimal(raw, n.path(source, "order", "tax", "total_tax"))
		order.Discounts = asDecimal(raw, n.path(source, "order", "discounts", "discount_total"))
		order.Shipping = asDecimal(raw, n.path(source, "order", "shipping", "shipping_total"))
		order.Total = asDecimal(raw, n.path(source, "order", "total", "total"))
		order.Subtotal = order.Total.Sub(order.Tax).Sub(order.Shipping)
		order.Currency = get("currency", "currency")
		order.FinancialStatus = get("financial_status", "status")
		order.Channel = get("channel", "created_via")
		order.ProcessedAt = firstTime(raw,
			n.path(source, "order", "processed_at", "date_paid"), "date_created")
		order.LineItems = n.lineItems(source, raw, "line_items", wooLineItem)
	case v1.SourceCommercetools:
		order.CustomerEmail = get("customer_email", "customerEmail")
		order.OrderNumber = get("order_number", "orderNumber")
		order.Tax = asCentAmount(raw, n.path(source, "order", "tax", "taxedPrice.totalTax"))
		order.Discounts = asCentAmount(raw, n.path(source, "order", "discounts", "discountOnTotalPrice.discountedAmount"))
		order.Shipping = asCentAmount(raw, n.path(source, "order", "shipping", "shippingInfo.price"))
		order.Total = asCentAmount(raw, n.path(source, "order", "total", "totalPrice"))
		order.Subtotal = order.Total.Sub(order.Tax).Sub(order.Shipping)
		order.Currency = get("currency", "totalPrice.currencyCode")
		order.FinancialStatus = get("financial_status", "paymentState")
		order.ProcessedAt = firstTime(raw,
			n.path(source, "order", "processed_at", "createdAt"))
		order.LineItems = n.lineItems(source, raw, "lineItems", ctLineItem)
	default:
		return nil, &Error{Source: source, Entity: "order", Raw: raw, Err: fmt.Errorf("unsupported source")}
	}

	if err := order.Validate(); err != nil {
		return nil, &Error{Source: source, Entity: "order", Raw: raw, Err: err}
	}
	return order, nil
}

func (n *Normalizer) lineItems(source v1.SourceType, raw connector.Raw, path string, mapItem func(connector.Raw) *v1.OrderItem) []*v1.OrderItem {
	rawItems := asSlice(raw, n.path(source, "order", "line_items", path))
	if len(rawItems) == 0 {
		return nil
	}
	items := make([]*v1.OrderItem, 0, len(rawItems))
	for _, rawItem := range rawItems {
		items = append(items, mapItem(rawItem))
	}
	return items
}

func shopifyLineItem(raw connector.Raw) *v1.OrderItem {
	return &v1.OrderItem{
		SourceID:        asString(raw, "id"),
		SourceProductID: asString(raw, "product_id"),
		Title:           asString(raw, "title"),
		Quantity:        asInt(raw, "quantity"),
		Price:           asDecimal(raw, "price"),
	}
}

func wooLineItem(raw connector.Raw) *v1.OrderItem {
	return &v1.OrderItem{
		SourceID:        asString(raw, "id"),
		SourceProductID: asString(raw, "product_id"),
		Title:           asString(raw, "name"),
		Quantity:        asInt(raw, "quantity"),
		Price:           asDecimal(raw, "price"),
	}
}

func ctLineItem(raw connector.Raw) *v1.OrderItem {
	return &v1.OrderItem{
		SourceID:        asString(raw, "id"),
		SourceProductID: asString(raw, "productId"),
		Title:           asLocalized(raw, "name"),
		Quantity:        asInt(raw, "quantity"),
		Price:           asCentAmount(raw, "price.value"),
	}
}

// firstTime returns the first path that parses to a non-zero timestamp.
func firstTime(raw connector.Raw, paths ...string) time.Time {
	for _, path := range paths {
		if t := asTime(raw, path); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
