package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, order_year, order_seq, user_id, address_id, status, payment_status, payment_method,
subtotal, shipping_cost, tax, total, notes, idempotency_key,
shipping_first_name, shipping_last_name, shipping_street, shipping_city, shipping_state,
shipping_postal_code, shipping_country, shipping_phone, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.OrderYear,
		&o.OrderSeq,
		&o.UserID,
		&o.AddressID,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentMethod,
		&o.Subtotal,
		&o.ShippingCost,
		&o.Tax,
		&o.Total,
		&o.Notes,
		&o.IdempotencyKey,
		&o.ShippingFirstName,
		&o.ShippingLastName,
		&o.ShippingStreet,
		&o.ShippingCity,
		&o.ShippingState,
		&o.ShippingPostalCode,
		&o.ShippingCountry,
		&o.ShippingPhone,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

// GetNextOrderSeq returns MAX(order_seq)+1 for the given year. Two
// concurrent transactions can read the same value; the unique constraint
// plus the service retry loop resolve the race.
const getNextOrderSeq = `
SELECT COALESCE(MAX(order_seq), 0) + 1 FROM orders WHERE order_year = $1`

func (q *Queries) GetNextOrderSeq(ctx context.Context, orderYear int32) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, getNextOrderSeq, orderYear).Scan(&next)
	return next, err
}

const createOrder = `
INSERT INTO orders (order_number, order_year, order_seq, user_id, address_id, status, payment_status, payment_method,
	subtotal, shipping_cost, tax, total, notes, idempotency_key,
	shipping_first_name, shipping_last_name, shipping_street, shipping_city, shipping_state,
	shipping_postal_code, shipping_country, shipping_phone)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber    string
	OrderYear      int32
	OrderSeq       int32
	UserID         uuid.UUID
	AddressID      uuid.UUID
	Status         string
	PaymentStatus  string
	PaymentMethod  string
	Subtotal       pgtype.Numeric
	ShippingCost   pgtype.Numeric
	Tax            pgtype.Numeric
	Total          pgtype.Numeric
	Notes          pgtype.Text
	IdempotencyKey pgtype.Text

	ShippingFirstName  string
	ShippingLastName   string
	ShippingStreet     string
	ShippingCity       string
	ShippingState      string
	ShippingPostalCode string
	ShippingCountry    string
	ShippingPhone      string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.OrderYear,
		arg.OrderSeq,
		arg.UserID,
		arg.AddressID,
		arg.Status,
		arg.PaymentStatus,
		arg.PaymentMethod,
		arg.Subtotal,
		arg.ShippingCost,
		arg.Tax,
		arg.Total,
		arg.Notes,
		arg.IdempotencyKey,
		arg.ShippingFirstName,
		arg.ShippingLastName,
		arg.ShippingStreet,
		arg.ShippingCity,
		arg.ShippingState,
		arg.ShippingPostalCode,
		arg.ShippingCountry,
		arg.ShippingPhone,
	)
	return scanOrder(row)
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, quantity, price, subtotal)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, product_id, quantity, price, subtotal, created_at`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Price     pgtype.Numeric
	Subtotal  pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var i OrderItem
	err := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Quantity,
		arg.Price,
		arg.Subtotal,
	).Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &i.Price, &i.Subtotal, &i.CreatedAt)
	return i, err
}

const getOrder = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByIdempotencyKey = `
SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND idempotency_key = $2`

type GetOrderByIdempotencyKeyParams struct {
	UserID         uuid.UUID
	IdempotencyKey pgtype.Text
}

func (q *Queries) GetOrderByIdempotencyKey(ctx context.Context, arg GetOrderByIdempotencyKeyParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByIdempotencyKey, arg.UserID, arg.IdempotencyKey))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::uuid IS NULL OR user_id = $1)
  AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListOrdersParams struct {
	UserID pgtype.UUID
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.UserID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrderItemsByOrder = `
SELECT id, order_id, product_id, quantity, price, subtotal, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at ASC, id ASC`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &i.Price, &i.Subtotal, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// UpdateOrderStatus only writes when the row still carries the status pair
// the caller validated against, so a concurrent update surfaces as
// pgx.ErrNoRows rather than silently clobbering a transition.
const updateOrderStatus = `
UPDATE orders
SET status = $2, payment_status = $3, updated_at = now()
WHERE id = $1 AND status = $4 AND payment_status = $5
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID                    uuid.UUID
	Status                string
	PaymentStatus         string
	ExpectedStatus        string
	ExpectedPaymentStatus string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.Status,
		arg.PaymentStatus,
		arg.ExpectedStatus,
		arg.ExpectedPaymentStatus,
	)
	return scanOrder(row)
}
