package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nutreterra/api/internal/database"
	"github.com/nutreterra/api/internal/enum"
	"github.com/nutreterra/api/internal/pricing"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("order must contain at least one item")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidProductID  = errors.New("invalid product_id")
	ErrInvalidAddressID  = errors.New("invalid address_id")
	ErrAddressNotFound   = errors.New("address not found for user")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetAddress(ctx context.Context, arg database.GetAddressParams) (database.Address, error)
	GetProductForOrder(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error)
	GetNextOrderSeq(ctx context.Context, orderYear int32) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderByIdempotencyKey(ctx context.Context, arg database.GetOrderByIdempotencyKeyParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	UserID         uuid.UUID
	AddressID      string
	PaymentMethod  string
	Notes          string
	IdempotencyKey string
	Items          []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
}

// CreateOrderResult is the full created order with items. Replayed reports
// that the idempotency key matched an order created by an earlier request,
// so the handler answers 200 instead of 201.
type CreateOrderResult struct {
	Order    database.Order
	Items    []database.OrderItem
	Replayed bool
}

// OrderService handles order business logic.
type OrderService struct {
	store    OrderStore
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService. store runs reads outside
// transactions; newStore builds per-transaction stores.
func NewOrderService(store OrderStore, pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{store: store, pool: pool, newStore: newStore}
}

// processedItem holds a prepared order item row.
type processedItem struct {
	params database.CreateOrderItemParams
}

// CreateOrder validates, prices, and creates an order atomically.
// Retries up to maxOrderNumberRetries times on order_number unique
// constraint violations (concurrent transactions can read the same
// MAX(order_seq)). When an idempotency key is supplied, a retried request
// returns the previously created order instead of a duplicate.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return nil, ErrInvalidAddressID
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = enum.PaymentMethodDefault
	}

	// Replays short-circuit before any write.
	if req.IdempotencyKey != "" {
		if result, ok, err := s.findReplay(ctx, req); err != nil {
			return nil, err
		} else if ok {
			return result, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req, addressID)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		if req.IdempotencyKey != "" && isIdempotencyConflict(err) {
			// Lost a race against a concurrent request carrying the same
			// key; the winner's order is this caller's order too.
			if result, ok, ferr := s.findReplay(ctx, req); ferr == nil && ok {
				return result, nil
			}
		}
		return nil, err
	}
	return nil, lastErr
}

// findReplay looks up an order previously created with the same
// (user, idempotency key) pair.
func (s *OrderService) findReplay(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, bool, error) {
	order, err := s.store.GetOrderByIdempotencyKey(ctx, database.GetOrderByIdempotencyKeyParams{
		UserID:         req.UserID,
		IdempotencyKey: pgtype.Text{String: req.IdempotencyKey, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, false, fmt.Errorf("list replayed order items: %w", err)
	}
	return &CreateOrderResult{Order: order, Items: items, Replayed: true}, true, nil
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, addressID uuid.UUID) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Resolve address; it must belong to the ordering user ---
	address, err := store.GetAddress(ctx, database.GetAddressParams{
		ID:     addressID,
		UserID: req.UserID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	// --- Resolve products: price snapshot + stock availability ---
	lines := make([]pricing.LineItem, 0, len(req.Items))
	items := make([]processedItem, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidProductID)
		}

		product, err := store.GetProductForOrder(ctx, productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w: %s", i, ErrProductNotFound, item.ProductID)
			}
			return nil, fmt.Errorf("items[%d]: get product: %w", i, err)
		}

		// Availability only; placing an order does not reserve stock.
		if item.Quantity > product.Stock {
			return nil, fmt.Errorf("items[%d]: %w: %s has %d in stock", i, ErrInsufficientStock, product.Name, product.Stock)
		}

		unitPrice := numericToDecimal(product.Price)
		lines = append(lines, pricing.LineItem{UnitPrice: unitPrice, Quantity: item.Quantity})
		items = append(items, processedItem{
			params: database.CreateOrderItemParams{
				ProductID: productID,
				Quantity:  item.Quantity,
				Price:     decimalToNumeric(unitPrice),
				Subtotal:  decimalToNumeric(pricing.LineSubtotal(unitPrice, item.Quantity)),
			},
		})
	}

	totals, err := pricing.Calculate(lines)
	if err != nil {
		return nil, err
	}

	// --- Generate order number: NT-<year>-<zero-padded sequence> ---
	year := int32(time.Now().UTC().Year())
	seq, err := store.GetNextOrderSeq(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("get next order seq: %w", err)
	}
	orderNumber := fmt.Sprintf("NT-%d-%06d", year, seq)

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}
	idempotencyKey := pgtype.Text{}
	if req.IdempotencyKey != "" {
		idempotencyKey = pgtype.Text{String: req.IdempotencyKey, Valid: true}
	}

	// --- Insert order header with address snapshot ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:    orderNumber,
		OrderYear:      year,
		OrderSeq:       seq,
		UserID:         req.UserID,
		AddressID:      address.ID,
		Status:         enum.OrderStatusPending,
		PaymentStatus:  enum.PaymentStatusPending,
		PaymentMethod:  req.PaymentMethod,
		Subtotal:       decimalToNumeric(totals.Subtotal),
		ShippingCost:   decimalToNumeric(totals.ShippingCost),
		Tax:            decimalToNumeric(totals.Tax),
		Total:          decimalToNumeric(totals.Total),
		Notes:          notes,
		IdempotencyKey: idempotencyKey,

		ShippingFirstName:  address.FirstName,
		ShippingLastName:   address.LastName,
		ShippingStreet:     address.Street,
		ShippingCity:       address.City,
		ShippingState:      address.State,
		ShippingPostalCode: address.PostalCode,
		ShippingCountry:    address.Country,
		ShippingPhone:      address.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	var itemRows []database.OrderItem
	for _, pi := range items {
		pi.params.OrderID = order.ID
		row, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		itemRows = append(itemRows, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: itemRows}, nil
}

// --- Helpers ---

// isOrderNumberConflict checks for a unique constraint violation on the
// order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" &&
			(pgErr.ConstraintName == "orders_order_number_key" ||
				pgErr.ConstraintName == "orders_order_year_order_seq_key")
	}
	return false
}

func isIdempotencyConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_user_id_idempotency_key_key"
	}
	return false
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil {
		return decimal.Zero
	}
	s, ok := val.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
