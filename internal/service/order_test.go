package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nutreterra/api/internal/database"
	"github.com/nutreterra/api/internal/enum"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	committed  bool
	rolledBack bool
	commitErr  error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rolledBack = true
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner and hands out a fresh tx per Begin.
type mockTxBeginner struct {
	begins int
	last   *mockTx
	err    error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.begins++
	m.last = &mockTx{}
	return m.last, nil
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getAddressFn               func(ctx context.Context, arg database.GetAddressParams) (database.Address, error)
	getProductForOrderFn       func(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error)
	getNextOrderSeqFn          func(ctx context.Context, year int32) (int32, error)
	createOrderFn              func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn          func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderByIdempotencyKeyFn func(ctx context.Context, arg database.GetOrderByIdempotencyKeyParams) (database.Order, error)
	listOrderItemsByOrderFn    func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

func (m *mockOrderStore) GetAddress(ctx context.Context, arg database.GetAddressParams) (database.Address, error) {
	return m.getAddressFn(ctx, arg)
}
func (m *mockOrderStore) GetProductForOrder(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
	return m.getProductForOrderFn(ctx, id)
}
func (m *mockOrderStore) GetNextOrderSeq(ctx context.Context, year int32) (int32, error) {
	return m.getNextOrderSeqFn(ctx, year)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) GetOrderByIdempotencyKey(ctx context.Context, arg database.GetOrderByIdempotencyKeyParams) (database.Order, error) {
	return m.getOrderByIdempotencyKeyFn(ctx, arg)
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsByOrderFn(ctx, orderID)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func newTestService(store *mockOrderStore) (*OrderService, *mockTxBeginner) {
	pool := &mockTxBeginner{}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(store, pool, newStore), pool
}

type testProduct struct {
	price string
	stock int32
}

// defaultStore returns a mockOrderStore with sensible defaults.
// Individual tests override the functions they care about.
func defaultStore(userID, addressID uuid.UUID, products map[uuid.UUID]testProduct) *mockOrderStore {
	return &mockOrderStore{
		getAddressFn: func(ctx context.Context, arg database.GetAddressParams) (database.Address, error) {
			if arg.ID == addressID && arg.UserID == userID {
				return database.Address{
					ID:         addressID,
					UserID:     userID,
					FirstName:  "Laura",
					LastName:   "Vidal",
					Street:     "Calle Mayor 12",
					City:       "Madrid",
					State:      "Madrid",
					PostalCode: "28013",
					Country:    "ES",
					Phone:      "+34600123456",
					IsDefault:  true,
				}, nil
			}
			return database.Address{}, pgx.ErrNoRows
		},
		getProductForOrderFn: func(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
			p, ok := products[id]
			if !ok {
				return database.GetProductForOrderRow{}, pgx.ErrNoRows
			}
			return database.GetProductForOrderRow{
				ID:    id,
				Name:  "Bowl Mediterraneo",
				Price: makeNumeric(p.price),
				Stock: p.stock,
			}, nil
		},
		getNextOrderSeqFn: func(ctx context.Context, year int32) (int32, error) {
			return 1, nil
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:                 uuid.New(),
				OrderNumber:        arg.OrderNumber,
				OrderYear:          arg.OrderYear,
				OrderSeq:           arg.OrderSeq,
				UserID:             arg.UserID,
				AddressID:          arg.AddressID,
				Status:             arg.Status,
				PaymentStatus:      arg.PaymentStatus,
				PaymentMethod:      arg.PaymentMethod,
				Subtotal:           arg.Subtotal,
				ShippingCost:       arg.ShippingCost,
				Tax:                arg.Tax,
				Total:              arg.Total,
				Notes:              arg.Notes,
				IdempotencyKey:     arg.IdempotencyKey,
				ShippingFirstName:  arg.ShippingFirstName,
				ShippingLastName:   arg.ShippingLastName,
				ShippingStreet:     arg.ShippingStreet,
				ShippingCity:       arg.ShippingCity,
				ShippingState:      arg.ShippingState,
				ShippingPostalCode: arg.ShippingPostalCode,
				ShippingCountry:    arg.ShippingCountry,
				ShippingPhone:      arg.ShippingPhone,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:        uuid.New(),
				OrderID:   arg.OrderID,
				ProductID: arg.ProductID,
				Quantity:  arg.Quantity,
				Price:     arg.Price,
				Subtotal:  arg.Subtotal,
			}, nil
		},
		getOrderByIdempotencyKeyFn: func(ctx context.Context, arg database.GetOrderByIdempotencyKeyParams) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
		listOrderItemsByOrderFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
			return nil, nil
		},
	}
}

// =====================
// Validation tests
// =====================

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc, _ := newTestService(defaultStore(uuid.New(), uuid.New(), nil))

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    uuid.New(),
		AddressID: uuid.New().String(),
		Items:     nil,
	})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
}

func TestCreateOrder_InvalidAddressID(t *testing.T) {
	svc, _ := newTestService(defaultStore(uuid.New(), uuid.New(), nil))

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    uuid.New(),
		AddressID: "not-a-uuid",
		Items:     []CreateOrderItemRequest{{ProductID: uuid.New().String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrInvalidAddressID) {
		t.Fatalf("expected ErrInvalidAddressID, got: %v", err)
	}
}

func TestCreateOrder_AddressOfDifferentUser(t *testing.T) {
	owner := uuid.New()
	addressID := uuid.New()
	productID := uuid.New()
	store := defaultStore(owner, addressID, map[uuid.UUID]testProduct{productID: {"10.00", 10}})
	svc, pool := newTestService(store)

	// Scenario C: the address exists, but belongs to someone else.
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    uuid.New(),
		AddressID: addressID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: productID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got: %v", err)
	}
	if pool.last.committed {
		t.Fatal("transaction must not commit when the address check fails")
	}
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	productID := uuid.New()
	store := defaultStore(userID, addressID, map[uuid.UUID]testProduct{productID: {"10.00", 10}})
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    userID,
		AddressID: addressID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: productID.String(), Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	store := defaultStore(userID, addressID, nil)
	svc, _ := newTestService(store)

	missing := uuid.New()
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    userID,
		AddressID: addressID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: missing.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	productID := uuid.New()
	store := defaultStore(userID, addressID, map[uuid.UUID]testProduct{productID: {"10.00", 2}})
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    userID,
		AddressID: addressID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: productID.String(), Quantity: 3}},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
}

// =====================
// Pricing + snapshot tests
// =====================

func TestCreateOrder_PricingBelowThreshold(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	p1 := uuid.New()
	p2 := uuid.New()
	store := defaultStore(userID, addressID, map[uuid.UUID]testProduct{
		p1: {"10.00", 10},
		p2: {"5.00", 10},
	})
	svc, pool := newTestService(store)

	result, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    userID,
		AddressID: addressID.String(),
		Items: []CreateOrderItemRequest{
			{ProductID: p1.String(), Quantity: 2},
			{ProductID: p2.String(), Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o := result.Order
	if !numericEquals(o.Subtotal, "25.00") {
		t.Errorf("subtotal = %s, want 25.00", numericToDecimal(o.Subtotal))
	}
	if !numericEquals(o.ShippingCost, "3.80") {
		t.Errorf("shipping = %s, want 3.80", numericToDecimal(o.ShippingCost))
	}
	if !numericEquals(o.Tax, "5.25") {
		t.Errorf("tax = %s, want 5.25", numericToDecimal(o.Tax))
	}
	if !numericEquals(o.Total, "34.05") {
		t.Errorf("total = %s, want 34.05", numericToDecimal(o.Total))
	}
	if o.Status != enum.OrderStatusPending || o.PaymentStatus != enum.PaymentStatusPending {
		t.Errorf("initial state = %s/%s, want PENDING/pending", o.Status, o.PaymentStatus)
	}
	if o.PaymentMethod != enum.PaymentMethodDefault {
		t.Errorf("payment method = %s, want %s", o.PaymentMethod, enum.PaymentMethodDefault)
	}

	wantNumber := fmt.Sprintf("NT-%d-000001", time.Now().UTC().Year())
	if o.OrderNumber != wantNumber {
		t.Errorf("order number = %s, want %s", o.OrderNumber, wantNumber)
	}

	// Address fields must be snapshotted onto the order row.
	if o.ShippingStreet != "Calle Mayor 12" || o.ShippingCity != "Madrid" || o.ShippingPostalCode != "28013" {
		t.Errorf("address snapshot missing: %+v", o)
	}

	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(result.Items))
	}
	if !numericEquals(result.Items[0].Price, "10.00") || !numericEquals(result.Items[0].Subtotal, "20.00") {
		t.Errorf("item[0] price/subtotal snapshot wrong")
	}

	if !pool.last.committed {
		t.Fatal("transaction was not committed")
	}
}

func TestCreateOrder_FreeShippingAtThreshold(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	productID := uuid.New()
	store := defaultStore(userID, addressID, map[uuid.UUID]testProduct{productID: {"20.00", 10}})
	svc, _ := newTestService(store)

	result, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    userID,
		AddressID: addressID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: productID.String(), Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !numericEquals(result.Order.ShippingCost, "0.00") {
		t.Errorf("shipping = %s, want 0.00", numericToDecimal(result.Order.ShippingCost))
	}
	if !numericEquals(result.Order.Total, "72.60") {
		t.Errorf("total = %s, want 72.60", numericToDecimal(result.Order.Total))
	}
}

// =====================
// Atomicity + retry tests
// =====================

func TestCreateOrder_ItemFailureAbortsTransaction(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	p1 := uuid.New()
	p2 := uuid.New()
	store := defaultStore(userID, addressID, map[uuid.UUID]testProduct{
		p1: {"10.00", 10},
		p2: {"5.00", 10},
	})

	// First item insert succeeds, second blows up mid-transaction.
	calls := 0
	inner := store.createOrderItemFn
	store.createOrderItemFn = func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
		calls++
		if calls == 2 {
			return database.OrderItem{}, errors.New("connection reset")
		}
		return inner(ctx, arg)
	}
	svc, pool := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    userID,
		AddressID: addressID.String(),
		Items: []CreateOrderItemRequest{
			{ProductID: p1.String(), Quantity: 1},
			{ProductID: p2.String(), Quantity: 1},
		},
	})
	if err == nil {
		t.Fatal("expected error from failed item insert")
	}
	if pool.last.committed {
		t.Fatal("transaction must not commit after an item insert fails")
	}
	if !pool.last.rolledBack {
		t.Fatal("transaction must roll back after an item insert fails")
	}
}

func TestCreateOrder_RetriesOnOrderNumberConflict(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	productID := uuid.New()
	store := defaultStore(userID, addressID, map[uuid.UUID]testProduct{productID: {"10.00", 10}})

	attempts := 0
	inner := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		attempts++
		if attempts < 3 {
			return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
		}
		return inner(ctx, arg)
	}
	svc, pool := newTestService(store)

	result, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    userID,
		AddressID: addressID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: productID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if pool.begins != 3 {
		t.Errorf("transactions begun = %d, want 3", pool.begins)
	}
	if result.Replayed {
		t.Error("fresh order must not be marked as replayed")
	}
}

func TestCreateOrder_GivesUpAfterMaxRetries(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	productID := uuid.New()
	store := defaultStore(userID, addressID, map[uuid.UUID]testProduct{productID: {"10.00", 10}})
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	}
	svc, _ := newTestService(store)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:    userID,
		AddressID: addressID.String(),
		Items:     []CreateOrderItemRequest{{ProductID: productID.String(), Quantity: 1}},
	})
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		t.Fatalf("expected the final conflict error, got: %v", err)
	}
}

// =====================
// Idempotency tests
// =====================

func TestCreateOrder_IdempotencyReplay(t *testing.T) {
	userID := uuid.New()
	addressID := uuid.New()
	productID := uuid.New()
	store := defaultStore(userID, addressID, map[uuid.UUID]testProduct{productID: {"10.00", 10}})

	existing := database.Order{
		ID:             uuid.New(),
		OrderNumber:    "NT-2026-000042",
		UserID:         userID,
		IdempotencyKey: pgtype.Text{String: "client-key-1", Valid: true},
	}
	store.getOrderByIdempotencyKeyFn = func(ctx context.Context, arg database.GetOrderByIdempotencyKeyParams) (database.Order, error) {
		if arg.UserID == userID && arg.IdempotencyKey.String == "client-key-1" {
			return existing, nil
		}
		return database.Order{}, pgx.ErrNoRows
	}
	svc, pool := newTestService(store)

	result, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:         userID,
		AddressID:      addressID.String(),
		IdempotencyKey: "client-key-1",
		Items:          []CreateOrderItemRequest{{ProductID: productID.String(), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Replayed {
		t.Fatal("expected replayed result")
	}
	if result.Order.ID != existing.ID {
		t.Errorf("replay returned wrong order")
	}
	if pool.begins != 0 {
		t.Errorf("replay must not open a transaction, begun %d", pool.begins)
	}
}
