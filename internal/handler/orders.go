package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nutreterra/api/internal/database"
	"github.com/nutreterra/api/internal/enum"
	"github.com/nutreterra/api/internal/middleware"
	"github.com/nutreterra/api/internal/service"
)

// OrderCreator creates orders. Satisfied by *service.OrderService.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// OrderReadStore defines the database methods needed to read and update orders.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// OrderNotifier fans out order events. Implementations must be non-blocking;
// a nil notifier disables notifications.
type OrderNotifier interface {
	OrderCreated(order database.Order)
	OrderStatusChanged(order database.Order)
}

// OrderHandler handles order placement, retrieval, and admin updates.
type OrderHandler struct {
	svc      OrderCreator
	store    OrderReadStore
	notifier OrderNotifier
}

func NewOrderHandler(svc OrderCreator, store OrderReadStore, notifier OrderNotifier) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, notifier: notifier}
}

// RegisterRoutes registers the authenticated order endpoints.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers the admin-only order endpoints.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Put("/{id}", h.UpdateStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	AddressID     string                   `json:"address_id"`
	PaymentMethod string                   `json:"payment_method"`
	Notes         string                   `json:"notes"`
	Items         []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type updateOrderStatusRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Price     string    `json:"price"`
	Subtotal  string    `json:"subtotal"`
}

type orderShippingResponse struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type orderResponse struct {
	ID            uuid.UUID             `json:"id"`
	OrderNumber   string                `json:"order_number"`
	UserID        uuid.UUID             `json:"user_id"`
	Status        string                `json:"status"`
	PaymentStatus string                `json:"payment_status"`
	PaymentMethod string                `json:"payment_method"`
	Subtotal      string                `json:"subtotal"`
	ShippingCost  string                `json:"shipping_cost"`
	Tax           string                `json:"tax"`
	Total         string                `json:"total"`
	Notes         *string               `json:"notes"`
	Shipping      orderShippingResponse `json:"shipping"`
	Items         []orderItemResponse   `json:"items,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		Subtotal:      moneyString(o.Subtotal),
		ShippingCost:  moneyString(o.ShippingCost),
		Tax:           moneyString(o.Tax),
		Total:         moneyString(o.Total),
		Shipping: orderShippingResponse{
			FirstName:  o.ShippingFirstName,
			LastName:   o.ShippingLastName,
			Street:     o.ShippingStreet,
			City:       o.ShippingCity,
			State:      o.ShippingState,
			PostalCode: o.ShippingPostalCode,
			Country:    o.ShippingCountry,
			Phone:      o.ShippingPhone,
		},
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if items != nil {
		resp.Items = make([]orderItemResponse, len(items))
		for i, it := range items {
			resp.Items[i] = orderItemResponse{
				ID:        it.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     moneyString(it.Price),
				Subtotal:  moneyString(it.Subtotal),
			}
		}
	}
	return resp
}

// --- Handlers ---

// Create places an order for the authenticated user. An Idempotency-Key
// header makes retries safe: a replayed request answers 200 with the
// original order instead of creating a duplicate.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.CreateOrderItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		UserID:         claims.UserID,
		AddressID:      req.AddressID,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Items:          items,
	})
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	} else if h.notifier != nil {
		h.notifier.OrderCreated(result.Order)
	}

	writeJSON(w, status, toOrderResponse(result.Order, result.Items))
}

func (h *OrderHandler) writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidProductID),
		errors.Is(err, service.ErrInvalidAddressID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAddressNotFound),
		errors.Is(err, service.ErrProductNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("ERROR: create order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// List returns the caller's orders, newest first. Admins may pass
// ?user_id= to inspect a specific user or ?all=true for every order.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	q := r.URL.Query()

	userID := pgtype.UUID{Bytes: claims.UserID, Valid: true}
	if claims.Role == enum.UserRoleAdmin {
		switch {
		case q.Get("user_id") != "":
			id, err := uuid.Parse(q.Get("user_id"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid user_id")
				return
			}
			userID = pgtype.UUID{Bytes: id, Valid: true}
		case q.Get("all") == "true":
			userID = pgtype.UUID{}
		}
	}

	status := q.Get("status")
	if status != "" && !service.IsValidStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	limit, offset := parsePagination(r, 50)
	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		UserID: userID,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single order with its items. Customers see only their own.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !middleware.CanAccess(claims, order.UserID) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

// UpdateStatus transitions order and/or payment status. The write is
// conditional on the state the transition was validated against, so a
// concurrent update answers 409 instead of clobbering.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" && req.PaymentStatus == "" {
		writeError(w, http.StatusBadRequest, "status or payment_status is required")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	newStatus := order.Status
	if req.Status != "" {
		if err := service.ValidateStatusTransition(order.Status, req.Status); err != nil {
			if errors.Is(err, service.ErrUnknownStatus) {
				writeError(w, http.StatusBadRequest, "unknown status")
				return
			}
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		newStatus = req.Status
	}

	newPaymentStatus := order.PaymentStatus
	if req.PaymentStatus != "" {
		if err := service.ValidatePaymentTransition(order.PaymentStatus, req.PaymentStatus); err != nil {
			if errors.Is(err, service.ErrUnknownPaymentStatus) {
				writeError(w, http.StatusBadRequest, "unknown payment_status")
				return
			}
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		newPaymentStatus = req.PaymentStatus
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:                    order.ID,
		Status:                newStatus,
		PaymentStatus:         newPaymentStatus,
		ExpectedStatus:        order.Status,
		ExpectedPaymentStatus: order.PaymentStatus,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusConflict, "order was modified concurrently")
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.notifier != nil && (updated.Status != order.Status || updated.PaymentStatus != order.PaymentStatus) {
		h.notifier.OrderStatusChanged(updated)
	}

	writeJSON(w, http.StatusOK, toOrderResponse(updated, nil))
}
