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
	"github.com/nutreterra/api/internal/database"
	"github.com/nutreterra/api/internal/middleware"
)

// TxBeginner starts database transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AddressStore defines the database methods needed by address handlers.
type AddressStore interface {
	ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]database.Address, error)
	GetAddress(ctx context.Context, arg database.GetAddressParams) (database.Address, error)
	CountAddressesByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	UnsetDefaultAddresses(ctx context.Context, userID uuid.UUID) error
	CreateAddress(ctx context.Context, arg database.CreateAddressParams) (database.Address, error)
	UpdateAddress(ctx context.Context, arg database.UpdateAddressParams) (database.Address, error)
	DeleteAddress(ctx context.Context, arg database.DeleteAddressParams) (bool, error)
	GetOldestAddress(ctx context.Context, userID uuid.UUID) (database.Address, error)
	SetDefaultAddress(ctx context.Context, id uuid.UUID) (database.Address, error)
}

// NewAddressStore builds an AddressStore bound to a transaction.
type NewAddressStore func(db database.DBTX) AddressStore

// AddressHandler handles a user's address book. Writes run inside a
// transaction so the single-default invariant holds under concurrency.
type AddressHandler struct {
	store    AddressStore
	pool     TxBeginner
	newStore NewAddressStore
}

func NewAddressHandler(store AddressStore, pool TxBeginner, newStore NewAddressStore) *AddressHandler {
	return &AddressHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes expects to be mounted at /users/{uid}/addresses.
func (h *AddressHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// targetUser resolves the {uid} path segment and enforces owner-or-admin.
func targetUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return uuid.Nil, false
	}
	if !middleware.CanAccess(middleware.ClaimsFromContext(r.Context()), userID) {
		writeError(w, http.StatusForbidden, "access denied")
		return uuid.Nil, false
	}
	return userID, true
}

// --- Request / Response types ---

type addressRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"is_default"`
}

func (req *addressRequest) validate() string {
	switch {
	case req.FirstName == "":
		return "first_name is required"
	case req.LastName == "":
		return "last_name is required"
	case req.Street == "":
		return "street is required"
	case req.City == "":
		return "city is required"
	case req.PostalCode == "":
		return "postal_code is required"
	case req.Country == "":
		return "country is required"
	}
	return ""
}

type addressResponse struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Phone      string    `json:"phone"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toAddressResponse(a database.Address) addressResponse {
	return addressResponse{
		ID:         a.ID,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
		IsDefault:  a.IsDefault,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// --- Handlers ---

// List returns the user's addresses, default first.
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := targetUser(w, r)
	if !ok {
		return
	}

	addresses, err := h.store.ListAddressesByUser(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: list addresses: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]addressResponse, len(addresses))
	for i, a := range addresses {
		resp[i] = toAddressResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := targetUser(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address ID")
		return
	}

	address, err := h.store.GetAddress(r.Context(), database.GetAddressParams{ID: id, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "address not found")
			return
		}
		log.Printf("ERROR: get address: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toAddressResponse(address))
}

// Create adds an address. The user's first address becomes the default
// regardless of the request flag.
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := targetUser(w, r)
	if !ok {
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer tx.Rollback(r.Context())
	store := h.newStore(tx)

	count, err := store.CountAddressesByUser(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: count addresses: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	isDefault := req.IsDefault || count == 0
	if isDefault {
		if err := store.UnsetDefaultAddresses(r.Context(), userID); err != nil {
			log.Printf("ERROR: unset default addresses: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	address, err := store.CreateAddress(r.Context(), database.CreateAddressParams{
		UserID:     userID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
		IsDefault:  isDefault,
	})
	if err != nil {
		log.Printf("ERROR: create address: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit create address: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toAddressResponse(address))
}

// Update modifies an address. Promoting it to default demotes the others.
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := targetUser(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address ID")
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer tx.Rollback(r.Context())
	store := h.newStore(tx)

	current, err := store.GetAddress(r.Context(), database.GetAddressParams{ID: id, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "address not found")
			return
		}
		log.Printf("ERROR: get address: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The default flag can only be granted here, not revoked; revoking
	// would leave the user with no default.
	isDefault := req.IsDefault || current.IsDefault
	if req.IsDefault && !current.IsDefault {
		if err := store.UnsetDefaultAddresses(r.Context(), userID); err != nil {
			log.Printf("ERROR: unset default addresses: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	address, err := store.UpdateAddress(r.Context(), database.UpdateAddressParams{
		ID:         id,
		UserID:     userID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Phone:      req.Phone,
		IsDefault:  isDefault,
	})
	if err != nil {
		log.Printf("ERROR: update address: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit update address: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toAddressResponse(address))
}

// Delete removes an address. Deleting the default promotes the oldest
// remaining address in the same transaction.
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := targetUser(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address ID")
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer tx.Rollback(r.Context())
	store := h.newStore(tx)

	wasDefault, err := store.DeleteAddress(r.Context(), database.DeleteAddressParams{ID: id, UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "address not found")
			return
		}
		log.Printf("ERROR: delete address: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if wasDefault {
		oldest, err := store.GetOldestAddress(r.Context(), userID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Last address deleted; nothing to promote.
		case err != nil:
			log.Printf("ERROR: get oldest address: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		default:
			if _, err := store.SetDefaultAddress(r.Context(), oldest.ID); err != nil {
				log.Printf("ERROR: promote default address: %v", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit delete address: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
