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
)

// MenuStore defines the database methods needed by menu handlers.
type MenuStore interface {
	CreateMenu(ctx context.Context, arg database.CreateMenuParams) (database.Menu, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	GetMenu(ctx context.Context, id uuid.UUID) (database.Menu, error)
	ListMenus(ctx context.Context, arg database.ListMenusParams) ([]database.Menu, error)
	ListMenuItemsByMenu(ctx context.Context, menuID uuid.UUID) ([]database.MenuItem, error)
	UpdateMenu(ctx context.Context, arg database.UpdateMenuParams) (database.Menu, error)
	DeleteMenuItemsByMenu(ctx context.Context, menuID uuid.UUID) error
	DeleteMenu(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// NewMenuStore builds a MenuStore bound to a transaction.
type NewMenuStore func(db database.DBTX) MenuStore

// MenuHandler handles weekly meal plan endpoints. Item replacement runs
// inside a transaction so a plan is never observed half-written.
type MenuHandler struct {
	store    MenuStore
	pool     TxBeginner
	newStore NewMenuStore
}

func NewMenuHandler(store MenuStore, pool TxBeginner, newStore NewMenuStore) *MenuHandler {
	return &MenuHandler{store: store, pool: pool, newStore: newStore}
}

func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type menuItemRequest struct {
	ProductID string `json:"product_id"`
	Day       int32  `json:"day"`
	MealType  string `json:"meal_type"`
	Position  int32  `json:"position"`
	Quantity  int32  `json:"quantity"`
	Notes     string `json:"notes"`
}

type menuRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	IsTemplate  bool              `json:"is_template"`
	IsPublic    bool              `json:"is_public"`
	StartDate   string            `json:"start_date"`
	EndDate     string            `json:"end_date"`
	Items       []menuItemRequest `json:"items"`
}

type menuItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Day       int32     `json:"day"`
	MealType  string    `json:"meal_type"`
	Position  int32     `json:"position"`
	Quantity  int32     `json:"quantity"`
	Notes     *string   `json:"notes"`
}

type menuResponse struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"user_id"`
	Name        string             `json:"name"`
	Description *string            `json:"description"`
	IsTemplate  bool               `json:"is_template"`
	IsPublic    bool               `json:"is_public"`
	StartDate   *string            `json:"start_date"`
	EndDate     *string            `json:"end_date"`
	Items       []menuItemResponse `json:"items,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func toMenuResponse(m database.Menu, items []database.MenuItem) menuResponse {
	resp := menuResponse{
		ID:         m.ID,
		UserID:     m.UserID,
		Name:       m.Name,
		IsTemplate: m.IsTemplate,
		IsPublic:   m.IsPublic,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Description.Valid {
		resp.Description = &m.Description.String
	}
	if m.StartDate.Valid {
		s := m.StartDate.Time.Format("2006-01-02")
		resp.StartDate = &s
	}
	if m.EndDate.Valid {
		s := m.EndDate.Time.Format("2006-01-02")
		resp.EndDate = &s
	}
	if items != nil {
		resp.Items = make([]menuItemResponse, len(items))
		for i, it := range items {
			item := menuItemResponse{
				ID:        it.ID,
				ProductID: it.ProductID,
				Day:       it.Day,
				MealType:  it.MealType,
				Position:  it.Position,
				Quantity:  it.Quantity,
			}
			if it.Notes.Valid {
				item.Notes = &it.Notes.String
			}
			resp.Items[i] = item
		}
	}
	return resp
}

// --- Helpers ---

func parseDate(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}, err
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

type menuItemParams struct {
	productID uuid.UUID
	req       menuItemRequest
}

func validateMenuItems(items []menuItemRequest) ([]menuItemParams, string) {
	parsed := make([]menuItemParams, len(items))
	for i, it := range items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, "invalid product_id"
		}
		if it.Day < 1 || it.Day > 7 {
			return nil, "day must be between 1 and 7"
		}
		if !enum.IsValidMealType(it.MealType) {
			return nil, "invalid meal_type"
		}
		if it.Quantity < 1 {
			return nil, "quantity must be >= 1"
		}
		parsed[i] = menuItemParams{productID: productID, req: it}
	}
	return parsed, ""
}

func insertMenuItems(ctx context.Context, store MenuStore, menuID uuid.UUID, items []menuItemParams) ([]database.MenuItem, error) {
	created := make([]database.MenuItem, len(items))
	for i, it := range items {
		item, err := store.CreateMenuItem(ctx, database.CreateMenuItemParams{
			MenuID:    menuID,
			ProductID: it.productID,
			Day:       it.req.Day,
			MealType:  it.req.MealType,
			Position:  it.req.Position,
			Quantity:  it.req.Quantity,
			Notes:     textFromString(it.req.Notes),
		})
		if err != nil {
			return nil, err
		}
		created[i] = item
	}
	return created, nil
}

// --- Handlers ---

// List returns the caller's menus. ?public=true lists shared menus from
// any user, ?templates=true narrows to reusable templates.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	q := r.URL.Query()

	params := database.ListMenusParams{
		UserID:     pgtype.UUID{Bytes: claims.UserID, Valid: true},
		Templates:  q.Get("templates") == "true",
		PublicOnly: false,
	}
	if q.Get("public") == "true" {
		params.UserID = pgtype.UUID{}
		params.PublicOnly = true
	}

	menus, err := h.store.ListMenus(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list menus: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]menuResponse, len(menus))
	for i, m := range menus {
		resp[i] = toMenuResponse(m, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a menu with its items. Private menus are owner-or-admin only.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu ID")
		return
	}

	menu, err := h.store.GetMenu(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "menu not found")
			return
		}
		log.Printf("ERROR: get menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !menu.IsPublic && !middleware.CanAccess(claims, menu.UserID) {
		writeError(w, http.StatusNotFound, "menu not found")
		return
	}

	items, err := h.store.ListMenuItemsByMenu(r.Context(), menu.ID)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toMenuResponse(menu, items))
}

// Create stores a menu and its items in one transaction.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req menuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	}

	items, msg := validateMenuItems(req.Items)
	if msg != "" {
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

	menu, err := store.CreateMenu(r.Context(), database.CreateMenuParams{
		UserID:      claims.UserID,
		Name:        req.Name,
		Description: textFromString(req.Description),
		IsTemplate:  req.IsTemplate,
		IsPublic:    req.IsPublic,
		StartDate:   startDate,
		EndDate:     endDate,
	})
	if err != nil {
		log.Printf("ERROR: create menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	created, err := insertMenuItems(r.Context(), store, menu.ID, items)
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "unknown product in items")
			return
		}
		log.Printf("ERROR: create menu items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit create menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toMenuResponse(menu, created))
}

// Update rewrites the menu header and replaces its items atomically.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu ID")
		return
	}

	var req menuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return
	}

	items, msg := validateMenuItems(req.Items)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	current, err := h.store.GetMenu(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "menu not found")
			return
		}
		log.Printf("ERROR: get menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !middleware.CanAccess(claims, current.UserID) {
		writeError(w, http.StatusNotFound, "menu not found")
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

	menu, err := store.UpdateMenu(r.Context(), database.UpdateMenuParams{
		ID:          id,
		Name:        req.Name,
		Description: textFromString(req.Description),
		IsTemplate:  req.IsTemplate,
		IsPublic:    req.IsPublic,
		StartDate:   startDate,
		EndDate:     endDate,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "menu not found")
			return
		}
		log.Printf("ERROR: update menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := store.DeleteMenuItemsByMenu(r.Context(), menu.ID); err != nil {
		log.Printf("ERROR: clear menu items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	created, err := insertMenuItems(r.Context(), store, menu.ID, items)
	if err != nil {
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "unknown product in items")
			return
		}
		log.Printf("ERROR: create menu items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit update menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toMenuResponse(menu, created))
}

// Delete removes a menu with its items.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid menu ID")
		return
	}

	current, err := h.store.GetMenu(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "menu not found")
			return
		}
		log.Printf("ERROR: get menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !middleware.CanAccess(claims, current.UserID) {
		writeError(w, http.StatusNotFound, "menu not found")
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

	if err := store.DeleteMenuItemsByMenu(r.Context(), id); err != nil {
		log.Printf("ERROR: delete menu items: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if _, err := store.DeleteMenu(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "menu not found")
			return
		}
		log.Printf("ERROR: delete menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit delete menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
