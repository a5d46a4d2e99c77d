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
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context, arg database.ListProductsParams) ([]database.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (database.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListTagsByProduct(ctx context.Context, productID uuid.UUID) ([]database.Tag, error)
	AddProductTag(ctx context.Context, arg database.AddProductTagParams) error
	ClearProductTags(ctx context.Context, productID uuid.UUID) error
}

// ProductHandler handles catalog product endpoints.
type ProductHandler struct {
	store ProductStore
}

func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers the public read endpoints.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{slug}", h.Get)
}

// RegisterAdminRoutes registers the admin write endpoints.
func (h *ProductHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type productRequest struct {
	CategoryID    string   `json:"category_id"`
	ProductLineID string   `json:"product_line_id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Description   string   `json:"description"`
	Price         string   `json:"price"`
	Stock         int32    `json:"stock"`
	ImageURL      string   `json:"image_url"`
	Featured      bool     `json:"featured"`
	Calories      string   `json:"calories"`
	Protein       string   `json:"protein"`
	Carbohydrates string   `json:"carbohydrates"`
	Fat           string   `json:"fat"`
	TagIDs        []string `json:"tag_ids"`
}

type productResponse struct {
	ID            uuid.UUID     `json:"id"`
	CategoryID    uuid.UUID     `json:"category_id"`
	ProductLineID *uuid.UUID    `json:"product_line_id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Description   *string       `json:"description"`
	Price         string        `json:"price"`
	Stock         int32         `json:"stock"`
	ImageURL      *string       `json:"image_url"`
	Featured      bool          `json:"featured"`
	Active        bool          `json:"active"`
	Calories      *string       `json:"calories"`
	Protein       *string       `json:"protein"`
	Carbohydrates *string       `json:"carbohydrates"`
	Fat           *string       `json:"fat"`
	Tags          []tagResponse `json:"tags,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:            p.ID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Slug:          p.Slug,
		Price:         moneyString(p.Price),
		Stock:         p.Stock,
		Featured:      p.Featured,
		Active:        p.Active,
		Calories:      numericString(p.Calories),
		Protein:       numericString(p.Protein),
		Carbohydrates: numericString(p.Carbohydrates),
		Fat:           numericString(p.Fat),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.ProductLineID.Valid {
		id := uuid.UUID(p.ProductLineID.Bytes)
		resp.ProductLineID = &id
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.ImageUrl.Valid {
		resp.ImageURL = &p.ImageUrl.String
	}
	return resp
}

// --- Helpers ---

// parseNutrition accepts an optional non-negative numeric string.
func parseNutrition(s string) (pgtype.Numeric, error) {
	if s == "" {
		return pgtype.Numeric{}, nil
	}
	return parseMoney(s)
}

func (h *ProductHandler) buildParams(w http.ResponseWriter, req productRequest) (database.CreateProductParams, bool) {
	if req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return database.CreateProductParams{}, false
	}
	if req.CategoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id is required")
		return database.CreateProductParams{}, false
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category_id")
		return database.CreateProductParams{}, false
	}

	productLineID := pgtype.UUID{}
	if req.ProductLineID != "" {
		id, err := uuid.Parse(req.ProductLineID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid product_line_id")
			return database.CreateProductParams{}, false
		}
		productLineID = pgtype.UUID{Bytes: id, Valid: true}
	}

	if req.Price == "" {
		writeError(w, http.StatusBadRequest, "price is required")
		return database.CreateProductParams{}, false
	}
	price, err := parseMoney(req.Price)
	if err != nil {
		if errors.Is(err, errNegativeAmount) {
			writeError(w, http.StatusBadRequest, "price must be >= 0")
		} else {
			writeError(w, http.StatusBadRequest, "invalid price")
		}
		return database.CreateProductParams{}, false
	}

	if req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "stock must be >= 0")
		return database.CreateProductParams{}, false
	}

	var nutrition [4]pgtype.Numeric
	for i, s := range []string{req.Calories, req.Protein, req.Carbohydrates, req.Fat} {
		n, err := parseNutrition(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid nutrition value")
			return database.CreateProductParams{}, false
		}
		nutrition[i] = n
	}

	return database.CreateProductParams{
		CategoryID:    categoryID,
		ProductLineID: productLineID,
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   textFromString(req.Description),
		Price:         price,
		Stock:         req.Stock,
		ImageUrl:      textFromString(req.ImageURL),
		Featured:      req.Featured,
		Calories:      nutrition[0],
		Protein:       nutrition[1],
		Carbohydrates: nutrition[2],
		Fat:           nutrition[3],
	}, true
}

func (h *ProductHandler) syncTags(ctx context.Context, productID uuid.UUID, tagIDs []string) error {
	if err := h.store.ClearProductTags(ctx, productID); err != nil {
		return err
	}
	for _, raw := range tagIDs {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		if err := h.store.AddProductTag(ctx, database.AddProductTagParams{ProductID: productID, TagID: tagID}); err != nil {
			return err
		}
	}
	return nil
}

func (h *ProductHandler) attachTags(ctx context.Context, resp *productResponse) {
	tags, err := h.store.ListTagsByProduct(ctx, resp.ID)
	if err != nil {
		log.Printf("ERROR: list product tags: %v", err)
		return
	}
	resp.Tags = make([]tagResponse, len(tags))
	for i, t := range tags {
		resp.Tags[i] = toTagResponse(t)
	}
}

// --- Handlers ---

// List returns active products, filterable by ?category=, ?featured=true,
// and ?search=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := parsePagination(r, 100)

	products, err := h.store.ListProducts(r.Context(), database.ListProductsParams{
		CategorySlug: q.Get("category"),
		Featured:     q.Get("featured") == "true",
		Search:       q.Get("search"),
		Limit:        limit,
	})
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single active product by slug, with its tags.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.store.GetProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toProductResponse(product)
	h.attachTags(r.Context(), &resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params, ok := h.buildParams(w, req)
	if !ok {
		return
	}

	product, err := h.store.CreateProduct(r.Context(), params)
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "slug already exists")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "invalid category_id or product_line_id")
			return
		}
		log.Printf("ERROR: create product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if len(req.TagIDs) > 0 {
		if err := h.syncTags(r.Context(), product.ID, req.TagIDs); err != nil {
			log.Printf("ERROR: sync product tags: %v", err)
		}
	}

	resp := toProductResponse(product)
	h.attachTags(r.Context(), &resp)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params, ok := h.buildParams(w, req)
	if !ok {
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:            id,
		CategoryID:    params.CategoryID,
		ProductLineID: params.ProductLineID,
		Name:          params.Name,
		Slug:          params.Slug,
		Description:   params.Description,
		Price:         params.Price,
		Stock:         params.Stock,
		ImageUrl:      params.ImageUrl,
		Featured:      params.Featured,
		Calories:      params.Calories,
		Protein:       params.Protein,
		Carbohydrates: params.Carbohydrates,
		Fat:           params.Fat,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "slug already exists")
			return
		}
		if isForeignKeyViolation(err) {
			writeError(w, http.StatusBadRequest, "invalid category_id or product_line_id")
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.TagIDs != nil {
		if err := h.syncTags(r.Context(), product.ID, req.TagIDs); err != nil {
			log.Printf("ERROR: sync product tags: %v", err)
		}
	}

	resp := toProductResponse(product)
	h.attachTags(r.Context(), &resp)
	writeJSON(w, http.StatusOK, resp)
}

// Delete soft-deletes a product so historical orders keep their reference.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if _, err := h.store.SoftDeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
