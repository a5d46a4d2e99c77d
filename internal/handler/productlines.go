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
)

// ProductLineStore defines the database methods needed by product line handlers.
type ProductLineStore interface {
	ListProductLines(ctx context.Context) ([]database.ProductLine, error)
	GetProductLineByID(ctx context.Context, id uuid.UUID) (database.ProductLine, error)
	CreateProductLine(ctx context.Context, arg database.CreateProductLineParams) (database.ProductLine, error)
	UpdateProductLine(ctx context.Context, arg database.UpdateProductLineParams) (database.ProductLine, error)
	DeleteProductLine(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// ProductLineHandler handles product line endpoints (Vital, Sport, ...).
type ProductLineHandler struct {
	store ProductLineStore
}

func NewProductLineHandler(store ProductLineStore) *ProductLineHandler {
	return &ProductLineHandler{store: store}
}

func (h *ProductLineHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

func (h *ProductLineHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type productLineRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type productLineResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProductLineResponse(pl database.ProductLine) productLineResponse {
	resp := productLineResponse{
		ID:        pl.ID,
		Name:      pl.Name,
		Slug:      pl.Slug,
		CreatedAt: pl.CreatedAt,
		UpdatedAt: pl.UpdatedAt,
	}
	if pl.Description.Valid {
		resp.Description = &pl.Description.String
	}
	return resp
}

func (h *ProductLineHandler) List(w http.ResponseWriter, r *http.Request) {
	lines, err := h.store.ListProductLines(r.Context())
	if err != nil {
		log.Printf("ERROR: list product lines: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]productLineResponse, len(lines))
	for i, pl := range lines {
		resp[i] = toProductLineResponse(pl)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductLineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product line ID")
		return
	}

	line, err := h.store.GetProductLineByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product line not found")
			return
		}
		log.Printf("ERROR: get product line: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toProductLineResponse(line))
}

func (h *ProductLineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}

	line, err := h.store.CreateProductLine(r.Context(), database.CreateProductLineParams{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: textFromString(req.Description),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "slug already exists")
			return
		}
		log.Printf("ERROR: create product line: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toProductLineResponse(line))
}

func (h *ProductLineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product line ID")
		return
	}

	var req productLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}

	line, err := h.store.UpdateProductLine(r.Context(), database.UpdateProductLineParams{
		ID:          id,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: textFromString(req.Description),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product line not found")
			return
		}
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "slug already exists")
			return
		}
		log.Printf("ERROR: update product line: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toProductLineResponse(line))
}

func (h *ProductLineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product line ID")
		return
	}

	if _, err := h.store.DeleteProductLine(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product line not found")
			return
		}
		log.Printf("ERROR: delete product line: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
