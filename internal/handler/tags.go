package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nutreterra/api/internal/database"
)

// TagStore defines the database methods needed by tag handlers.
type TagStore interface {
	ListTags(ctx context.Context) ([]database.Tag, error)
	CreateTag(ctx context.Context, arg database.CreateTagParams) (database.Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// TagHandler handles dietary tag endpoints (vegan, gluten-free, ...).
type TagHandler struct {
	store TagStore
}

func NewTagHandler(store TagStore) *TagHandler {
	return &TagHandler{store: store}
}

func (h *TagHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

func (h *TagHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

type tagRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type tagResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

func toTagResponse(t database.Tag) tagResponse {
	return tagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug}
}

func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.store.ListTags(r.Context())
	if err != nil {
		log.Printf("ERROR: list tags: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]tagResponse, len(tags))
	for i, t := range tags {
		resp[i] = toTagResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}

	tag, err := h.store.CreateTag(r.Context(), database.CreateTagParams{Name: req.Name, Slug: req.Slug})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "slug already exists")
			return
		}
		log.Printf("ERROR: create tag: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toTagResponse(tag))
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tag ID")
		return
	}

	if _, err := h.store.DeleteTag(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "tag not found")
			return
		}
		log.Printf("ERROR: delete tag: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
