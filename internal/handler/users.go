package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nutreterra/api/internal/auth"
	"github.com/nutreterra/api/internal/database"
	"github.com/nutreterra/api/internal/enum"
	"github.com/nutreterra/api/internal/middleware"
)

// UserStore defines the database methods needed by user handlers.
type UserStore interface {
	ListUsers(ctx context.Context, arg database.ListUsersParams) ([]database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// UserHandler handles user profile and admin user management endpoints.
type UserHandler struct {
	store UserStore
}

func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// RegisterRoutes registers the owner-or-admin profile endpoints.
// Expects to be mounted at /users.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{uid}", h.Get)
	r.Put("/{uid}", h.Update)
}

// RegisterAdminRoutes registers listing and deletion, admin only.
func (h *UserHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Delete("/{uid}", h.Delete)
}

type updateUserRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// List returns users, newest first.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 50)

	users, err := h.store.ListUsers(r.Context(), database.ListUsersParams{Limit: limit, Offset: offset})
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a user profile. Owner-or-admin.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if !middleware.CanAccess(claims, id) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: get user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Update modifies a user profile. Owner-or-admin; only admins may change
// roles, and a password change requires the account holder to confirm the
// current password.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if !middleware.CanAccess(claims, id) {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: get user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	params := database.UpdateUserParams{
		ID:             id,
		Name:           existing.Name,
		Email:          existing.Email,
		Role:           existing.Role,
		HashedPassword: existing.HashedPassword,
	}

	if req.Name != "" {
		params.Name = req.Name
	}
	if req.Email != "" {
		params.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.Role != "" && req.Role != existing.Role {
		if claims.Role != enum.UserRoleAdmin {
			writeError(w, http.StatusForbidden, "only admins can change roles")
			return
		}
		if !enum.IsValidUserRole(req.Role) {
			writeError(w, http.StatusBadRequest, "invalid role")
			return
		}
		params.Role = req.Role
	}

	// Password changes apply only to the caller's own account.
	if req.NewPassword != "" && claims.UserID == id {
		if req.CurrentPassword == "" {
			writeError(w, http.StatusBadRequest, "current password is required")
			return
		}
		if err := auth.CheckPassword(existing.HashedPassword, req.CurrentPassword); err != nil {
			writeError(w, http.StatusBadRequest, "current password is incorrect")
			return
		}
		if len(req.NewPassword) < 6 {
			writeError(w, http.StatusBadRequest, "new password must be at least 6 characters")
			return
		}
		hashed, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			log.Printf("ERROR: hash password: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		params.HashedPassword = hashed
	}

	user, err := h.store.UpdateUser(r.Context(), params)
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email already in use")
			return
		}
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: update user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	if _, err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: delete user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parsePagination reads limit/offset query params with sane bounds.
func parsePagination(r *http.Request, defaultLimit int32) (limit, offset int32) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = int32(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}
