package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/nutreterra/api/internal/auth"
	"github.com/nutreterra/api/internal/enum"
	"github.com/nutreterra/api/internal/session"
)

type contextKey string

const claimsKey contextKey = "claims"

// SessionResolver resolves a session cookie value to session data.
// Satisfied by *session.Store.
type SessionResolver interface {
	Get(ctx context.Context, id string) (session.Data, error)
}

// Authenticate accepts either a Bearer JWT or a session cookie. The bearer
// header wins when both are present. sessions may be nil, in which case only
// tokens are accepted.
func Authenticate(jwtSecret string, sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header := r.Header.Get("Authorization"); header != "" {
				parts := strings.SplitN(header, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
					return
				}

				claims, err := auth.ValidateToken(jwtSecret, parts[1])
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
					return
				}

				ctx := context.WithValue(r.Context(), claimsKey, claims)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if sessions != nil {
				if cookie, err := r.Cookie(session.CookieName); err == nil {
					data, err := sessions.Get(r.Context(), cookie.Value)
					if err != nil {
						writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid session"})
						return
					}

					claims := &auth.Claims{UserID: data.UserID, Email: data.Email, Role: data.Role}
					ctx := context.WithValue(r.Context(), claimsKey, claims)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing credentials"})
		})
	}
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
		})
	}
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// CanAccess reports whether the caller may touch a resource owned by ownerID.
// Admins may touch anything.
func CanAccess(claims *auth.Claims, ownerID uuid.UUID) bool {
	if claims == nil {
		return false
	}
	return claims.Role == enum.UserRoleAdmin || claims.UserID == ownerID
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
