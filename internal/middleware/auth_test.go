package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/nutreterra/api/internal/auth"
	"github.com/nutreterra/api/internal/enum"
	"github.com/nutreterra/api/internal/middleware"
	"github.com/nutreterra/api/internal/session"
)

const testSecret = "test-secret"

type mockSessions struct {
	data map[string]session.Data
}

func (m *mockSessions) Get(ctx context.Context, id string) (session.Data, error) {
	d, ok := m.data[id]
	if !ok {
		return session.Data{}, errors.New("session not found")
	}
	return d, nil
}

func TestAuthenticate_ValidToken(t *testing.T) {
	userID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, userID, "laura@example.com", enum.UserRoleCustomer)

	handler := middleware.Authenticate(testSecret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("expected claims in context")
		}
		if claims.UserID != userID {
			t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	handler := middleware.Authenticate(testSecret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	handler := middleware.Authenticate(testSecret, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticate_SessionCookie(t *testing.T) {
	userID := uuid.New()
	sessions := &mockSessions{data: map[string]session.Data{
		"sess-1": {UserID: userID, Email: "laura@example.com", Role: enum.UserRoleCustomer},
	}}

	handler := middleware.Authenticate(testSecret, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("expected claims in context")
		}
		if claims.UserID != userID {
			t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "sess-1"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthenticate_ExpiredSession(t *testing.T) {
	sessions := &mockSessions{data: map[string]session.Data{}}

	handler := middleware.Authenticate(testSecret, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "gone"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticate_BearerWinsOverCookie(t *testing.T) {
	tokenUser := uuid.New()
	cookieUser := uuid.New()
	token, _ := auth.GenerateToken(testSecret, tokenUser, "token@example.com", enum.UserRoleCustomer)
	sessions := &mockSessions{data: map[string]session.Data{
		"sess-1": {UserID: cookieUser, Email: "cookie@example.com", Role: enum.UserRoleCustomer},
	}}

	handler := middleware.Authenticate(testSecret, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims.UserID != tokenUser {
			t.Errorf("bearer token should take precedence, got user %v", claims.UserID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "sess-1"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRequireRole(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), "laura@example.com", enum.UserRoleCustomer)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := middleware.Authenticate(testSecret, nil)(middleware.RequireRole(enum.UserRoleAdmin)(inner))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCanAccess(t *testing.T) {
	ownerID := uuid.New()

	owner := &auth.Claims{UserID: ownerID, Role: enum.UserRoleCustomer}
	stranger := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleCustomer}
	admin := &auth.Claims{UserID: uuid.New(), Role: enum.UserRoleAdmin}

	if !middleware.CanAccess(owner, ownerID) {
		t.Error("owner must access own resource")
	}
	if middleware.CanAccess(stranger, ownerID) {
		t.Error("stranger must not access another user's resource")
	}
	if !middleware.CanAccess(admin, ownerID) {
		t.Error("admin must access any resource")
	}
	if middleware.CanAccess(nil, ownerID) {
		t.Error("nil claims must not access anything")
	}
}
