package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cattlebreed/server/internal/models"
	"github.com/stretchr/testify/assert"
)

type staticValidator struct {
	token string
	user  *models.User
}

func (v staticValidator) ValidateToken(_ context.Context, token string) (*models.User, error) {
	if token != v.token {
		return nil, models.ErrInvalidToken
	}
	return v.user, nil
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	if u := GetUserFromContext(r.Context()); u != nil {
		w.Header().Set("X-User", u.PhoneNumber)
	}
	w.WriteHeader(http.StatusOK)
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth("s3cret", "X-API-Key")(http.HandlerFunc(okHandler))

	cases := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"missing key", "/api/records", "", http.StatusUnauthorized},
		{"wrong key", "/api/records", "nope", http.StatusUnauthorized},
		{"valid key", "/api/records", "s3cret", http.StatusOK},
		{"health is open", "/api/health", "", http.StatusOK},
		{"non api path is open", "/health", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	t.Run("empty key disables the check", func(t *testing.T) {
		rec := httptest.NewRecorder()
		APIKeyAuth("", "X-API-Key")(http.HandlerFunc(okHandler)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSessionAuth(t *testing.T) {
	v := staticValidator{token: "tok", user: &models.User{PhoneNumber: "9876543210"}}

	t.Run("required", func(t *testing.T) {
		h := SessionAuth(v)(http.HandlerFunc(okHandler))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		req.Header.Set("Authorization", "bearer tok")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "9876543210", rec.Header().Get("X-User"))
	})

	t.Run("optional", func(t *testing.T) {
		h := OptionalSessionAuth(v)(http.HandlerFunc(okHandler))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sync/pending", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-User"))
	})
}
