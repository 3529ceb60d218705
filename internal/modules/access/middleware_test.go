package access_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/georgemunganga/bikeservice-backend/internal/modules/access"
)

type stubVerifier map[string]*access.Actor

func (s stubVerifier) VerifyToken(ctx context.Context, token string) (*access.Actor, error) {
	if a, ok := s[token]; ok {
		return a, nil
	}
	return nil, errors.New("bad token")
}

func TestAuthenticate(t *testing.T) {
	admin := &access.Actor{ID: uuid.New(), Role: access.RolePlatformAdmin}
	verifier := stubVerifier{"good": admin}

	var seen *access.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = access.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := access.Authenticate(verifier)(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusNoContent},
		{"scheme is case insensitive", "bearer good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, admin, seen)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := access.RequireRole(access.RolePlatformAdmin)(next)

	serve := func(actor *access.Actor) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if actor != nil {
			req = req.WithContext(access.WithActor(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(&access.Actor{ID: uuid.New(), Role: access.RoleStoreOwner}))
	assert.Equal(t, http.StatusNoContent, serve(&access.Actor{ID: uuid.New(), Role: access.RolePlatformAdmin}))
}
