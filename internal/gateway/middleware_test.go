package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatly-hq/chatly/internal/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRejectsMissingHeader(t *testing.T) {
	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an identity")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityRejectsMalformedUserID(t *testing.T) {
	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an identity")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
	req.Header.Set("X-User-ID", "not-a-uuid")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityRejectsNilUserID(t *testing.T) {
	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an identity")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
	req.Header.Set("X-User-ID", uuid.Nil.String())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityPopulatesActor(t *testing.T) {
	userID := uuid.New()

	var got identity.Actor
	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.ActorFrom(r.Context())
		require.True(t, ok)
		got = actor
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
	req.Header.Set("X-User-ID", userID.String())
	req.Header.Set("X-User-Admin", "true")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.IsAdministrator)
}

func TestIdentityNonAdminByDefault(t *testing.T) {
	var got identity.Actor
	handler := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = identity.ActorFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
	req.Header.Set("X-User-ID", uuid.New().String())

	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.False(t, got.IsAdministrator)
}
