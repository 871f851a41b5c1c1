package api

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatly-hq/chatly/internal/common/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", errors.NotFound("channel not found"), http.StatusNotFound},
		{"permission denied", errors.PermissionDenied("not a member"), http.StatusForbidden},
		{"duplicate membership", errors.DuplicateMembership("already a member"), http.StatusConflict},
		{"validation", errors.Validation("name is required"), http.StatusBadRequest},
		{"rate limited", errors.RateLimited("too many messages"), http.StatusTooManyRequests},
		{"internal", errors.Internal("db exploded", nil), http.StatusInternalServerError},
		{"unknown error", stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteServiceErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.Internal("connection string leaked", nil))
	assert.NotContains(t, rec.Body.String(), "connection string")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&hide_archived=true&bad=abc", nil)

	assert.Equal(t, 25, queryInt(req, "limit", 10))
	assert.Equal(t, 10, queryInt(req, "missing", 10))
	assert.Equal(t, 10, queryInt(req, "bad", 10))
	assert.True(t, queryBool(req, "hide_archived"))
	assert.False(t, queryBool(req, "missing"))
}
