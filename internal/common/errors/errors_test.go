package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicatesMatchOnlyTheirCode(t *testing.T) {
	cases := []struct {
		err  error
		pred func(error) bool
	}{
		{NotFound("channel not found"), IsNotFound},
		{PermissionDenied("not a member"), IsPermissionDenied},
		{DuplicateMembership("already joined"), IsDuplicateMembership},
		{Validation("name is required"), IsValidation},
		{RateLimited("slow down"), IsRateLimited},
	}
	preds := []func(error) bool{
		IsNotFound, IsPermissionDenied, IsDuplicateMembership, IsValidation, IsRateLimited,
	}
	for i, tc := range cases {
		for j, pred := range preds {
			assert.Equal(t, i == j, pred(tc.err), "case %d against predicate %d", i, j)
		}
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("loading channel: %w", NotFound("channel not found"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestPredicatesOnForeignErrors(t *testing.T) {
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("failed to load channel", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to load channel")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "not_found", CodeNotFound.String())
	assert.Equal(t, "rate_limited", CodeRateLimited.String())
	assert.Equal(t, "internal", CodeInternal.String())
}
