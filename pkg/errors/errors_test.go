package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"asset not found", errors.ErrCodeAssetNotFound, "asset 0xMOCK_IP_1 not found"},
		{"invalid param", errors.CodeInvalidParam, "name must not be empty"},
		{"rate limit", errors.ErrCodeDataSourceRateLimited, "twitter returned 429"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.ErrCodeAssetNotFound, "asset not found")
	assert.Equal(t, "[AST_001] asset not found", ae.Error())

	withDetail := ae.WithDetail("id=0x1")
	assert.Equal(t, "[AST_001] asset not found: id=0x1", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")

	wrapped := errors.Wrap(stderrors.New("boom"), errors.ErrCodeDatabaseError, "insert failed")
	assert.Equal(t, "[COMMON_012] insert failed: boom", wrapped.Error())
}

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	sentinel := stderrors.New("connection refused")
	ae := errors.Wrap(sentinel, errors.ErrCodeDataSourceUnavailable, "google search failed")

	require.NotNil(t, ae)
	assert.True(t, stderrors.Is(ae, sentinel))
	assert.Equal(t, sentinel, stderrors.Unwrap(ae))
}

func TestWrap_UnknownCodeKeepsInnerCode(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeAssetNotFound, "missing")
	outer := errors.Wrap(inner, errors.CodeUnknown, "lookup failed")
	assert.Equal(t, errors.ErrCodeAssetNotFound, outer.Code)

	foreign := errors.Wrap(stderrors.New("x"), errors.CodeUnknown, "lookup failed")
	assert.Equal(t, errors.ErrCodeInternal, foreign.Code)
}

func TestIsCode_TraversesChain(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeDataSourceRateLimited, "429")
	mid := errors.Wrap(inner, errors.ErrCodeDataSourceUnavailable, "twitter")
	outer := fmt.Errorf("scan: %w", mid)

	assert.True(t, errors.IsCode(outer, errors.ErrCodeDataSourceUnavailable))
	assert.True(t, errors.IsCode(outer, errors.ErrCodeDataSourceRateLimited))
	assert.True(t, errors.IsRateLimited(outer))
	assert.False(t, errors.IsCode(outer, errors.ErrCodeNotFound))
	assert.False(t, errors.IsCode(nil, errors.ErrCodeNotFound))
	assert.False(t, errors.IsCode(stderrors.New("plain"), errors.ErrCodeInternal))
}

func TestClassificationHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeAssetNotFound, "x")))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))

	assert.True(t, errors.IsValidation(errors.Validation("x")))
	assert.True(t, errors.IsValidation(errors.InvalidParam("x")))
	assert.True(t, errors.IsConflict(errors.Conflict("x")))
	assert.True(t, errors.IsConflict(errors.InvalidState("x")))
	assert.True(t, errors.IsNotConfigured(errors.NotConfigured("no api key")))
	assert.True(t, errors.IsRateLimited(errors.RateLimit("slow down")))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.ErrCodeInternal, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.GetCode(errors.Unauthorized("no token")))
	assert.Equal(t, errors.ErrCodeForbidden, errors.GetCode(fmt.Errorf("w: %w", errors.Forbidden("x"))))
}

func TestWithCause_NilSafe(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
	assert.Nil(t, ae.WithDetail("x"))

	base := errors.ExternalService("llm failed")
	cause := stderrors.New("timeout")
	withCause := base.WithCause(cause)
	assert.Nil(t, base.Cause)
	assert.True(t, stderrors.Is(withCause, cause))
}
