package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForLedgerCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true},
		{CodeConflict, http.StatusConflict, false, false},
		{CodeInternal, http.StatusInternalServerError, true, false},
		{CodeDependency, http.StatusServiceUnavailable, true, true},
		{CodeInvalidTransition, http.StatusUnprocessableEntity, false, true},
		{CodeAlreadyConverted, http.StatusConflict, false, true},
		{CodeNotAccepted, http.StatusUnprocessableEntity, false, true},
		{CodeInsufficientStock, http.StatusConflict, false, true},
		{CodeNegativeBalance, http.StatusConflict, false, true},
		{CodeDuplicateNumber, http.StatusInternalServerError, false, true},
		{CodeRetryableConflict, http.StatusConflict, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.detailsOK, meta.DetailsAllowed)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}
}

func TestEveryCodeHasMetadata(t *testing.T) {
	for code, meta := range metadataByCode {
		assert.NotZero(t, meta.HTTPStatus, code)
		assert.NotEmpty(t, meta.PublicMessage, code)
	}
	assert.Equal(t, metadataByCode[CodeInternal], MetadataFor("SOMETHING_UNKNOWN"))
}

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "save movement")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Equal(t, "CONFLICT: save movement: boom", wrapped.Error())
	assert.Equal(t, "NOT_FOUND: document 7", Newf(CodeNotFound, "document %d", 7).Error())
}

func TestDetailsAreOptional(t *testing.T) {
	err := New(CodeValidation, "missing quantity")
	assert.Nil(t, err.Details())

	err.WithDetails(map[string]any{"field": "quantity"})
	assert.Equal(t, map[string]any{"field": "quantity"}, err.Details())

	var nilErr *Error
	assert.Nil(t, nilErr.WithDetails("x"))
	assert.Equal(t, CodeInternal, nilErr.Code())
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	notFound := New(CodeNotFound, "")
	err := fmt.Errorf("load invoice: %w", New(CodeNotFound, "document not found"))

	assert.ErrorIs(t, err, notFound)
	assert.NotErrorIs(t, err, New(CodeConflict, ""))
}

func TestIsCodeSeesInnerCodes(t *testing.T) {
	inner := New(CodeNegativeBalance, "balance would drop below zero")
	outer := Wrap(CodeInternal, fmt.Errorf("apply movement: %w", inner), "checkout loyalty step")

	assert.True(t, IsCode(outer, CodeInternal))
	assert.True(t, IsCode(outer, CodeNegativeBalance))
	assert.False(t, IsCode(outer, CodeNotFound))
	assert.False(t, IsCode(nil, CodeNotFound))

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInternal, typed.Code())
	assert.Nil(t, As(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, New(CodeRetryableConflict, "lock timeout").Retryable())
	assert.False(t, New(CodeInvalidTransition, "no").Retryable())
}
