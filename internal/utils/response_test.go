package utils_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{models.ErrSoldOut, http.StatusConflict},
		{models.ErrInvalidState, http.StatusConflict},
		{models.ErrAlreadyCheckedIn, http.StatusConflict},
		{models.ErrHoldExpired, http.StatusGone},
		{models.ErrInvalidDiscount, http.StatusUnprocessableEntity},
		{models.ErrPaymentFailed, http.StatusPaymentRequired},
		{models.ErrInvalidSignature, http.StatusUnauthorized},
		{models.ErrTicketVoid, http.StatusForbidden},
		{models.ErrBookingNotConfirmed, http.StatusForbidden},
		{models.ErrEventWindowClosed, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.status, utils.ErrorStatus(tc.err), "error %v", tc.err)
	}
}

func TestErrorStatusSeesWrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), models.ErrHoldExpired)
	assert.Equal(t, http.StatusGone, utils.ErrorStatus(wrapped))
}

func TestWriteErrorMasksInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	utils.WriteError(rec, "checkout failed", models.ErrPartialIssuance)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), models.ErrPartialIssuance.Error())
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	utils.WriteError(rec, "reservation failed", models.ErrSoldOut)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "reservation failed", resp.Message)
}

func TestGenerateBookingReferenceFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := utils.GenerateBookingReference()
		assert.Len(t, ref, 10)
		assert.True(t, strings.HasPrefix(ref, "EF"))
		seen[ref] = true
	}
	// Collisions over a hundred draws would indicate a broken generator.
	assert.Len(t, seen, 100)
}

func TestGenerateTicketCodeFormat(t *testing.T) {
	code := utils.GenerateTicketCode()
	assert.Len(t, code, 12)
	assert.True(t, strings.HasPrefix(code, "TK"))
}

func TestGenerateEntryIDFormat(t *testing.T) {
	id := utils.GenerateEntryID()
	assert.True(t, strings.HasPrefix(id, "ce_"))
	assert.NotEqual(t, id, utils.GenerateEntryID())
}
