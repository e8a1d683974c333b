package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-booking/internal/models"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteError maps a service error to its HTTP status and writes the
// envelope. Internal consistency errors are masked: the caller sees a
// generic 500 while the real cause stays in the logs.
func WriteError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, models.ErrPartialIssuance) || errors.Is(err, models.ErrLedgerInconsistency) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse(message, "internal error, booking flagged for review"))
		return
	}
	WriteJSON(w, ErrorStatus(err), ErrorResponse(message, err.Error()))
}

// ErrorStatus maps the domain error kinds onto HTTP status codes.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrSoldOut),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrAlreadyCheckedIn):
		return http.StatusConflict
	case errors.Is(err, models.ErrHoldExpired):
		return http.StatusGone
	case errors.Is(err, models.ErrInvalidDiscount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, models.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrTicketVoid),
		errors.Is(err, models.ErrBookingNotConfirmed),
		errors.Is(err, models.ErrEventWindowClosed):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
