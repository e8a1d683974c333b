package refund_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/refund"
	"ms-booking/internal/utils"
)

type Handler struct {
	RefundService *refund.Service
	Logger        *logger.Logger
}

func NewHandler(refundService *refund.Service, log *logger.Logger) *Handler {
	return &Handler{
		RefundService: refundService,
		Logger:        log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/bookings/{bookingId}/cancel", h.CancelBooking)
	r.Get("/bookings/{bookingId}/refund", h.GetRefund)
	r.Post("/events/{eventId}/cancel", h.CancelEvent)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	buyerID := auth.UserID(r.Context())

	var req models.RefundRequest
	if r.Body != nil {
		// Reason is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.Logger.Info("API", fmt.Sprintf("CancelBooking: booking=%s buyer=%s", bookingID, buyerID))

	resp, err := h.RefundService.CancelBooking(r.Context(), bookingID, buyerID, req.Reason)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CancelBooking: booking=%s failed: %v", bookingID, err))
		utils.WriteError(w, "Could not cancel booking", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", resp))
}

func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	refundRec, err := h.RefundService.GetByBooking(r.Context(), bookingID)
	if err != nil {
		utils.WriteError(w, "Could not load refund", err)
		return
	}
	if refundRec == nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("No refund for booking", bookingID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Refund", refundRec))
}

// CancelEvent refunds every confirmed booking of the event in full and
// charges the organizer penalty. Called by the events service when an
// organizer cancels, authenticated machine-to-machine.
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req models.RefundRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.Logger.Warn("API", fmt.Sprintf("CancelEvent: event=%s", eventID))

	refunds, err := h.RefundService.CancelEvent(r.Context(), eventID, req.Reason)
	if err != nil {
		utils.WriteError(w, "Event cancellation incomplete", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(
		fmt.Sprintf("Event cancelled, %d bookings refunded", len(refunds)), refunds))
}
