package booking_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	booking_db "ms-booking/internal/booking/db"
	"ms-booking/internal/logger"
	ticket_db "ms-booking/internal/tickets/db"
	"ms-booking/internal/utils"
)

// Handler serves booking and ticket reads for buyers.
type Handler struct {
	Bookings *booking_db.DB
	Tickets  *ticket_db.DB
	Logger   *logger.Logger
}

func NewHandler(bookings *booking_db.DB, tickets *ticket_db.DB, log *logger.Logger) *Handler {
	return &Handler{
		Bookings: bookings,
		Tickets:  tickets,
		Logger:   log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/bookings", h.ListBookings)
	r.Get("/bookings/{bookingId}", h.GetBooking)
	r.Get("/bookings/{bookingId}/tickets", h.GetBookingTickets)
	r.Get("/tickets/{ticketId}/qr", h.GetTicketQR)
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	buyerID := auth.UserID(r.Context())

	bookings, err := h.Bookings.GetBookingsByBuyer(r.Context(), buyerID)
	if err != nil {
		utils.WriteError(w, "Could not load bookings", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Bookings", bookings))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	booking, err := h.Bookings.GetBookingByID(r.Context(), bookingID)
	if err != nil {
		utils.WriteError(w, "Could not load booking", err)
		return
	}
	if booking == nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Booking not found", bookingID))
		return
	}
	if buyerID := auth.UserID(r.Context()); buyerID != "" && booking.BuyerID != buyerID {
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Booking belongs to another buyer", bookingID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking", booking))
}

func (h *Handler) GetBookingTickets(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	tickets, err := h.Tickets.GetTicketsByBooking(r.Context(), bookingID)
	if err != nil {
		utils.WriteError(w, "Could not load tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tickets", tickets))
}

// GetTicketQR serves the stored QR rendering as a PNG for wallet and
// email embedding.
func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")

	ticket, err := h.Tickets.GetTicketByID(r.Context(), ticketID)
	if err != nil {
		utils.WriteError(w, "Could not load ticket", err)
		return
	}
	if ticket == nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Ticket not found", ticketID))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(ticket.QRCode); err != nil {
		h.Logger.Error("API", "GetTicketQR: failed to write image: "+err.Error())
	}
}
