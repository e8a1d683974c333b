package checkin_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/checkin"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Handler is the gate-device surface. Scanners POST the scanned token;
// the distinct error codes let the operator tell a used ticket from a
// voided one.
type Handler struct {
	CheckInService *checkin.Service
	Logger         *logger.Logger
}

func NewHandler(checkInService *checkin.Service, log *logger.Logger) *Handler {
	return &Handler{
		CheckInService: checkInService,
		Logger:         log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/checkin", h.CheckIn)
	r.Post("/checkin/verify", h.Verify)
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	resp, err := h.CheckInService.CheckIn(r.Context(), req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CheckIn: rejected at gate %s: %v", req.Gate, err))
		utils.WriteError(w, "Check-in rejected", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Checked in", resp))
}

// Verify is the dry-run scan: it validates the token and reports the
// ticket state without consuming it.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ticket, err := h.CheckInService.Verify(r.Context(), req.Token)
	if err != nil {
		utils.WriteError(w, "Verification failed", err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket", map[string]interface{}{
		"ticket_id":  ticket.TicketID,
		"unit_label": ticket.UnitLabel,
		"status":     ticket.Status,
	}))
}
