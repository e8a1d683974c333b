package commission_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/commission"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type Handler struct {
	CommissionService *commission.Service
	Logger            *logger.Logger
}

func NewHandler(commissionService *commission.Service, log *logger.Logger) *Handler {
	return &Handler{
		CommissionService: commissionService,
		Logger:            log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/organizers/{organizerId}/settlement", h.GetSettlement)
	r.Get("/organizers/{organizerId}/entries", h.GetEntries)
	r.Post("/organizers/{organizerId}/corrections", h.PostCorrection)
}

func period(r *http.Request) string {
	if p := r.URL.Query().Get("period"); p != "" {
		return p
	}
	return models.SettlementPeriod(time.Now())
}

func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	organizerID := chi.URLParam(r, "organizerId")

	summary, err := h.CommissionService.Settle(r.Context(), organizerID, period(r))
	if err != nil {
		utils.WriteError(w, "Could not compute settlement", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Settlement", summary))
}

func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	organizerID := chi.URLParam(r, "organizerId")

	entries, err := h.CommissionService.Entries(r.Context(), organizerID, r.URL.Query().Get("period"))
	if err != nil {
		utils.WriteError(w, "Could not load ledger entries", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Entries", entries))
}

// PostCorrection records an operator adjustment as a new offsetting
// entry. History is never edited.
func (h *Handler) PostCorrection(w http.ResponseWriter, r *http.Request) {
	organizerID := chi.URLParam(r, "organizerId")

	var req struct {
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Amount == 0 || req.Currency == "" {
		http.Error(w, "amount and currency are required", http.StatusBadRequest)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("PostCorrection: organizer=%s amount=%.2f %s", organizerID, req.Amount, req.Currency))

	entry, err := h.CommissionService.PostCorrection(r.Context(), organizerID, req.Amount, req.Currency)
	if err != nil {
		utils.WriteError(w, "Could not post correction", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Correction posted", entry))
}
