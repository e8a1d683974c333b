package inventory_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Handler exposes tier seeding and availability reads. Seeding is how
// the metadata collaborator's capacity configuration enters the ledger.
type Handler struct {
	Ledger *inventory.Ledger
	Logger *logger.Logger
}

func NewHandler(ledger *inventory.Ledger, log *logger.Logger) *Handler {
	return &Handler{Ledger: ledger, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/tiers", h.CreateTier)
	r.Get("/tiers/{tierId}", h.GetTier)
	r.Get("/events/{eventId}/tiers", h.GetEventTiers)
}

func (h *Handler) CreateTier(w http.ResponseWriter, r *http.Request) {
	var tier models.TicketTier
	if err := json.NewDecoder(r.Body).Decode(&tier); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if tier.Capacity <= 0 {
		http.Error(w, "Capacity must be positive", http.StatusBadRequest)
		return
	}
	if tier.TierID == "" {
		tier.TierID = uuid.NewString()
	}
	tier.CreatedAt = time.Now()

	if err := h.Ledger.CreateTier(r.Context(), tier); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateTier: %v", err))
		utils.WriteError(w, "Could not create tier", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateTier: %s (%d units) for event %s", tier.TierID, tier.Capacity, tier.EventID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tier created", tier))
}

func (h *Handler) GetTier(w http.ResponseWriter, r *http.Request) {
	tierID := chi.URLParam(r, "tierId")

	tier, err := h.Ledger.GetTier(r.Context(), tierID)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Tier not found", tierID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tier", tier))
}

func (h *Handler) GetEventTiers(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	tiers, err := h.Ledger.GetTiersByEvent(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, "Could not load tiers", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tiers", tiers))
}
