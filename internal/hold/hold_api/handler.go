package hold_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/hold"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type Handler struct {
	HoldService *hold.Service
	Logger      *logger.Logger
}

func NewHandler(holdService *hold.Service, log *logger.Logger) *Handler {
	return &Handler{
		HoldService: holdService,
		Logger:      log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/holds", h.Reserve)
	r.Get("/holds/{holdId}", h.GetHold)
	r.Delete("/holds/{holdId}", h.CancelHold)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	buyerID := auth.UserID(r.Context())

	var req models.HoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reserve: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	holdRec, err := h.HoldService.Reserve(r.Context(), buyerID, req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Reserve: %d x %s rejected: %v", req.Quantity, req.TierID, err))
		utils.WriteError(w, "Could not reserve", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Hold created", models.HoldResponse{
		HoldID:    holdRec.HoldID,
		TierID:    holdRec.TierID,
		Quantity:  holdRec.Quantity,
		Status:    string(holdRec.Status),
		ExpiresAt: holdRec.ExpiresAt,
	}))
}

func (h *Handler) GetHold(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdId")

	holdRec, err := h.HoldService.Get(r.Context(), holdID)
	if err != nil {
		utils.WriteError(w, "Could not load hold", err)
		return
	}
	if holdRec == nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Hold not found", holdID))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Hold", models.HoldResponse{
		HoldID:    holdRec.HoldID,
		TierID:    holdRec.TierID,
		Quantity:  holdRec.Quantity,
		Status:    string(holdRec.Status),
		ExpiresAt: holdRec.ExpiresAt,
	}))
}

func (h *Handler) CancelHold(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdId")
	buyerID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CancelHold: holdId=%s buyer=%s", holdID, buyerID))

	if err := h.HoldService.Cancel(r.Context(), holdID, buyerID); err != nil {
		utils.WriteError(w, "Could not cancel hold", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
